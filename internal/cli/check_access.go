package cli

import (
	"context"
	"fmt"
	"io"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/spf13/cobra"
)

func newCheckAccessCommand(root *rootOptions) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "check-access",
		Short: "Sign in and report how the admin role resolves",
		Long: `Sign in with the configured identity provider and report the
resolution outcome and where the role came from. The provider session is
signed out afterwards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.cfg.Validate(); err != nil {
				return err
			}
			payload := auth.LoginPayload{Email: email, Password: password}
			if err := payload.Validate(); err != nil {
				return err
			}
			return checkAccess(cmd.Context(), cmd.OutOrStdout(), root, payload)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func checkAccess(ctx context.Context, out io.Writer, root *rootOptions, payload auth.LoginPayload) error {
	provider, closeProvider, err := openProvider(ctx, root.cfg, root.logger)
	if err != nil {
		return err
	}
	defer closeProvider()

	registryStore, closeRegistry, err := openRegistry(ctx, root.cfg)
	if err != nil {
		return err
	}
	defer closeRegistry()

	identity, err := provider.Verify(ctx, payload.Email, payload.Password)
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.SignOut(context.WithoutCancel(ctx)); err != nil {
			root.logger.Warn("check-access sign out failed", "error", err)
		}
	}()

	res := auth.NewResolver(provider, registryStore).
		WithLogger(root.logger).
		WithDiagnostics(true).
		Resolve(ctx, identity)

	fmt.Fprintf(out, "uid:     %s\n", identity.UID)
	fmt.Fprintf(out, "outcome: %s\n", res.Outcome)
	fmt.Fprintf(out, "source:  %s\n", res.Source)
	if res.Authorized() {
		fmt.Fprintf(out, "role:    %s\n", res.Session.Role())
		return nil
	}

	_, resp := auth.DescribeError(res.Err)
	fmt.Fprintf(out, "error:   %s\n", resp.Message)
	if resp.Guidance != "" {
		fmt.Fprintf(out, "hint:    %s\n", resp.Guidance)
	}
	return res.Err
}
