package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	auth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-admin-auth/registry"
	"github.com/spf13/cobra"
)

func newRegistryCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Manage admin role grants in the authorization registry",
	}

	var note string
	grant := &cobra.Command{
		Use:   "grant <uid> <role>",
		Short: "Grant an admin role to an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, ok := auth.ParseAdminRole(args[1])
			if !ok {
				return auth.NewValidationError("invalid role", map[string]string{
					"role": "must be one of admin, super_admin",
				})
			}
			return withRegistry(cmd.Context(), root, func(store registry.Store) error {
				if err := store.Grant(cmd.Context(), args[0], role, note); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "granted %s to %s\n", role, args[0])
				return nil
			})
		},
	}
	grant.Flags().StringVar(&note, "note", "", "free text kept with the grant")

	revoke := &cobra.Command{
		Use:   "revoke <uid>",
		Short: "Remove an account from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd.Context(), root, func(store registry.Store) error {
				if err := store.Revoke(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
				return nil
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registry entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd.Context(), root, func(store registry.Store) error {
				records, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "UID\tROLE\tGRANTED\tNOTE")
				for _, r := range records {
					granted := ""
					if !r.GrantedAt.IsZero() {
						granted = r.GrantedAt.UTC().Format("2006-01-02T15:04:05Z")
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.UID, r.Role, granted, r.Note)
				}
				return w.Flush()
			})
		},
	}

	cmd.AddCommand(grant, revoke, list)
	return cmd
}

func withRegistry(ctx context.Context, root *rootOptions, fn func(registry.Store) error) error {
	if root.cfg.Registry.Driver == "memory" {
		return errMemoryRegistry
	}
	store, closer, err := openRegistry(ctx, root.cfg)
	if err != nil {
		return err
	}
	defer closer()
	return fn(store)
}
