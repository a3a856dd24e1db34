// Package cli holds the admin-console commands.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/go-logr/logr/funcr"
	auth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-admin-auth/internal/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	cfg       config.Config
	verbosity int
	logger    *auth.LogrLogger
}

// NewRootCommand returns the admin-console command tree. Configuration is
// read from ADMIN_CONSOLE_* variables before any subcommand runs.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "admin-console",
		Short:         "Admin console identity resolution and access gating",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("verbosity") {
				cfg.Verbosity = opts.verbosity
			}
			opts.cfg = cfg
			opts.logger = newLogger(cmd.ErrOrStderr(), cfg.Verbosity)
			return nil
		},
	}

	cmd.PersistentFlags().IntVarP(&opts.verbosity, "verbosity", "v", 0, "log verbosity, 1 enables debug output")

	cmd.AddCommand(
		newServeCommand(opts),
		newCheckAccessCommand(opts),
		newRegistryCommand(opts),
		newHashPasswordCommand(),
	)
	return cmd
}

// ExecuteContext runs the command tree with ctx.
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func newLogger(out io.Writer, verbosity int) *auth.LogrLogger {
	l := funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(out, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(out, args)
	}, funcr.Options{
		LogTimestamp: true,
		Verbosity:    verbosity,
	})
	return auth.NewLogrLogger(l).WithName("admin-console")
}
