package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-admin-auth/provider/local"
	"github.com/spf13/cobra"
)

func newHashPasswordCommand() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for a local provider account",
		Long: `Print a bcrypt hash suitable for the password_hash field of a local
accounts file. The password is read from stdin when no argument is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("read password from stdin: no input")
				}
				password = strings.TrimRight(line, "\r\n")
			}

			hash, err := local.HashPasswordCost(password, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", local.DefaultPasswordCost, "bcrypt cost")
	return cmd
}
