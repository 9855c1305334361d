package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/tempmail/internal/mailbox"
	"github.com/nhle/tempmail/internal/model"
)

func newNewCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Replace the active address with a new random one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := env.openManager()
			if err != nil {
				return err
			}
			if err := mgr.GenerateNewEmail(cmd.Context()); err != nil {
				return err
			}
			printAccount(cmd.OutOrStdout(), mgr.View())
			return nil
		},
	}
}

func newCustomCmd(env *Env) *cobra.Command {
	var (
		domain   string
		password string
	)

	cmd := &cobra.Command{
		Use:   "custom USERNAME[@DOMAIN]",
		Short: "Create an address with a chosen name and password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := env.openManager()
			if err != nil {
				return err
			}

			username := args[0]
			if local, d, ok := model.SplitAddress(username); ok {
				if domain != "" && domain != d {
					return fmt.Errorf("domain given twice: %s and %s", d, domain)
				}
				username, domain = local, d
			}

			if domain == "" {
				domains, err := mgr.ListDomains(cmd.Context())
				if err != nil {
					return err
				}
				if len(domains) == 0 {
					return mailbox.ErrNoDomain
				}
				domain = domains[0].Domain
			}

			if password == "" {
				password, err = promptSecret(env, cmd.ErrOrStderr(), "Password: ")
				if err != nil {
					return err
				}
			}

			if err := mgr.CreateCustomEmail(cmd.Context(), username, domain, password); err != nil {
				return err
			}
			printAccount(cmd.OutOrStdout(), mgr.View())
			return nil
		},
	}

	cmd.Flags().StringVar(&domain, "domain", "", "Domain to create the address under (default: first available)")
	cmd.Flags().StringVar(&password, "password", "", "Password for the new account (prompted when empty)")

	return cmd
}

func newLoginCmd(env *Env) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login ADDRESS",
		Short: "Log into an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := env.openManager()
			if err != nil {
				return err
			}

			if password == "" {
				password, err = promptSecret(env, cmd.ErrOrStderr(), "Password: ")
				if err != nil {
					return err
				}
			}

			if err := mgr.LoginWithCredentials(cmd.Context(), args[0], password); err != nil {
				return err
			}
			printAccount(cmd.OutOrStdout(), mgr.View())
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when empty)")

	return cmd
}

func newDeleteCmd(env *Env) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the active account and switch to a new address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := env.openSession(cmd.Context())
			if err != nil {
				return err
			}
			address := mgr.View().Address

			if !yes {
				answer, err := promptLine(env, cmd.ErrOrStderr(), fmt.Sprintf("Delete %s and all its messages? [y/N] ", address))
				if err != nil {
					return err
				}
				if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			if err := mgr.DeleteAccount(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", address)
			printAccount(cmd.OutOrStdout(), mgr.View())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}
