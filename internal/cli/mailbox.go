package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/session"
)

func newAddressCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the active address, creating one if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := env.openSession(cmd.Context())
			if err != nil {
				return err
			}
			if err := mgr.RefreshAccountInfo(cmd.Context()); err != nil {
				env.Logger.Warn("refreshing account info", "error", err)
			}
			printAccount(cmd.OutOrStdout(), mgr.View())
			return nil
		},
	}
}

func newInboxCmd(env *Env) *cobra.Command {
	var unseenOnly bool

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List messages in the active mailbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := env.openSession(cmd.Context())
			if err != nil {
				return err
			}
			if err := mgr.RefreshInbox(cmd.Context()); err != nil {
				return fmt.Errorf("refreshing inbox: %w", err)
			}

			messages := mgr.View().Messages
			if unseenOnly {
				messages = filterUnseen(messages)
			}
			printMessages(cmd.OutOrStdout(), messages)
			return nil
		},
	}

	cmd.Flags().BoolVar(&unseenOnly, "unseen", false, "Only list unread messages")

	return cmd
}

func filterUnseen(messages []model.Message) []model.Message {
	out := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		if !m.Seen {
			out = append(out, m)
		}
	}
	return out
}

func newReadCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "read ID",
		Short: "Print a message and mark it as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := env.openSession(cmd.Context())
			if err != nil {
				return err
			}
			msg, err := mgr.OpenMessage(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("reading message %s: %w", args[0], err)
			}
			printMessage(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func newDomainsCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "List domains available for new addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := env.openManager()
			if err != nil {
				return err
			}
			domains, err := mgr.ListDomains(cmd.Context())
			if err != nil {
				return err
			}
			printDomains(cmd.OutOrStdout(), domains)
			return nil
		},
	}
}

func newWatchCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print new messages as they arrive until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := env.openSession(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			updates := make(chan session.Update, 16)
			cancel := mgr.Subscribe(func(u session.Update) {
				for {
					select {
					case updates <- u:
						return
					default:
					}
					// Keep the newest update; each one carries the full view.
					select {
					case <-updates:
					default:
					}
				}
			})
			defer cancel()

			v := mgr.View()
			address := v.Address
			fmt.Fprintf(out, "Watching %s (ctrl+c to stop)\n", address)
			printed := make(map[string]bool, len(v.Messages))
			for _, m := range v.Messages {
				printed[m.ID] = true
			}

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case u := <-updates:
					if u.Err != nil {
						return u.Err
					}
					if u.View.Address != "" && u.View.Address != address {
						address = u.View.Address
						fmt.Fprintf(out, "Now watching %s\n", address)
					}
					for _, m := range u.View.Messages {
						if printed[m.ID] {
							continue
						}
						printed[m.ID] = true
						fmt.Fprintln(out, messageRow(m))
					}
				}
			}
		},
	}
}
