package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/tempmail/internal/app"
)

func newTUICmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive inbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, env)
		},
	}
}

func runTUI(cmd *cobra.Command, env *Env) error {
	mgr, err := env.openManager()
	if err != nil {
		return err
	}

	m := app.New(cmd.Context(), mgr, env.Logger)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}
