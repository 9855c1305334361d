package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nhle/tempmail/internal/model"
)

// NewRootCmd builds the command tree. Running the root command without a
// subcommand starts the terminal UI.
func NewRootCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:          model.AppName,
		Short:        "tempmail is a disposable email client for the terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, env)
		},
	}

	cmd.PersistentFlags().StringVar(&env.ConfigPath, "config", "", "config file (default ~/.config/tempmail/config.yaml)")
	cmd.PersistentFlags().BoolVar(&env.LogToStderr, "log-stderr", env.LogToStderr, "write logs to stderr instead of the log file")

	cmd.AddCommand(newTUICmd(env))
	cmd.AddCommand(newAddressCmd(env))
	cmd.AddCommand(newInboxCmd(env))
	cmd.AddCommand(newReadCmd(env))
	cmd.AddCommand(newNewCmd(env))
	cmd.AddCommand(newCustomCmd(env))
	cmd.AddCommand(newLoginCmd(env))
	cmd.AddCommand(newDeleteCmd(env))
	cmd.AddCommand(newDomainsCmd(env))
	cmd.AddCommand(newWatchCmd(env))
	cmd.AddCommand(newConfigCmd(env))

	cmd.SetErr(os.Stderr)
	cmd.SetOut(os.Stdout)

	return cmd
}

// Execute runs the command tree with a default environment.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := &Env{Stdin: os.Stdin}
	err := NewRootCmd(env).ExecuteContext(ctx)
	if cerr := env.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
