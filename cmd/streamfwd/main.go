package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	config := DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "streamfwd",
		Short: "Run a command and forward its output streams",
		Long: `streamfwd runs a child process and forwards its stdout and stderr as they are
produced: raw chunks are echoed immediately, complete lines are delivered to the
configured sink (console, rotating file, ClickHouse or OpenSearch), and the full
output can be captured into a run history.

Examples:
  # Echo a build while forwarding its lines to ClickHouse (configured in the file)
  streamfwd --config streamfwd.yaml run -- make all

  # Only forward complete lines and record the run
  streamfwd run --line-buffered --history.enable -- ./deploy.sh

  # Show recorded runs, then one run with its captured output
  streamfwd history
  streamfwd history 3`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadFromViper(cmd); err != nil {
				return err
			}
			if err := config.Validate(); err != nil {
				return err
			}
			return setupLogging(config.Log, cmd.ErrOrStderr())
		},
	}

	// Setup flags from config
	config.SetupFlags(rootCmd)

	runCmd := &cobra.Command{
		Use:   "run -- command [args...]",
		Short: "Run a command and forward its output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := runCommand(cmd.Context(), config, cmd.OutOrStdout(), cmd.ErrOrStderr(), args)
			if err != nil {
				return err
			}
			if code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}

	// Everything after the command name belongs to the child.
	runCmd.Flags().SetInterspersed(false)

	var limit int
	historyCmd := &cobra.Command{
		Use:   "history [id]",
		Short: "List recorded runs or show one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return showHistory(config, cmd.OutOrStdout(), args[0])
			}
			return listHistory(config, cmd.OutOrStdout(), limit)
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")

	rootCmd.AddCommand(runCmd, historyCmd)
	return rootCmd
}
