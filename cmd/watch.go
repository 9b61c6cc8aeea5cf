package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mediacopy/internal"
)

var watchFlags = struct {
	runFlags
	command string
	quiet   time.Duration
}{}

var watchCmd = &cobra.Command{
	Use:   "watch <input> <output>",
	Short: "Process the input directory whenever new files settle in it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		command, err := internal.ParseCommand(watchFlags.command)
		if err != nil {
			return err
		}
		if command == internal.CommandSimulate {
			return errors.New("watch supports copy and move only")
		}

		rc, conf, err := watchFlags.runConfig(cmd, command, args[0], args[1])
		if err != nil {
			return err
		}
		if err := rc.Validate(); err != nil {
			return err
		}
		quiet := conf.QuietPeriod
		if cmd.Flags().Changed("quiet") {
			quiet = watchFlags.quiet
		}
		if quiet <= 0 {
			quiet = 2 * time.Second
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		watcher, err := internal.NewWatcher(rc.InputDir, rc.OutputDir)
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", rc.InputDir, err)
		}
		defer watcher.Close()

		console := newConsole(cmd.OutOrStdout(), cmd.ErrOrStderr(), watchFlags.verbose)
		if err := runOnce(ctx, rc, console); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s\n", rc.InputDir)

		settled := watcher.Settled(ctx, quiet)
		for {
			select {
			case _, ok := <-settled:
				if !ok {
					return nil
				}
				if err := runOnce(ctx, rc, console); err != nil {
					return err
				}
			case err := <-watcher.Errors():
				console.yellow.Fprintf(cmd.ErrOrStderr(), "watch: %v\n", err)
			}
		}
	},
}

func init() {
	watchFlags.register(watchCmd)
	watchCmd.Flags().StringVar(&watchFlags.command, "command", string(internal.CommandCopy), "operation for each run: copy or move")
	watchCmd.Flags().DurationVar(&watchFlags.quiet, "quiet", 2*time.Second, "how long the input must be idle before a run starts")
	rootCmd.AddCommand(watchCmd)
}
