package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mediacopy/internal"
)

// runFlags override the config file for a single invocation.
type runFlags struct {
	pattern   string
	utc       bool
	noRotate  bool
	exiftool  bool
	logFile   string
	noJournal bool
	verbose   bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.pattern, "pattern", internal.DefaultPattern, "strftime pattern for destination paths, relative to the output directory")
	cmd.Flags().BoolVar(&f.utc, "utc", false, "render the pattern in UTC when the file records its UTC offset")
	cmd.Flags().BoolVar(&f.noRotate, "no-rotate", false, "copy rotated JPEGs unchanged instead of straightening them")
	cmd.Flags().BoolVar(&f.exiftool, "exiftool", false, "fall back to the exiftool binary for files the built-in readers cannot date")
	cmd.Flags().StringVar(&f.logFile, "log-file", internal.DefaultLogFile, "log file, relative to the output directory (empty disables)")
	cmd.Flags().BoolVar(&f.noJournal, "no-journal", false, "do not write the JSON lines run journal")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "print every placed file")
}

// runConfig loads the config file and applies the flags that were set.
func (f *runFlags) runConfig(cmd *cobra.Command, command internal.Command, inputDir, outputDir string) (internal.RunConfig, *internal.Config, error) {
	conf, err := internal.LoadConfig(configFlag)
	if err != nil {
		return internal.RunConfig{}, nil, err
	}
	rc := conf.RunConfig(command, inputDir, outputDir)

	flags := cmd.Flags()
	if flags.Changed("pattern") {
		rc.Pattern = f.pattern
	}
	if flags.Changed("utc") {
		rc.UseUTC = f.utc
	}
	if f.noRotate {
		rc.Rotate = false
	}
	if f.exiftool {
		rc.UseExiftool = true
	}
	if flags.Changed("log-file") {
		rc.LogFile = f.logFile
	}
	if f.noJournal {
		rc.Journal = false
	}
	return rc, conf, nil
}

func newRunCommand(command internal.Command, short string) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   string(command) + " <input> <output>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, _, err := f.runConfig(cmd, command, args[0], args[1])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			console := newConsole(cmd.OutOrStdout(), cmd.ErrOrStderr(), f.verbose)
			return runOnce(ctx, rc, console)
		},
	}
	f.register(cmd)
	return cmd
}

// runOnce runs a worker to completion. An interrupt stops it between
// files; that is reported in the summary, not as an error.
func runOnce(ctx context.Context, rc internal.RunConfig, obs internal.Observer) error {
	w := internal.NewWorker(rc, internal.NewCancelToken(), obs)
	_, err := w.Run(ctx)
	return err
}

func init() {
	rootCmd.AddCommand(
		newRunCommand(internal.CommandCopy, "Copy media files into the output tree"),
		newRunCommand(internal.CommandMove, "Move media files into the output tree"),
		newRunCommand(internal.CommandSimulate, "Show where media files would go without touching them"),
	)
}
