package cmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"mediacopy/internal"
)

// console shows a worker's progress on the terminal: a progress bar,
// coloured warnings and errors, and a summary at the end.
type console struct {
	out     io.Writer
	errOut  io.Writer
	verbose bool

	bar   *progressbar.ProgressBar
	stats *internal.ErrorStats

	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
}

func newConsole(out, errOut io.Writer, verbose bool) *console {
	return &console{
		out:     out,
		errOut:  errOut,
		verbose: verbose,
		stats:   internal.NewErrorStats(),
		red:     color.New(color.FgRed),
		yellow:  color.New(color.FgYellow),
		cyan:    color.New(color.FgCyan),
	}
}

func (c *console) OnStart(total int) {
	c.stats = internal.NewErrorStats()
	c.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(c.errOut),
		progressbar.OptionSetDescription("Processing"),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionClearOnFinish(),
	)
}

func (c *console) OnProgress(done, total int) {
	if c.bar != nil {
		_ = c.bar.Set(done)
	}
}

func (c *console) OnItem(r internal.ItemResult) {
	if r.Err != nil {
		c.stats.Add(internal.CategorizeError(r.Source, r.Err))
	}
}

func (c *console) OnLog(level logrus.Level, msg string) {
	var col *color.Color
	switch {
	case level <= logrus.ErrorLevel:
		col = c.red
	case level == logrus.WarnLevel:
		col = c.yellow
	case c.verbose:
		col = c.cyan
	default:
		return
	}
	if c.bar != nil {
		_ = c.bar.Clear()
	}
	col.Fprintln(c.errOut, msg)
}

func (c *console) OnFinish(s internal.Summary) {
	if c.bar != nil {
		_ = c.bar.Finish()
		c.bar = nil
	}

	if s.Cancelled {
		c.yellow.Fprintf(c.out, "Cancelled after %d of %d files\n", s.Processed, s.Total)
	}
	fmt.Fprintf(c.out, "%d files: %d copied, %d moved, %d simulated, %d rotated\n",
		s.Processed, s.Copied, s.Moved, s.Simulated, s.Rotated)
	fmt.Fprintf(c.out, "%d duplicates skipped, %d removed after the run, %d not media, %d failed\n",
		s.Duplicates, s.DuplicatesRemoved, s.NotMedia, s.Failed)
	if s.Bytes > 0 {
		fmt.Fprintf(c.out, "%s written\n", humanize.Bytes(uint64(s.Bytes)))
	}
	if c.stats.Total > 0 {
		fmt.Fprintln(c.out)
		fmt.Fprint(c.out, c.stats.Report())
	}
}
