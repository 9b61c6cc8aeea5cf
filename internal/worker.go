package internal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// Worker runs one walk → extract → register → operate pass over the
// input directory. Files are handled one at a time, in lexical order.
type Worker struct {
	cfg   RunConfig
	token *CancelToken
	obs   Observer

	done    chan struct{}
	summary Summary
	err     error
}

func NewWorker(cfg RunConfig, token *CancelToken, obs Observer) *Worker {
	if token == nil {
		token = NewCancelToken()
	}
	if obs == nil {
		obs = NopObserver{}
	}
	return &Worker{cfg: cfg, token: token, obs: obs}
}

// Start runs the worker in its own goroutine. Use Wait for the result.
// The token is claimed before Start returns, so a Kill issued right after
// it waits for the run.
func (w *Worker) Start(ctx context.Context) {
	w.done = make(chan struct{})
	w.token.begin()
	go func() {
		defer close(w.done)
		w.summary, w.err = w.run(ctx)
	}()
}

func (w *Worker) Wait() (Summary, error) {
	<-w.done
	return w.summary, w.err
}

func (w *Worker) Suspend() { w.token.Pause() }
func (w *Worker) Resume()  { w.token.Resume() }

// Kill stops the worker between files and returns once it has finished.
func (w *Worker) Kill() { w.token.Kill() }

// Run processes the input synchronously. Per-file failures are reported to
// the observer and do not stop the run; the returned error is reserved for
// setup problems and ErrNoUniqueDestination. Cancellation is not an error.
func (w *Worker) Run(ctx context.Context) (Summary, error) {
	w.token.begin()
	return w.run(ctx)
}

// run expects the token to be claimed already and releases it on return.
func (w *Worker) run(ctx context.Context) (Summary, error) {
	defer w.token.end()
	stop := context.AfterFunc(ctx, w.token.Cancel)
	defer stop()

	cfg := w.cfg
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return Summary{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	logger, err := NewLogger(cfg.LogPath())
	if err != nil {
		return Summary{}, err
	}
	defer logger.Close()

	obs := MultiObserver{w.obs}
	logger.Forward(obs)
	if path := cfg.JournalPath(); path != "" {
		j, err := NewJournal(path, cfg)
		if err != nil {
			return Summary{}, err
		}
		defer func() {
			if err := j.Close(); err != nil {
				logger.Errorf("journal: %v", err)
			}
		}()
		obs = append(obs, j)
	}

	extractor := NewExtractor(logger)
	if cfg.UseExiftool {
		extractor.EnableExiftool(cfg.ExiftoolPath)
	}
	defer extractor.Close()

	op, err := NewOperation(cfg.Command, cfg.Rotate, logger)
	if err != nil {
		return Summary{}, err
	}
	register := NewFileRegister(cfg.OutputDir, cfg.Pattern, cfg.UseUTC, logger)

	scanner := NewScanner(cfg.InputDir, logger)
	scanner.SkipDir(cfg.OutputDir)
	scanner.SkipFile(cfg.LogPath())
	scanner.SkipFile(cfg.JournalPath())

	total, err := scanner.Count()
	if err != nil {
		return Summary{}, fmt.Errorf("error scanning files: %w", err)
	}
	s := Summary{Total: total}
	obs.OnStart(total)
	logger.Infof("%s %s -> %s: %d files", cfg.Command, cfg.InputDir, cfg.OutputDir, total)

	var fatal error
	err = scanner.Walk(func(path string) error {
		if !w.token.checkpoint() {
			s.Cancelled = true
			return fs.SkipAll
		}
		r, err := w.process(path, extractor, register, op, logger)
		if err != nil {
			fatal = err
			return fs.SkipAll
		}
		s.add(r)
		obs.OnItem(r)
		obs.OnProgress(s.Processed, total)
		return nil
	})
	if err != nil {
		fatal = multierr.Append(fatal, fmt.Errorf("error scanning files: %w", err))
	}
	if s.Cancelled {
		logger.Infof("cancelled after %d of %d files", s.Processed, total)
	}

	if cfg.Command != CommandSimulate {
		removed, err := register.RemoveDuplicates()
		for _, path := range removed {
			r := ItemResult{Destination: path, Action: ActionDuplicateRemoved}
			s.add(r)
			obs.OnItem(r)
		}
		for _, err := range multierr.Errors(err) {
			logger.Errorf("duplicate sweep: %v", err)
		}
	}

	obs.OnFinish(s)
	return s, fatal
}

// process handles one file. Only ErrNoUniqueDestination is returned as an
// error; everything else ends up in the result.
func (w *Worker) process(path string, ex *Extractor, reg *FileRegister, op Operation, log logrus.FieldLogger) (ItemResult, error) {
	r := ItemResult{Source: path}
	flog := log.WithField("src", path)

	info, err := ex.Extract(path)
	switch {
	case errors.Is(err, ErrNotMedia):
		flog.Info("not a media file, skipped")
		r.Action = ActionNotMedia
		return r, nil
	case errors.Is(err, ErrInvalidMetadata), errors.Is(err, ErrNoTimestamp):
		flog.Warnf("unusable metadata, skipped: %v", err)
		r.Action, r.Err = ActionNotMedia, err
		return r, nil
	case err != nil:
		flog.Errorf("cannot read: %v", err)
		r.Action, r.Err = ActionError, err
		return r, nil
	}

	dest, ok, err := reg.Add(info)
	if err != nil {
		if errors.Is(err, ErrNoUniqueDestination) {
			flog.Error(err)
			return r, err
		}
		flog.Errorf("cannot place: %v", err)
		r.Action, r.Err = ActionError, err
		return r, nil
	}
	if !ok {
		r.Action = ActionDuplicate
		return r, nil
	}
	r.Destination = dest

	out, err := op.Apply(info, dest)
	if err != nil {
		flog.WithField("dest", dest).Errorf("%s failed: %v", op.Action(), err)
		r.Action, r.Err = ActionError, err
		return r, nil
	}
	r.Action, r.Rotated, r.Bytes = op.Action(), out.Rotated, out.Bytes
	flog.WithField("dest", dest).Info(string(r.Action))
	return r, nil
}
