package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// JournalEvent is one line of the run journal.
type JournalEvent struct {
	Event string `json:"event"`
	Ts    string `json:"ts"`
	Run   string `json:"run"`
	Src   string `json:"src,omitempty"`
	Dest  string `json:"dest,omitempty"`
	Op    string `json:"op,omitempty"`
	Size  int64  `json:"size,omitempty"`
	Error string `json:"error,omitempty"`

	// Categorized errors
	ErrorCategory   string `json:"error_category,omitempty"`
	ErrorSeverity   string `json:"error_severity,omitempty"`
	ErrorSuggestion string `json:"error_suggestion,omitempty"`

	// run_start
	InputDir  string `json:"input_dir,omitempty"`
	OutputDir string `json:"output_dir,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	UTC       bool   `json:"utc,omitempty"`
	Command   string `json:"command,omitempty"`
	Total     int    `json:"total,omitempty"`

	// run_end
	Summary *Summary `json:"summary,omitempty"`
}

// Journal appends run events as JSON lines. It is an Observer; write
// failures are kept and returned by Close.
type Journal struct {
	mu  sync.Mutex
	f   *os.File
	run string
	rc  RunConfig
	err error
}

// NewJournal opens path for appending. The run ID is the start time.
func NewJournal(path string, rc RunConfig) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &Journal{
		f:   f,
		run: time.Now().Format("2006-01-02-150405"),
		rc:  rc,
	}, nil
}

func (j *Journal) OnStart(total int) {
	j.write(JournalEvent{
		Event:     "run_start",
		InputDir:  j.rc.InputDir,
		OutputDir: j.rc.OutputDir,
		Pattern:   j.rc.Pattern,
		UTC:       j.rc.UseUTC,
		Command:   string(j.rc.Command),
		Total:     total,
	})
}

func (j *Journal) OnProgress(int, int)        {}
func (j *Journal) OnLog(logrus.Level, string) {}

func (j *Journal) OnItem(r ItemResult) {
	ev := JournalEvent{
		Event: string(r.Action),
		Src:   r.Source,
		Dest:  r.Destination,
		Size:  r.Bytes,
	}
	if r.Rotated {
		ev.Event, ev.Op = "rotated", string(r.Action)
	}
	if r.Err != nil {
		ev.Error = r.Err.Error()
		if pe := CategorizeError(r.Source, r.Err); pe != nil {
			ev.ErrorCategory = string(pe.Category)
			ev.ErrorSeverity = string(pe.Severity)
			ev.ErrorSuggestion = pe.Suggestion
		}
	}
	j.write(ev)
}

func (j *Journal) OnFinish(s Summary) {
	if s.Cancelled {
		j.write(JournalEvent{Event: "cancelled"})
	}
	j.write(JournalEvent{Event: "run_end", Summary: &s})
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return j.err
	}
	if err := j.f.Close(); err != nil && j.err == nil {
		j.err = err
	}
	j.f = nil
	return j.err
}

func (j *Journal) write(ev JournalEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil || j.err != nil {
		return
	}
	ev.Ts = time.Now().UTC().Format(time.RFC3339)
	ev.Run = j.run

	data, err := json.Marshal(ev)
	if err != nil {
		j.err = fmt.Errorf("failed to marshal event: %w", err)
		return
	}
	if _, err := j.f.Write(append(data, '\n')); err != nil {
		j.err = fmt.Errorf("failed to write to journal: %w", err)
		return
	}
	if err := j.f.Sync(); err != nil {
		j.err = err
	}
}
