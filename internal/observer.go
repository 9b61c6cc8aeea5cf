package internal

import "github.com/sirupsen/logrus"

// Action says what happened to one source file.
type Action string

const (
	ActionCopied           Action = "copied"
	ActionMoved            Action = "moved"
	ActionSimulated        Action = "simulated"
	ActionDuplicate        Action = "duplicate"
	ActionNotMedia         Action = "not_media"
	ActionError            Action = "error"
	ActionDuplicateRemoved Action = "duplicate_removed"
)

// ItemResult is reported once per walked file, and once per destination
// removed by the duplicate sweep.
type ItemResult struct {
	Source      string
	Destination string
	Action      Action
	Rotated     bool
	Bytes       int64
	Err         error
}

// Summary holds the counters of a finished run.
type Summary struct {
	Total             int   `json:"total"`
	Processed         int   `json:"processed"`
	Copied            int   `json:"copied"`
	Moved             int   `json:"moved"`
	Rotated           int   `json:"rotated"`
	Simulated         int   `json:"simulated"`
	Duplicates        int   `json:"duplicates"`
	NotMedia          int   `json:"not_media"`
	Failed            int   `json:"failed"`
	DuplicatesRemoved int   `json:"duplicates_removed"`
	Cancelled         bool  `json:"cancelled"`
	Bytes             int64 `json:"bytes"`
}

func (s *Summary) add(r ItemResult) {
	if r.Action != ActionDuplicateRemoved {
		s.Processed++
	}
	if r.Rotated {
		s.Rotated++
	}
	s.Bytes += r.Bytes

	switch r.Action {
	case ActionCopied:
		s.Copied++
	case ActionMoved:
		s.Moved++
	case ActionSimulated:
		s.Simulated++
	case ActionDuplicate:
		s.Duplicates++
	case ActionNotMedia:
		s.NotMedia++
	case ActionError:
		s.Failed++
	case ActionDuplicateRemoved:
		s.DuplicatesRemoved++
	}
}

// Observer receives status from a Worker. Calls come from the worker
// goroutine and must not block it for long.
type Observer interface {
	OnStart(total int)
	OnProgress(done, total int)
	OnItem(r ItemResult)
	OnLog(level logrus.Level, msg string)
	OnFinish(s Summary)
}

// MultiObserver fans every call out to each of its members in order.
type MultiObserver []Observer

func (m MultiObserver) OnStart(total int) {
	for _, o := range m {
		o.OnStart(total)
	}
}

func (m MultiObserver) OnProgress(done, total int) {
	for _, o := range m {
		o.OnProgress(done, total)
	}
}

func (m MultiObserver) OnItem(r ItemResult) {
	for _, o := range m {
		o.OnItem(r)
	}
}

func (m MultiObserver) OnLog(level logrus.Level, msg string) {
	for _, o := range m {
		o.OnLog(level, msg)
	}
}

func (m MultiObserver) OnFinish(s Summary) {
	for _, o := range m {
		o.OnFinish(s)
	}
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) OnStart(int)                {}
func (NopObserver) OnProgress(int, int)        {}
func (NopObserver) OnItem(ItemResult)          {}
func (NopObserver) OnLog(logrus.Level, string) {}
func (NopObserver) OnFinish(Summary)           {}
