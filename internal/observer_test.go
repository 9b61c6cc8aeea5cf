package internal

import (
	"errors"
	"testing"
)

func TestSummary_Add(t *testing.T) {
	var s Summary
	for _, r := range []ItemResult{
		{Action: ActionCopied, Bytes: 10},
		{Action: ActionCopied, Rotated: true, Bytes: 5},
		{Action: ActionMoved, Bytes: 1},
		{Action: ActionSimulated},
		{Action: ActionDuplicate},
		{Action: ActionNotMedia},
		{Action: ActionError, Err: errors.New("boom")},
		{Action: ActionDuplicateRemoved},
	} {
		s.add(r)
	}
	want := Summary{Processed: 7, Copied: 2, Moved: 1, Rotated: 1, Simulated: 1, Duplicates: 1, NotMedia: 1, Failed: 1, DuplicatesRemoved: 1, Bytes: 16}
	if s != want {
		t.Errorf("summary = %+v, want %+v", s, want)
	}
}

func TestMultiObserver_FansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := MultiObserver{a, b, NopObserver{}}
	m.OnStart(2)
	m.OnProgress(1, 2)
	m.OnItem(ItemResult{Source: "x"})
	m.OnFinish(Summary{Total: 2})

	for _, r := range []*recorder{a, b} {
		if r.total != 2 || len(r.progress) != 1 || len(r.items) != 1 || r.summary == nil {
			t.Errorf("observer missed calls: %+v", r)
		}
	}
}
