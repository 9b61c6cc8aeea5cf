package internal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_SettlesAfterNewFiles(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "sorted")
	if err := os.Mkdir(out, 0755); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(root, out)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	settled := w.Settled(ctx, 100*time.Millisecond)

	writeFile(t, root, "a.jpg", []byte("a"))
	select {
	case <-settled:
	case <-time.After(5 * time.Second):
		t.Fatal("no settle signal after a new file")
	}

	// Output, hidden and partial files do not trigger a run.
	writeFile(t, out, "x.jpg", []byte("x"))
	writeFile(t, root, ".hidden.jpg", []byte("h"))
	writeFile(t, root, "b.jpg.part", []byte("p"))
	select {
	case <-settled:
		t.Fatal("ignored files triggered a run")
	case <-time.After(500 * time.Millisecond):
	}

	cancel()
	select {
	case _, ok := <-settled:
		if ok {
			t.Fatal("expected the channel to close")
		}
	case <-time.After(time.Second):
		t.Fatal("Settled did not stop with its context")
	}
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(root, "")
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	settled := w.Settled(ctx, 100*time.Millisecond)

	if err := os.Mkdir(filepath.Join(root, "trip"), 0755); err != nil {
		t.Fatal(err)
	}
	select {
	case <-settled:
	case <-time.After(5 * time.Second):
		t.Fatal("no settle signal after a new directory")
	}

	writeFile(t, root, "trip/a.jpg", []byte("a"))
	select {
	case <-settled:
	case <-time.After(5 * time.Second):
		t.Fatal("file in a new directory went unnoticed")
	}
}

func TestIsPartial(t *testing.T) {
	for name, want := range map[string]bool{
		"a.jpg":            false,
		"a.jpg.tmp":        true,
		"movie.MP4.part":   true,
		"dl.crdownload":    true,
		"backup~":          true,
		"tmp/holiday.heic": false,
	} {
		if got := isPartial(name); got != want {
			t.Errorf("isPartial(%q) = %v", name, got)
		}
	}
}
