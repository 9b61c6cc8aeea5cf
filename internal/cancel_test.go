package internal

import (
	"testing"
	"time"
)

func TestCancelToken_CheckpointConsumesCancel(t *testing.T) {
	tok := NewCancelToken()
	if !tok.checkpoint() {
		t.Fatal("fresh token should let the worker continue")
	}
	tok.Cancel()
	if tok.checkpoint() {
		t.Fatal("cancelled token should stop the worker")
	}
	if !tok.checkpoint() {
		t.Fatal("cancel must be cleared once acknowledged")
	}
}

func TestCancelToken_PauseBlocksUntilResume(t *testing.T) {
	tok := NewCancelToken()
	tok.Pause()
	if !tok.Paused() {
		t.Fatal("Paused should report true")
	}

	result := make(chan bool)
	go func() { result <- tok.checkpoint() }()

	select {
	case <-result:
		t.Fatal("checkpoint returned while paused")
	case <-time.After(50 * time.Millisecond):
	}

	tok.Resume()
	select {
	case ok := <-result:
		if !ok {
			t.Fatal("resume should continue, not cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("checkpoint still blocked after Resume")
	}
}

func TestCancelToken_CancelWhilePaused(t *testing.T) {
	tok := NewCancelToken()
	tok.Pause()
	result := make(chan bool)
	go func() { result <- tok.checkpoint() }()

	tok.Cancel()
	select {
	case ok := <-result:
		if ok {
			t.Fatal("cancel while paused should stop the worker")
		}
	case <-time.After(time.Second):
		t.Fatal("checkpoint still blocked after Cancel")
	}
}

func TestCancelToken_KillWaitsForWorker(t *testing.T) {
	tok := NewCancelToken()
	tok.begin()

	finished := make(chan struct{})
	go func() {
		for tok.checkpoint() {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(20 * time.Millisecond)
		close(finished)
		tok.end()
	}()

	tok.Kill()
	select {
	case <-finished:
	default:
		t.Fatal("Kill returned before the worker finished")
	}
	if tok.Running() {
		t.Fatal("token still marked running")
	}
}

func TestCancelToken_KillWithoutWorker(t *testing.T) {
	done := make(chan struct{})
	go func() {
		NewCancelToken().Kill()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Kill blocked with no worker running")
	}
}
