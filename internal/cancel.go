package internal

import "sync"

// CancelToken is the shared handle between a running Worker and whoever
// controls it. The worker only looks at it between files.
type CancelToken struct {
	mu      sync.Mutex
	cond    *sync.Cond
	cancel  bool
	paused  bool
	running bool
}

func NewCancelToken() *CancelToken {
	t := &CancelToken{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Cancel asks the worker to stop before its next file and returns at once.
func (t *CancelToken) Cancel() {
	t.mu.Lock()
	t.cancel = true
	t.mu.Unlock()
	t.cond.Broadcast()
}

// Pause holds the worker before its next file until Resume or Cancel.
func (t *CancelToken) Pause() {
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
	t.cond.Broadcast()
}

func (t *CancelToken) Resume() {
	t.mu.Lock()
	t.paused = false
	t.mu.Unlock()
	t.cond.Broadcast()
}

func (t *CancelToken) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// Running reports whether a worker currently holds the token.
func (t *CancelToken) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Kill cancels and blocks until the worker using the token has returned.
// With no worker running it returns at once.
func (t *CancelToken) Kill() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancel = true
	t.cond.Broadcast()
	for t.running {
		t.cond.Wait()
	}
}

// checkpoint is called by the worker before each file. It waits out a
// pause and returns false when a cancel was requested, clearing it.
func (t *CancelToken) checkpoint() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.paused && !t.cancel {
		t.cond.Wait()
	}
	if t.cancel {
		t.cancel = false
		t.cond.Broadcast()
		return false
	}
	return true
}

// begin marks the token as held and drops requests left over from an
// earlier run.
func (t *CancelToken) begin() {
	t.mu.Lock()
	t.cancel = false
	t.running = true
	t.mu.Unlock()
}

func (t *CancelToken) end() {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
	t.cond.Broadcast()
}
