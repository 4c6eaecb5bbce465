package orchestration

import (
	"context"
	"sync"
)

// canceller is the single abort handle shared by everything a turn puts in
// flight: the streaming completion, per-fragment synthesis fetches, and
// playback. Cancelling invalidates the current scope and immediately opens a
// fresh one for the next turn.
type canceller struct {
	mu     sync.Mutex
	base   context.Context
	ctx    context.Context
	cancel context.CancelFunc
}

func newCanceller(base context.Context) *canceller {
	c := &canceller{base: base}
	c.ctx, c.cancel = context.WithCancel(base)
	return c
}

// Context returns the context of the current scope.
func (c *canceller) Context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

// Cancel aborts the current scope and opens the next one.
func (c *canceller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.ctx, c.cancel = context.WithCancel(c.base)
	c.mu.Unlock()
	cancel()
}

// Close aborts the current scope without opening another.
func (c *canceller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel()
}
