package orchestration

import (
	"context"
	"sync"

	"github.com/kolvoice/kol-core/core/audio"
)

// AudioFetch resolves to the synthesized audio for one queued fragment. The
// queue starts the fetch as soon as the item is enqueued; resolution order
// does not affect playback order.
type AudioFetch func(ctx context.Context) ([]byte, error)

type playbackItem struct {
	resolved chan struct{}
	pcm      []byte
	err      error
}

// PlaybackQueue plays an ordered sequence of possibly still-pending audio
// fetches back to back. Item N+1 never starts before item N has finished
// playing; a failed item is reported once and skipped rather than stalling
// the queue.
type PlaybackQueue struct {
	player audio.PlaybackClient

	onItemError   func(error)
	onStateChange func(playing bool)
	onDrained     func()

	mu         sync.Mutex
	items      []*playbackItem
	generation int
	enqueues   int
	running    bool
	baseCtx    context.Context
	cycleCtx   context.Context
	cancel     context.CancelFunc
}

type PlaybackQueueOption func(*PlaybackQueue)

// WithItemErrorCallback is called once per item whose fetch or playback
// failed. Aborted items do not count as failures.
func WithItemErrorCallback(callback func(error)) PlaybackQueueOption {
	return func(q *PlaybackQueue) { q.onItemError = callback }
}

// WithPlayingStateCallback is called with true when the queue leaves idle and
// false when it returns to idle.
func WithPlayingStateCallback(callback func(playing bool)) PlaybackQueueOption {
	return func(q *PlaybackQueue) { q.onStateChange = callback }
}

// WithDrainedCallback is called exactly once each time the queue drains
// naturally. Aborting does not drain, and a drain that a newer enqueue has
// already superseded is not reported.
func WithDrainedCallback(callback func()) PlaybackQueueOption {
	return func(q *PlaybackQueue) { q.onDrained = callback }
}

func NewPlaybackQueue(ctx context.Context, player audio.PlaybackClient, opts ...PlaybackQueueOption) *PlaybackQueue {
	queue := &PlaybackQueue{
		player:  player,
		baseCtx: ctx,
	}
	queue.cycleCtx, queue.cancel = context.WithCancel(ctx)
	for _, opt := range opts {
		opt(queue)
	}
	return queue
}

// Enqueue appends a pending item and starts resolving it immediately. The
// playback loop starts on the first item of a cycle.
func (q *PlaybackQueue) Enqueue(fetch AudioFetch) {
	item := &playbackItem{resolved: make(chan struct{})}

	q.mu.Lock()
	ctx := q.cycleCtx
	generation := q.generation
	q.enqueues++
	q.items = append(q.items, item)
	startLoop := !q.running
	q.running = true
	q.mu.Unlock()

	go func() {
		item.pcm, item.err = fetch(ctx)
		close(item.resolved)
	}()

	if startLoop {
		if q.onStateChange != nil {
			q.onStateChange(true)
		}
		go q.run(ctx, generation)
	}
}

func (q *PlaybackQueue) run(ctx context.Context, generation int) {
	for {
		q.mu.Lock()
		if generation != q.generation {
			q.mu.Unlock()
			return
		}
		if len(q.items) == 0 {
			q.running = false
			enqueues := q.enqueues
			q.mu.Unlock()
			q.finishCycle(generation, enqueues)
			return
		}
		item := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case <-item.resolved:
		case <-ctx.Done():
			return
		}

		if item.err != nil {
			q.reportItemError(ctx, item.err)
			continue
		}
		if len(item.pcm) == 0 {
			continue
		}
		if err := q.player.Play(ctx, item.pcm); err != nil {
			if ctx.Err() != nil {
				return
			}
			q.reportItemError(ctx, err)
		}
	}
}

// finishCycle delivers the idle and drained notifications for a completed
// cycle, dropping them once an abort or a newer enqueue supersedes it.
// Superseding is re-checked between the callbacks; the idle callback may
// itself enqueue.
func (q *PlaybackQueue) finishCycle(generation, enqueues int) {
	if q.superseded(generation, enqueues) {
		return
	}
	if q.onStateChange != nil {
		q.onStateChange(false)
	}
	if q.superseded(generation, enqueues) {
		return
	}
	if q.onDrained != nil {
		q.onDrained()
	}
}

func (q *PlaybackQueue) superseded(generation, enqueues int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return generation != q.generation || enqueues != q.enqueues
}

func (q *PlaybackQueue) reportItemError(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	if q.onItemError != nil {
		q.onItemError(err)
	}
}

// Abort halts playback immediately, cancels in-flight fetches, and discards
// every queued item. The next Enqueue starts a fresh cycle.
func (q *PlaybackQueue) Abort() {
	q.mu.Lock()
	cancel := q.cancel
	wasRunning := q.running
	q.generation++
	q.items = nil
	q.running = false
	q.cycleCtx, q.cancel = context.WithCancel(q.baseCtx)
	q.mu.Unlock()

	cancel()
	if wasRunning && q.onStateChange != nil {
		q.onStateChange(false)
	}
}

// Playing reports whether the queue is currently between its first enqueue
// and the drain (or abort) that ends the cycle.
func (q *PlaybackQueue) Playing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

func (q *PlaybackQueue) Close() {
	q.Abort()
	q.mu.Lock()
	cancel := q.cancel
	q.mu.Unlock()
	cancel()
}
