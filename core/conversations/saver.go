package conversations

import (
	"sync"
	"time"
)

const defaultSaveDelay = 500 * time.Millisecond

// Saver debounces writes for a conversation that changes on every streamed
// token. Update replaces any pending snapshot; the latest one is written once
// the delay elapses, or immediately on Flush.
type Saver struct {
	store *Store
	delay time.Duration

	onError func(error)

	mu      sync.Mutex
	timer   *time.Timer
	pending *Conversation
}

type SaverOption func(*Saver)

func WithSaveDelay(delay time.Duration) SaverOption {
	return func(s *Saver) { s.delay = delay }
}

func WithSaveErrorCallback(callback func(error)) SaverOption {
	return func(s *Saver) { s.onError = callback }
}

func NewSaver(store *Store, opts ...SaverOption) *Saver {
	saver := &Saver{store: store, delay: defaultSaveDelay}
	for _, opt := range opts {
		opt(saver)
	}
	return saver
}

func (s *Saver) Update(conversation Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = &conversation
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.flush)
}

// Flush writes any pending snapshot immediately.
func (s *Saver) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.flush()
}

func (s *Saver) flush() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if pending == nil {
		return
	}
	if err := s.store.Save(*pending); err != nil && s.onError != nil {
		s.onError(err)
	}
}
