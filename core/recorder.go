package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kolvoice/kol-core/core/audio"
)

var errNotRecording = errors.New("not recording")

// recorder buffers raw capture audio into a single blob for push-to-talk.
// The microphone is acquired on Start and released on every exit path: Stop,
// Cancel, and Start failure.
type recorder struct {
	capture audio.CaptureClient

	mu     sync.Mutex
	pcm    []byte
	active bool
}

func newRecorder(capture audio.CaptureClient) *recorder {
	return &recorder{capture: capture}
}

func (r *recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return fmt.Errorf("already recording")
	}
	r.active = true
	r.pcm = nil
	r.mu.Unlock()

	if err := r.capture.StartCapture(ctx, r.append); err != nil {
		r.mu.Lock()
		r.active = false
		r.mu.Unlock()
		return fmt.Errorf("failed to start capture: %w", err)
	}
	return nil
}

func (r *recorder) append(chunk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	r.pcm = append(r.pcm, chunk...)
}

// Stop releases the microphone and returns the captured blob. The blob is
// returned even when release fails; the caller decides what to surface.
func (r *recorder) Stop() ([]byte, error) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return nil, errNotRecording
	}
	r.active = false
	pcm := r.pcm
	r.pcm = nil
	r.mu.Unlock()

	if err := r.capture.StopCapture(); err != nil {
		return pcm, fmt.Errorf("failed to stop capture: %w", err)
	}
	return pcm, nil
}

// Cancel releases the microphone and discards anything captured.
func (r *recorder) Cancel() error {
	_, err := r.Stop()
	if errors.Is(err, errNotRecording) {
		return nil
	}
	return err
}
