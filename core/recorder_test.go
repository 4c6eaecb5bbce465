package orchestration

import (
	"context"
	"errors"
	"testing"

	"github.com/kolvoice/kol-core/core/audio"
)

type fakeCapture struct {
	onAudio  func([]byte)
	started  int
	stopped  int
	startErr error
	stopErr  error
}

func (c *fakeCapture) StartCapture(ctx context.Context, onAudio func([]byte)) error {
	if c.startErr != nil {
		return c.startErr
	}
	c.started++
	c.onAudio = onAudio
	return nil
}

func (c *fakeCapture) StopCapture() error {
	c.stopped++
	c.onAudio = nil
	return c.stopErr
}

func (c *fakeCapture) EncodingInfo() audio.EncodingInfo { return audio.GetDefaultEncodingInfo() }

func TestRecorderBuffersAudioIntoOneBlob(t *testing.T) {
	capture := &fakeCapture{}
	rec := newRecorder(capture)

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("failed to start recorder: %v", err)
	}
	capture.onAudio([]byte{1, 2})
	capture.onAudio([]byte{3, 4})

	pcm, err := rec.Stop()
	if err != nil {
		t.Fatalf("failed to stop recorder: %v", err)
	}
	if string(pcm) != string([]byte{1, 2, 3, 4}) {
		t.Errorf("unexpected blob %v", pcm)
	}
	if capture.stopped != 1 {
		t.Errorf("expected microphone released once, got %d", capture.stopped)
	}
}

func TestRecorderCancelDiscardsAndReleases(t *testing.T) {
	capture := &fakeCapture{}
	rec := newRecorder(capture)

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("failed to start recorder: %v", err)
	}
	capture.onAudio([]byte{9})
	if err := rec.Cancel(); err != nil {
		t.Fatalf("failed to cancel recorder: %v", err)
	}
	if capture.stopped != 1 {
		t.Errorf("expected microphone released on cancel, got %d stops", capture.stopped)
	}

	// Cancel when idle is a no-op.
	if err := rec.Cancel(); err != nil {
		t.Errorf("expected idle cancel to be a no-op, got %v", err)
	}
	if capture.stopped != 1 {
		t.Errorf("expected no extra release, got %d stops", capture.stopped)
	}
}

func TestRecorderStartFailureLeavesIdle(t *testing.T) {
	capture := &fakeCapture{startErr: errors.New("permission denied")}
	rec := newRecorder(capture)

	if err := rec.Start(context.Background()); err == nil {
		t.Fatal("expected start failure to surface")
	}
	if _, err := rec.Stop(); !errors.Is(err, errNotRecording) {
		t.Errorf("expected recorder to stay idle after failed start, got %v", err)
	}
}

func TestRecorderStopReturnsBlobDespiteReleaseError(t *testing.T) {
	capture := &fakeCapture{stopErr: errors.New("device wedged")}
	rec := newRecorder(capture)

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("failed to start recorder: %v", err)
	}
	capture.onAudio([]byte{5, 6})

	pcm, err := rec.Stop()
	if err == nil {
		t.Error("expected release error to surface")
	}
	if len(pcm) != 2 {
		t.Errorf("expected captured blob despite release error, got %v", pcm)
	}
}
