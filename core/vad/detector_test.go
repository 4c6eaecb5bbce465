package vad

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// scriptedClassifier returns a fixed sequence of probabilities, then silence.
type scriptedClassifier struct {
	probabilities []float64
	calls         int
	resets        int
	closed        bool
}

func (c *scriptedClassifier) SpeechProbability([]float32) (float64, error) {
	defer func() { c.calls++ }()
	if c.calls < len(c.probabilities) {
		return c.probabilities[c.calls], nil
	}
	return 0, nil
}

func (c *scriptedClassifier) Reset() { c.resets++ }
func (c *scriptedClassifier) Close() { c.closed = true }

func immediateLoader(classifier Classifier) ClassifierLoader {
	return LoaderFunc(func(context.Context) (Classifier, error) {
		return classifier, nil
	})
}

// frame returns 30ms of 16kHz samples at a constant level. The level itself
// is ignored by scriptedClassifier; only the frame duration matters.
func frame() []float32 {
	return make([]float32, 480)
}

func startedDetector(t *testing.T, classifier Classifier, opts ...DetectorOption) *Detector {
	t.Helper()

	detector, err := NewDetector(immediateLoader(classifier), opts...)
	if err != nil {
		t.Fatalf("failed to create detector: %v", err)
	}
	detector.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for detector.State() != StateListening {
		if time.Now().After(deadline) {
			t.Fatalf("detector never reached listening state, stuck in %q", detector.State())
		}
		time.Sleep(time.Millisecond)
	}
	return detector
}

func TestDetectorEmitsSpeechStartAndEnd(t *testing.T) {
	// 6 speech frames (180ms >= 150ms min), then silence through the 300ms
	// redemption window.
	classifier := &scriptedClassifier{probabilities: []float64{
		0.9, 0.9, 0.9, 0.9, 0.9, 0.9,
	}}

	started := make(chan struct{}, 1)
	ended := make(chan []float32, 1)
	misfired := make(chan struct{}, 1)

	detector := startedDetector(t, classifier,
		WithSpeechStartCallback(func() { started <- struct{}{} }),
		WithSpeechEndCallback(func(samples []float32) { ended <- samples }),
		WithMisfireCallback(func() { misfired <- struct{}{} }),
	)
	defer detector.Stop()

	for range 16 {
		detector.Process(frame())
	}

	select {
	case <-started:
	default:
		t.Fatalf("expected speech start")
	}

	select {
	case samples := <-ended:
		if len(samples) == 0 {
			t.Fatalf("expected utterance samples")
		}
	default:
		t.Fatalf("expected speech end")
	}

	select {
	case <-misfired:
		t.Fatalf("did not expect a misfire")
	default:
	}

	if detector.State() != StateListening {
		t.Fatalf("expected detector back in listening state, got %q", detector.State())
	}
}

func TestDetectorMisfireBelowMinSpeech(t *testing.T) {
	// 2 speech frames (60ms < 150ms min), then silence.
	classifier := &scriptedClassifier{probabilities: []float64{0.9, 0.9}}

	started := make(chan struct{}, 1)
	ended := make(chan []float32, 1)
	misfired := make(chan struct{}, 1)

	detector := startedDetector(t, classifier,
		WithSpeechStartCallback(func() { started <- struct{}{} }),
		WithSpeechEndCallback(func(samples []float32) { ended <- samples }),
		WithMisfireCallback(func() { misfired <- struct{}{} }),
	)
	defer detector.Stop()

	for range 14 {
		detector.Process(frame())
	}

	select {
	case <-started:
	default:
		t.Fatalf("expected speech start before the misfire")
	}

	select {
	case <-misfired:
	default:
		t.Fatalf("expected a misfire for an utterance below minimum speech duration")
	}

	select {
	case <-ended:
		t.Fatalf("misfire must not invoke the speech end callback")
	default:
	}
}

func TestDetectorHysteresisKeepsUtteranceAlive(t *testing.T) {
	// Probabilities between the thresholds neither extend speech nor count
	// towards the redemption window.
	classifier := &scriptedClassifier{probabilities: []float64{
		0.9, 0.9, 0.9, 0.9, 0.9, 0.9,
		0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5,
		0.9, 0.9,
	}}

	ended := make(chan []float32, 1)
	detector := startedDetector(t, classifier,
		WithSpeechEndCallback(func(samples []float32) { ended <- samples }),
	)
	defer detector.Stop()

	for range 18 {
		detector.Process(frame())
	}

	select {
	case <-ended:
		t.Fatalf("utterance must stay open while probabilities sit between thresholds")
	default:
	}
	if detector.State() != StateSpeaking {
		t.Fatalf("expected detector still speaking, got %q", detector.State())
	}
}

func TestDetectorLoadFailureSurfacesOnceAndStops(t *testing.T) {
	loadErr := fmt.Errorf("model unavailable")
	errs := make(chan error, 2)

	detector, err := NewDetector(
		LoaderFunc(func(context.Context) (Classifier, error) { return nil, loadErr }),
		WithErrorCallback(func(err error) { errs <- err }),
	)
	if err != nil {
		t.Fatalf("failed to create detector: %v", err)
	}

	detector.Start(context.Background())

	select {
	case err := <-errs:
		if err == nil {
			t.Fatalf("expected a load error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for load error")
	}

	if detector.State() != StateStopped {
		t.Fatalf("expected detector stopped after load failure, got %q", detector.State())
	}

	select {
	case <-errs:
		t.Fatalf("load error must surface exactly once")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDetectorStopReleasesClassifier(t *testing.T) {
	classifier := &scriptedClassifier{}
	detector := startedDetector(t, classifier)

	detector.Stop()

	if !classifier.closed {
		t.Fatalf("expected classifier to be released on stop")
	}
	if detector.State() != StateStopped {
		t.Fatalf("expected stopped state, got %q", detector.State())
	}
}

func TestNewDetectorRejectsInvertedThresholds(t *testing.T) {
	_, err := NewDetector(immediateLoader(&scriptedClassifier{}), WithConfig(Config{
		PositiveSpeechThreshold: 0.3,
		NegativeSpeechThreshold: 0.8,
	}))
	if err == nil {
		t.Fatalf("expected config validation error for negative >= positive threshold")
	}
}
