// Package vad turns a stream of captured audio frames into discrete speech
// events: speech started, speech ended (with the utterance samples), or a
// misfire when an utterance was too short to be usable.
package vad

import (
	"context"
	"fmt"
	"sync"

	"github.com/kolvoice/kol-core/core/audio"
	"go.opentelemetry.io/otel/codes"
)

type State string

const (
	StateStopped   State = "stopped"
	StateLoading   State = "loading"
	StateListening State = "listening"
	StateSpeaking  State = "speaking"
)

type Detector struct {
	loader ClassifierLoader
	config Config

	onSpeechStart func()
	onSpeechEnd   func(samples []float32)
	onMisfire     func()
	onError       func(error)
	onStateChange func(State)

	mu         sync.Mutex
	state      State
	classifier Classifier

	// Utterance accumulation, guarded by mu.
	speechBuffer []float32
	speechMs     float64
	silenceMs    float64

	// padBuffer holds the most recent frames while listening, so the start
	// of an utterance is not clipped.
	padBuffer   [][]float32
	padBufferMs float64

	sampleRate int
}

type DetectorOption func(*Detector)

func WithConfig(config Config) DetectorOption {
	return func(d *Detector) { d.config = config.merged() }
}

func WithSpeechStartCallback(callback func()) DetectorOption {
	return func(d *Detector) { d.onSpeechStart = callback }
}

func WithSpeechEndCallback(callback func(samples []float32)) DetectorOption {
	return func(d *Detector) { d.onSpeechEnd = callback }
}

func WithMisfireCallback(callback func()) DetectorOption {
	return func(d *Detector) { d.onMisfire = callback }
}

// WithErrorCallback registers a callback for classifier load failures. The
// error is surfaced exactly once and the detector remains stopped.
func WithErrorCallback(callback func(error)) DetectorOption {
	return func(d *Detector) { d.onError = callback }
}

func WithStateChangeCallback(callback func(State)) DetectorOption {
	return func(d *Detector) { d.onStateChange = callback }
}

func NewDetector(loader ClassifierLoader, opts ...DetectorOption) (*Detector, error) {
	detector := &Detector{
		loader:        loader,
		config:        DefaultConfig(),
		onSpeechStart: func() {},
		onSpeechEnd:   func([]float32) {},
		onMisfire:     func() {},
		onError:       func(error) {},
		onStateChange: func(State) {},
		state:         StateStopped,
		sampleRate:    audio.DefaultSampleRate,
	}
	for _, opt := range opts {
		opt(detector)
	}

	if err := detector.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid vad config: %w", err)
	}
	if loader == nil {
		return nil, fmt.Errorf("classifier loader is required")
	}

	return detector, nil
}

// Start loads the classifier asynchronously and begins listening once the
// load completes. While the load runs the detector reports StateLoading so
// callers can render a warming-up state.
func (d *Detector) Start(ctx context.Context) {
	d.mu.Lock()
	if d.state != StateStopped {
		d.mu.Unlock()
		return
	}
	d.setStateLocked(StateLoading)
	d.mu.Unlock()

	go func() {
		ctx, span := tracer.Start(ctx, "load vad classifier")
		defer span.End()

		classifier, err := d.loader.Load(ctx)
		if err != nil {
			err = fmt.Errorf("failed to load vad classifier: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			d.mu.Lock()
			d.setStateLocked(StateStopped)
			d.mu.Unlock()
			d.onError(err)
			return
		}

		d.mu.Lock()
		if d.state != StateLoading {
			// Stopped while loading; release the classifier right away.
			d.mu.Unlock()
			closeClassifier(classifier)
			return
		}
		d.classifier = classifier
		d.setStateLocked(StateListening)
		d.mu.Unlock()
	}()
}

// Process scores one frame of normalized samples and advances the speech
// state machine. Frames arriving while stopped or loading are dropped.
func (d *Detector) Process(frame []float32) {
	d.mu.Lock()
	if d.classifier == nil || (d.state != StateListening && d.state != StateSpeaking) {
		d.mu.Unlock()
		return
	}
	classifier := d.classifier
	d.mu.Unlock()

	probability, err := classifier.SpeechProbability(frame)
	if err != nil {
		logger.Warn("vad classifier failed to score frame", "error", err)
		return
	}

	frameMs := float64(len(frame)) / float64(d.sampleRate) * 1000

	d.mu.Lock()
	switch d.state {
	case StateListening:
		if probability >= d.config.PositiveSpeechThreshold {
			d.speechBuffer = d.drainPadBufferLocked()
			d.speechBuffer = append(d.speechBuffer, frame...)
			d.speechMs = frameMs
			d.silenceMs = 0
			d.setStateLocked(StateSpeaking)
			d.mu.Unlock()
			d.onSpeechStart()
			return
		}
		d.appendPadLocked(frame, frameMs)

	case StateSpeaking:
		d.speechBuffer = append(d.speechBuffer, frame...)
		switch {
		case probability >= d.config.PositiveSpeechThreshold:
			d.speechMs += frameMs
			d.silenceMs = 0
		case probability < d.config.NegativeSpeechThreshold:
			d.silenceMs += frameMs
		}

		if d.silenceMs >= float64(d.config.RedemptionMs) {
			samples := d.speechBuffer
			usable := d.speechMs >= float64(d.config.MinSpeechMs)
			d.resetUtteranceLocked()
			d.setStateLocked(StateListening)
			d.mu.Unlock()

			if usable {
				d.onSpeechEnd(samples)
			} else {
				d.onMisfire()
			}
			return
		}
	}
	d.mu.Unlock()
}

// ProcessPCM16 is a convenience wrapper for capture clients that deliver raw
// little-endian 16-bit PCM.
func (d *Detector) ProcessPCM16(pcm []byte) {
	d.Process(audio.PCM16ToFloat32(pcm))
}

func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Stop tears down the detector and releases the classifier. Safe to call in
// any state; a load still in flight is discarded when it completes.
func (d *Detector) Stop() {
	d.mu.Lock()
	classifier := d.classifier
	d.classifier = nil
	d.resetUtteranceLocked()
	d.padBuffer = nil
	d.padBufferMs = 0
	d.setStateLocked(StateStopped)
	d.mu.Unlock()

	closeClassifier(classifier)
}

func (d *Detector) setStateLocked(state State) {
	if d.state == state {
		return
	}
	d.state = state
	go d.onStateChange(state)
}

func (d *Detector) resetUtteranceLocked() {
	d.speechBuffer = nil
	d.speechMs = 0
	d.silenceMs = 0
	if classifier := d.classifier; classifier != nil {
		classifier.Reset()
	}
}

func (d *Detector) appendPadLocked(frame []float32, frameMs float64) {
	d.padBuffer = append(d.padBuffer, frame)
	d.padBufferMs += frameMs
	for len(d.padBuffer) > 0 && d.padBufferMs-float64(len(d.padBuffer[0]))/float64(d.sampleRate)*1000 >= float64(d.config.PreSpeechPadMs) {
		d.padBufferMs -= float64(len(d.padBuffer[0])) / float64(d.sampleRate) * 1000
		d.padBuffer = d.padBuffer[1:]
	}
}

func (d *Detector) drainPadBufferLocked() []float32 {
	var samples []float32
	for _, frame := range d.padBuffer {
		samples = append(samples, frame...)
	}
	d.padBuffer = nil
	d.padBufferMs = 0
	return samples
}

func closeClassifier(classifier Classifier) {
	switch c := classifier.(type) {
	case interface{ Close() error }:
		_ = c.Close()
	case interface{ Close() }:
		c.Close()
	}
}
