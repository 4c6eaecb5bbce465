// Package orchestration coordinates the full voice turn pipeline: microphone
// capture, VAD-driven turn taking, transcription, streamed generation,
// sentence-by-sentence synthesis and gapless playback, with barge-in.
//
// Every state transition runs on a single event loop; device callbacks and
// the goroutines a turn spawns only push events. Events carry the turn they
// belong to, so anything resolving after a barge-in is dropped as stale.
package orchestration

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kolvoice/kol-core/core/audio"
	"github.com/kolvoice/kol-core/core/llms"
	"github.com/kolvoice/kol-core/core/speechtotext"
	"github.com/kolvoice/kol-core/core/texttospeech"
	"github.com/kolvoice/kol-core/core/vad"
	"github.com/kolvoice/kol-core/core/wakeword"
)

const eventQueueSize = 64

type Orchestrator struct {
	speechToText SpeechToText
	llm          LLM
	textToSpeech TextToSpeech
	capture      audio.CaptureClient
	player       audio.PlaybackClient

	vadConfig        vad.Config
	classifierLoader vad.ClassifierLoader
	wakeWordConfig   wakeword.Config

	systemPrompt string
	model        string
	voiceID      string
	language     string

	orchestrateOptions OrchestrateOptions
	baseContext        context.Context

	playback  *PlaybackQueue
	splitter  *sentenceSplitter
	turnScope *canceller
	recorder  *recorder
	wakeWord  *wakeword.Detector

	events    chan event
	loopDone  chan struct{}
	started   bool
	closeOnce sync.Once

	mu          sync.Mutex
	state       State
	turn        int
	continuous  bool
	messages    []llms.Message
	vadDetector *vad.Detector

	// loop-owned turn scratch state
	partialResponse string
	enqueuedAudio   bool
	responseDone    bool
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		vadConfig:      vad.DefaultConfig(),
		wakeWordConfig: wakeword.DefaultConfig(),
		baseContext:    context.Background(),
		events:         make(chan event, eventQueueSize),
		loopDone:       make(chan struct{}),
		state:          StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.splitter = newSentenceSplitter(o.enqueueFragment)
	o.recorder = newRecorder(o.capture)
	return o
}

// Orchestrate starts the event loop. Call it at most once per orchestrator
// instance; ctx cancellation tears the orchestrator down.
func (o *Orchestrator) Orchestrate(ctx context.Context, opts ...OrchestrateOption) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator already started")
	}
	o.started = true
	o.mu.Unlock()

	o.orchestrateOptions = OrchestrateOptions{}
	for _, opt := range opts {
		opt(&o.orchestrateOptions)
	}

	o.baseContext = ctx
	o.turnScope = newCanceller(ctx)
	o.playback = NewPlaybackQueue(ctx, o.player,
		WithItemErrorCallback(func(err error) {
			o.push(turnErrorEvent{turn: o.currentTurn(), err: fmt.Errorf("playback item failed: %w", err)})
		}),
		WithDrainedCallback(func() {
			o.push(playbackDrainedEvent{turn: o.currentTurn()})
		}),
	)

	wakeWord, err := wakeword.NewDetector(o.wakeWordConfig,
		wakeword.WithIgnoredCallback(func(transcript string) {
			if o.orchestrateOptions.onIgnoredSpeech != nil {
				o.orchestrateOptions.onIgnoredSpeech(transcript)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to configure wake word detection: %w", err)
	}
	o.wakeWord = wakeWord

	go o.run()
	go func() {
		<-ctx.Done()
		o.Close()
	}()
	return nil
}

func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		started := o.started
		o.mu.Unlock()
		if !started {
			return
		}
		o.push(stopEvent{})
		<-o.loopDone
	})
}

// EnableContinuousMode acquires the microphone, starts the VAD, and moves the
// orchestrator from idle to listening. Mutually exclusive with push-to-talk.
func (o *Orchestrator) EnableContinuousMode() error {
	if o.capture == nil {
		return fmt.Errorf("no capture client configured")
	}

	o.mu.Lock()
	if o.vadDetector != nil {
		o.mu.Unlock()
		return nil
	}
	if o.state == StateRecording {
		o.mu.Unlock()
		return fmt.Errorf("cannot enable continuous mode while recording")
	}
	o.mu.Unlock()

	detector, err := vad.NewDetector(o.classifierLoader,
		vad.WithConfig(o.vadConfig),
		vad.WithSpeechStartCallback(func() { o.push(speechStartedEvent{}) }),
		vad.WithSpeechEndCallback(func(samples []float32) { o.push(speechEndedEvent{samples: samples}) }),
		vad.WithMisfireCallback(func() { o.push(misfireEvent{}) }),
		vad.WithErrorCallback(func(err error) {
			o.push(turnErrorEvent{turn: o.currentTurn(), err: fmt.Errorf("voice activity detection failed: %w", err)})
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to configure voice activity detection: %w", err)
	}

	detector.Start(o.baseContext)
	if err := o.capture.StartCapture(o.baseContext, detector.ProcessPCM16); err != nil {
		detector.Stop()
		return fmt.Errorf("failed to start capture: %w", err)
	}

	o.mu.Lock()
	o.vadDetector = detector
	o.mu.Unlock()
	o.push(continuousEnabledEvent{})
	return nil
}

// DisableContinuousMode releases the microphone, stops the VAD, aborts any
// in-flight turn, and returns the orchestrator to idle.
func (o *Orchestrator) DisableContinuousMode() error {
	o.mu.Lock()
	detector := o.vadDetector
	o.vadDetector = nil
	o.mu.Unlock()

	if detector == nil {
		return nil
	}

	var captureErr error
	if err := o.capture.StopCapture(); err != nil {
		captureErr = fmt.Errorf("failed to stop capture: %w", err)
	}
	detector.Stop()
	o.push(continuousDisabledEvent{})
	return captureErr
}

// StartRecording begins a push-to-talk capture.
func (o *Orchestrator) StartRecording() error {
	if o.capture == nil {
		return fmt.Errorf("no capture client configured")
	}

	o.mu.Lock()
	if o.vadDetector != nil {
		o.mu.Unlock()
		return fmt.Errorf("cannot record while continuous mode holds the microphone")
	}
	if o.state.processing() || o.state == StateRecording {
		o.mu.Unlock()
		return fmt.Errorf("cannot record while a turn is in flight")
	}
	o.mu.Unlock()

	if err := o.recorder.Start(o.baseContext); err != nil {
		return err
	}
	o.push(recordingStartedEvent{})
	return nil
}

// StopRecording releases the microphone and submits the captured utterance
// for transcription.
func (o *Orchestrator) StopRecording() error {
	pcm, err := o.recorder.Stop()
	if err != nil {
		return err
	}
	o.push(recordingStoppedEvent{pcm: pcm})
	return nil
}

// CancelRecording releases the microphone and discards the capture.
func (o *Orchestrator) CancelRecording() error {
	if err := o.recorder.Cancel(); err != nil {
		return err
	}
	o.push(cancelTurnEvent{})
	return nil
}

// SendPrompt starts a turn from text, interrupting any response in flight.
func (o *Orchestrator) SendPrompt(prompt string) {
	o.push(promptEvent{text: prompt})
}

// CancelTurn aborts the in-flight turn, if any.
func (o *Orchestrator) CancelTurn() {
	o.push(cancelTurnEvent{})
}

// Complete runs one blocking, non-spoken exchange against the same history.
func (o *Orchestrator) Complete(ctx context.Context, prompt string) (string, error) {
	if o.llm == nil {
		return "", fmt.Errorf("no llm client configured")
	}

	o.appendMessage(llms.UserMessage(prompt))
	response, err := o.llm.Complete(ctx, o.Messages(), o.promptOptions()...)
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}
	o.appendMessage(llms.AssistantMessage(response))
	return response, nil
}

// State returns the current turn state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Messages returns a snapshot of the conversation history.
func (o *Orchestrator) Messages() []llms.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]llms.Message(nil), o.messages...)
}

func (o *Orchestrator) push(ev event) {
	select {
	case o.events <- ev:
	case <-o.loopDone:
	}
}

// pushFromLoop queues an event originating from inside the event loop. The
// loop must never block on its own channel, so a full queue falls back to an
// asynchronous send.
func (o *Orchestrator) pushFromLoop(ev event) {
	select {
	case o.events <- ev:
	default:
		go o.push(ev)
	}
}

func (o *Orchestrator) currentTurn() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.turn
}

func (o *Orchestrator) run() {
	defer close(o.loopDone)
	for ev := range o.events {
		if _, ok := ev.(stopEvent); ok {
			o.teardown()
			return
		}
		o.handle(ev)
	}
}

func (o *Orchestrator) handle(ev event) {
	switch ev := ev.(type) {
	case continuousEnabledEvent:
		o.setContinuous(true)
		if o.State() == StateIdle {
			o.setState(StateListening)
		}

	case continuousDisabledEvent:
		o.setContinuous(false)
		o.interruptTurn()
		o.setState(StateIdle)

	case speechStartedEvent:
		switch state := o.State(); {
		case state == StateListening:
			o.setState(StateSpeaking)
		case state.processing():
			// Barge-in: the user speaking always wins over an assistant
			// currently responding.
			o.interruptTurn()
			o.setState(StateSpeaking)
		}

	case misfireEvent:
		if o.State() == StateSpeaking {
			o.setState(StateListening)
		}

	case speechEndedEvent:
		if o.State() != StateSpeaking {
			return
		}
		o.startTranscription(audio.EncodeWAVFromFloat32(ev.samples, o.captureSampleRate()))

	case recordingStartedEvent:
		o.setState(StateRecording)

	case recordingStoppedEvent:
		if o.State() != StateRecording {
			return
		}
		if len(ev.pcm) == 0 {
			o.finishTurn()
			return
		}
		o.startTranscription(audio.EncodeWAV(ev.pcm, o.captureSampleRate()))

	case promptEvent:
		if o.State().processing() {
			o.interruptTurn()
		}
		o.startTurn(ev.text)

	case transcriptionEvent:
		if o.stale(ev.turn) || o.State() != StateTranscribing {
			return
		}
		transcript := strings.TrimSpace(ev.transcript)
		if transcript == "" {
			// A blank transcript is a no-op turn, not an error.
			o.finishTurn()
			return
		}
		command, act := o.wakeWord.Feed(transcript)
		if !act || command == "" {
			o.finishTurn()
			return
		}
		if o.orchestrateOptions.onTranscription != nil {
			o.orchestrateOptions.onTranscription(command)
		}
		o.startTurn(command)

	case responseDeltaEvent:
		if o.stale(ev.turn) {
			return
		}
		if o.State() == StateThinking {
			o.setState(StateResponding)
		}
		o.partialResponse += ev.delta
		if o.orchestrateOptions.onResponse != nil {
			o.orchestrateOptions.onResponse(ev.delta, o.partialResponse)
		}
		o.splitter.Push(ev.delta)

	case responseEndedEvent:
		if o.stale(ev.turn) {
			return
		}
		o.responseDone = true
		o.splitter.Done()
		if ev.response != "" {
			o.appendMessage(llms.AssistantMessage(ev.response))
		}
		if o.orchestrateOptions.onResponseEnd != nil {
			o.orchestrateOptions.onResponseEnd(ev.response)
		}
		if !o.enqueuedAudio || !o.playback.Playing() {
			o.finishTurn()
		}

	case playbackDrainedEvent:
		if o.stale(ev.turn) {
			return
		}
		if o.State() == StateResponding && o.responseDone {
			o.finishTurn()
		}

	case cancelTurnEvent:
		if o.State() == StateRecording {
			if err := o.recorder.Cancel(); err != nil {
				o.recordTurnError(err)
			}
			o.finishTurn()
			return
		}
		if o.State().processing() {
			o.interruptTurn()
			o.finishTurn()
		}

	case turnErrorEvent:
		if o.stale(ev.turn) {
			return
		}
		o.recordTurnError(ev.err)
		if o.orchestrateOptions.onError != nil {
			o.orchestrateOptions.onError(ev.err)
		}
		o.interruptTurn()
		o.finishTurn()
	}
}

// startTranscription moves to transcribing and resolves the utterance off
// the loop. The result comes back as a transcription or turn error event.
func (o *Orchestrator) startTranscription(wav []byte) {
	o.setState(StateTranscribing)

	if o.speechToText == nil {
		o.pushFromLoop(turnErrorEvent{turn: o.currentTurn(), err: fmt.Errorf("no speech-to-text client configured")})
		return
	}

	turn := o.currentTurn()
	ctx := o.turnScope.Context()
	go func() {
		ctx, span := tracer.Start(ctx, "transcribe utterance")
		defer span.End()

		opts := []speechtotext.TranscriptionOption{}
		if o.language != "" {
			opts = append(opts, speechtotext.WithLanguage(o.language))
		}
		transcript, err := o.speechToText.TranscribeBlob(ctx, wav, opts...)
		if err != nil {
			if ctx.Err() == nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				o.push(turnErrorEvent{turn: turn, err: fmt.Errorf("transcription failed: %w", err)})
			}
			return
		}
		o.push(transcriptionEvent{turn: turn, transcript: transcript})
	}()
}

// startTurn appends the user message and begins streaming the response.
func (o *Orchestrator) startTurn(prompt string) {
	if o.llm == nil {
		o.setState(StateThinking)
		o.pushFromLoop(turnErrorEvent{turn: o.currentTurn(), err: fmt.Errorf("no llm client configured")})
		return
	}

	o.appendMessage(llms.UserMessage(prompt))
	o.setState(StateThinking)

	turn := o.currentTurn()
	ctx := o.turnScope.Context()
	stream := o.llm.StreamComplete(o.Messages(), o.promptOptions()...)
	go func() {
		ctx, span := tracer.Start(ctx, "generate response")
		defer span.End()

		var response strings.Builder
		for delta, err := range stream.Chunks(ctx) {
			if err != nil {
				if ctx.Err() == nil {
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
					o.push(turnErrorEvent{turn: turn, err: fmt.Errorf("response stream failed: %w", err)})
				}
				return
			}
			response.WriteString(delta)
			o.push(responseDeltaEvent{turn: turn, delta: delta})
		}
		if ctx.Err() != nil {
			return
		}
		o.push(responseEndedEvent{turn: turn, response: response.String()})
	}()
}

// enqueueFragment is the splitter's sink: one synthesis fetch per fragment,
// enqueued in emission order. It runs synchronously on the event loop.
func (o *Orchestrator) enqueueFragment(fragment string) {
	if o.textToSpeech == nil || o.player == nil {
		return
	}

	o.enqueuedAudio = true
	opts := []texttospeech.SynthesisOption{}
	if o.voiceID != "" {
		opts = append(opts, texttospeech.WithVoice(o.voiceID))
	}
	o.playback.Enqueue(func(ctx context.Context) ([]byte, error) {
		return o.textToSpeech.Synthesize(ctx, fragment, opts...)
	})
}

// interruptTurn aborts everything the current turn has in flight and
// invalidates its straggler events.
func (o *Orchestrator) interruptTurn() {
	o.turnScope.Cancel()
	o.playback.Abort()
	o.splitter.Reset()
	o.partialResponse = ""
	o.enqueuedAudio = false
	o.responseDone = false

	o.mu.Lock()
	o.turn++
	o.mu.Unlock()
}

// finishTurn resets turn scratch state and returns to listening or idle.
func (o *Orchestrator) finishTurn() {
	o.partialResponse = ""
	o.enqueuedAudio = false
	o.responseDone = false

	o.mu.Lock()
	o.turn++
	continuous := o.continuous
	o.mu.Unlock()

	if continuous {
		o.setState(StateListening)
	} else {
		o.setState(StateIdle)
	}
}

// teardown runs on the event loop right before it exits, so it must not push
// events; devices are shut down inline.
func (o *Orchestrator) teardown() {
	o.mu.Lock()
	detector := o.vadDetector
	o.vadDetector = nil
	o.mu.Unlock()

	if detector != nil {
		if err := o.capture.StopCapture(); err != nil {
			o.recordTurnError(fmt.Errorf("failed to stop capture: %w", err))
		}
		detector.Stop()
	}
	if err := o.recorder.Cancel(); err != nil {
		o.recordTurnError(err)
	}
	o.playback.Close()
	o.turnScope.Close()
	o.splitter.Reset()
	o.setState(StateIdle)
}

func (o *Orchestrator) setState(state State) {
	o.mu.Lock()
	changed := o.state != state
	o.state = state
	o.mu.Unlock()

	if changed && o.orchestrateOptions.onStateChange != nil {
		o.orchestrateOptions.onStateChange(state)
	}
}

func (o *Orchestrator) setContinuous(continuous bool) {
	o.mu.Lock()
	o.continuous = continuous
	o.mu.Unlock()
}

func (o *Orchestrator) stale(turn int) bool {
	return turn != o.currentTurn()
}

func (o *Orchestrator) appendMessage(message llms.Message) {
	o.mu.Lock()
	o.messages = append(o.messages, message)
	snapshot := append([]llms.Message(nil), o.messages...)
	o.mu.Unlock()

	if o.orchestrateOptions.onMessagesUpdate != nil {
		o.orchestrateOptions.onMessagesUpdate(snapshot)
	}
}

func (o *Orchestrator) promptOptions() []llms.PromptOption {
	opts := []llms.PromptOption{}
	if o.systemPrompt != "" {
		opts = append(opts, llms.WithSystemPrompt(o.systemPrompt))
	}
	if o.model != "" {
		opts = append(opts, llms.WithModel(o.model))
	}
	return opts
}

func (o *Orchestrator) captureSampleRate() int {
	if o.capture != nil {
		if info := o.capture.EncodingInfo(); !info.IsZero() {
			return info.SampleRate
		}
	}
	return audio.DefaultSampleRate
}

func (o *Orchestrator) recordTurnError(err error) {
	span := trace.SpanFromContext(o.baseContext)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.Error("turn failed", "error", err)
}
