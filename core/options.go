package orchestration

import (
	"context"

	"github.com/kolvoice/kol-core/core/audio"
	"github.com/kolvoice/kol-core/core/llms"
	"github.com/kolvoice/kol-core/core/speechtotext"
	"github.com/kolvoice/kol-core/core/texttospeech"
	"github.com/kolvoice/kol-core/core/vad"
	"github.com/kolvoice/kol-core/core/wakeword"
)

// SpeechToText transcribes one captured utterance. An empty transcript is a
// valid result, not an error.
type SpeechToText interface {
	TranscribeBlob(ctx context.Context, wav []byte, opts ...speechtotext.TranscriptionOption) (string, error)
}

// LLM generates assistant responses from conversation history.
type LLM interface {
	Complete(ctx context.Context, messages []llms.Message, opts ...llms.PromptOption) (string, error)
	StreamComplete(messages []llms.Message, opts ...llms.PromptOption) llms.Stream
}

// TextToSpeech synthesizes one sentence fragment into raw PCM audio.
type TextToSpeech interface {
	Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) ([]byte, error)
}

type OrchestratorOption func(*Orchestrator)

func WithSpeechToText(client SpeechToText) OrchestratorOption {
	return func(o *Orchestrator) { o.speechToText = client }
}

func WithLLM(client LLM) OrchestratorOption {
	return func(o *Orchestrator) { o.llm = client }
}

func WithTextToSpeech(client TextToSpeech) OrchestratorOption {
	return func(o *Orchestrator) { o.textToSpeech = client }
}

func WithCaptureClient(client audio.CaptureClient) OrchestratorOption {
	return func(o *Orchestrator) { o.capture = client }
}

func WithPlaybackClient(client audio.PlaybackClient) OrchestratorOption {
	return func(o *Orchestrator) { o.player = client }
}

func WithVADConfig(config vad.Config) OrchestratorOption {
	return func(o *Orchestrator) { o.vadConfig = config }
}

func WithClassifierLoader(loader vad.ClassifierLoader) OrchestratorOption {
	return func(o *Orchestrator) { o.classifierLoader = loader }
}

func WithWakeWordConfig(config wakeword.Config) OrchestratorOption {
	return func(o *Orchestrator) { o.wakeWordConfig = config }
}

func WithSystemPrompt(systemPrompt string) OrchestratorOption {
	return func(o *Orchestrator) { o.systemPrompt = systemPrompt }
}

func WithModel(model string) OrchestratorOption {
	return func(o *Orchestrator) { o.model = model }
}

func WithVoice(voiceID string) OrchestratorOption {
	return func(o *Orchestrator) { o.voiceID = voiceID }
}

func WithLanguage(language string) OrchestratorOption {
	return func(o *Orchestrator) { o.language = language }
}

// WithHistory seeds the conversation with previously stored messages.
func WithHistory(messages []llms.Message) OrchestratorOption {
	return func(o *Orchestrator) { o.messages = append([]llms.Message(nil), messages...) }
}

// OrchestrateOptions hold the per-session callbacks. All callbacks are
// invoked from the orchestrator's event loop; they must not block.
type OrchestrateOptions struct {
	onStateChange    func(state State)
	onTranscription  func(transcript string)
	onIgnoredSpeech  func(transcript string)
	onResponse       func(delta, partial string)
	onResponseEnd    func(response string)
	onMessagesUpdate func(messages []llms.Message)
	onError          func(err error)
}

type OrchestrateOption func(*OrchestrateOptions)

func WithStateChangeCallback(callback func(state State)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onStateChange = callback }
}

func WithTranscriptionCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onTranscription = callback }
}

// WithIgnoredSpeechCallback fires for transcripts dropped because no wake
// phrase matched while wake word gating was enabled.
func WithIgnoredSpeechCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onIgnoredSpeech = callback }
}

// WithResponseCallback fires once per streamed delta, with the delta and the
// partial response accumulated so far.
func WithResponseCallback(callback func(delta, partial string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onResponse = callback }
}

func WithResponseEndCallback(callback func(response string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onResponseEnd = callback }
}

// WithMessagesUpdateCallback fires whenever a message is appended to the
// conversation history, with a snapshot of the full history. Persistence
// hooks in here.
func WithMessagesUpdateCallback(callback func(messages []llms.Message)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onMessagesUpdate = callback }
}

// WithErrorCallback fires at most once per failed turn. Cancellation is not
// reported as an error.
func WithErrorCallback(callback func(err error)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onError = callback }
}
