// Package speechtotext defines the option set shared by transcription
// clients: blob transcribers that turn one captured utterance into text, and
// streaming clients that emit speech events and transcripts continuously.
package speechtotext

import "github.com/kolvoice/kol-core/core/audio"

type TranscriptionOptions struct {
	// InterimTranscriptionCallback is called with provisional transcripts
	// while an utterance is still in progress.
	InterimTranscriptionCallback func(transcript string)
	// TranscriptionCallback is called once per utterance with the final
	// transcript.
	TranscriptionCallback func(transcript string)

	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	EncodingInfo audio.EncodingInfo

	// Language hints the transcription language as an ISO 639-1 code. Empty
	// or "auto" lets the service detect it.
	Language string
}

type TranscriptionOption func(*TranscriptionOptions)

func WithTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptionCallback = callback
	}
}

func WithInterimTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.InterimTranscriptionCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Language = language
	}
}
