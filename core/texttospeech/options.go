// Package texttospeech defines the option set shared by speech-synthesis
// clients.
package texttospeech

import "github.com/kolvoice/kol-core/core/audio"

type SynthesisOptions struct {
	// VoiceID selects the synthesis voice; empty uses the client default.
	VoiceID string
	// ModelID selects the synthesis model; empty uses the client default.
	ModelID string

	EncodingInfo audio.EncodingInfo
}

type SynthesisOption func(*SynthesisOptions)

func WithVoice(voiceID string) SynthesisOption {
	return func(o *SynthesisOptions) { o.VoiceID = voiceID }
}

func WithModel(modelID string) SynthesisOption {
	return func(o *SynthesisOptions) { o.ModelID = modelID }
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SynthesisOption {
	return func(o *SynthesisOptions) { o.EncodingInfo = encodingInfo }
}
