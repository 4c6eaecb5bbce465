// Package settings holds the user-tunable configuration and its flat-file
// store. Missing fields always fall back to defaults, and nested configs
// merge field-by-field rather than being replaced wholesale.
package settings

import (
	"github.com/kolvoice/kol-core/core/vad"
	"github.com/kolvoice/kol-core/core/wakeword"
)

type Settings struct {
	// VoiceID selects the synthesis voice.
	VoiceID string `json:"voiceId"`
	// ModelID selects the chat model.
	ModelID string `json:"modelId"`
	// SystemPrompt is the standing instruction for the assistant.
	SystemPrompt string `json:"systemPrompt"`
	// Language is the ISO 639-1 transcription language hint, or "auto" for
	// provider-side detection.
	Language string `json:"language"`

	VAD      vad.Config       `json:"vad"`
	WakeWord WakeWordSettings `json:"wakeWord"`
}

// WakeWordSettings mirrors wakeword.Config with an optional Enabled, so a
// partial save can express an explicit disable as well as an enable. An
// unset Enabled leaves the stored value alone.
type WakeWordSettings struct {
	Enabled *bool    `json:"enabled,omitempty"`
	Phrases []string `json:"phrases,omitempty"`
}

// WakeWordConfig materializes the stored wake word settings into the
// detector's config. Unset Enabled means disabled.
func (s Settings) WakeWordConfig() wakeword.Config {
	config := wakeword.Config{Phrases: append([]string(nil), s.WakeWord.Phrases...)}
	if s.WakeWord.Enabled != nil {
		config.Enabled = *s.WakeWord.Enabled
	}
	return config
}

func Defaults() Settings {
	return Settings{
		VoiceID: "EXAVITQu4vr4xnSDxMaL",
		ModelID: "gpt-4o-mini",
		SystemPrompt: "You are a helpful voice assistant. Keep responses concise and " +
			"conversational since they will be spoken aloud. Respond in the same " +
			"language the user speaks.",
		Language: "auto",
		VAD:      vad.DefaultConfig(),
		WakeWord: WakeWordSettings{Phrases: wakeword.DefaultConfig().Phrases},
	}
}

// Merge overlays the non-zero fields of partial onto base. Nested configs
// merge per field; a partial that only tunes one VAD threshold keeps the
// base values for the rest.
func Merge(base, partial Settings) Settings {
	merged := base

	if partial.VoiceID != "" {
		merged.VoiceID = partial.VoiceID
	}
	if partial.ModelID != "" {
		merged.ModelID = partial.ModelID
	}
	if partial.SystemPrompt != "" {
		merged.SystemPrompt = partial.SystemPrompt
	}
	if partial.Language != "" {
		merged.Language = partial.Language
	}

	merged.VAD = mergeVAD(base.VAD, partial.VAD)
	merged.WakeWord = mergeWakeWord(base.WakeWord, partial.WakeWord)

	return merged
}

func mergeVAD(base, partial vad.Config) vad.Config {
	merged := base
	if partial.PositiveSpeechThreshold != 0 {
		merged.PositiveSpeechThreshold = partial.PositiveSpeechThreshold
	}
	if partial.NegativeSpeechThreshold != 0 {
		merged.NegativeSpeechThreshold = partial.NegativeSpeechThreshold
	}
	if partial.MinSpeechMs != 0 {
		merged.MinSpeechMs = partial.MinSpeechMs
	}
	if partial.RedemptionMs != 0 {
		merged.RedemptionMs = partial.RedemptionMs
	}
	if partial.PreSpeechPadMs != 0 {
		merged.PreSpeechPadMs = partial.PreSpeechPadMs
	}
	return merged
}

func mergeWakeWord(base, partial WakeWordSettings) WakeWordSettings {
	merged := base
	if partial.Enabled != nil {
		enabled := *partial.Enabled
		merged.Enabled = &enabled
	}
	if len(partial.Phrases) > 0 {
		merged.Phrases = append([]string(nil), partial.Phrases...)
	}
	return merged
}
