// Package wakeword gates transcripts on a configurable wake phrase. It does
// not listen to audio itself; callers feed it finished transcripts and it
// either hands back the command that followed the phrase or reports that the
// utterance was not addressed to the assistant.
package wakeword

import (
	"strings"
	"unicode"
)

// Match scans transcript for the first configured phrase, case-insensitively.
// It returns the remainder of the transcript after the phrase, with leading
// punctuation and whitespace stripped. A transcript that is only the wake
// phrase matches with an empty command.
func Match(transcript string, phrases []string) (command string, matched bool) {
	lowered := strings.ToLower(transcript)
	for _, phrase := range phrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase == "" {
			continue
		}
		idx := strings.Index(lowered, phrase)
		if idx < 0 {
			continue
		}
		rest := transcript[idx+len(phrase):]
		rest = strings.TrimLeftFunc(rest, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsPunct(r)
		})
		return strings.TrimSpace(rest), true
	}
	return "", false
}

// Detector applies a Config to transcripts and dispatches to callbacks.
type Detector struct {
	config Config

	onWake    func(command string)
	onIgnored func(transcript string)
}

type DetectorOption func(*Detector)

// WithWakeCallback is called with the command that followed the wake phrase.
func WithWakeCallback(callback func(command string)) DetectorOption {
	return func(d *Detector) { d.onWake = callback }
}

// WithIgnoredCallback is called with transcripts that contained no wake
// phrase while detection was enabled.
func WithIgnoredCallback(callback func(transcript string)) DetectorOption {
	return func(d *Detector) { d.onIgnored = callback }
}

func NewDetector(config Config, opts ...DetectorOption) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(config.Phrases) == 0 {
		config.Phrases = DefaultConfig().Phrases
	}

	detector := &Detector{config: config}
	for _, opt := range opts {
		opt(detector)
	}
	return detector, nil
}

// Feed runs a transcript through the detector. When detection is disabled
// the transcript passes through unchanged. It returns the command to act on
// and whether the caller should act at all.
func (d *Detector) Feed(transcript string) (command string, act bool) {
	if d == nil || !d.config.Enabled {
		return transcript, true
	}

	command, matched := Match(transcript, d.config.Phrases)
	if !matched {
		if d.onIgnored != nil {
			d.onIgnored(transcript)
		}
		return "", false
	}
	if d.onWake != nil {
		d.onWake(command)
	}
	return command, true
}
