package wakeword

import "fmt"

// Config controls wake phrase activation. Disabled by default; every
// utterance is treated as addressed to the assistant until a wake phrase
// is required.
type Config struct {
	Enabled bool `json:"enabled"`
	// Phrases are matched case-insensitively, in order, anywhere in the
	// transcript. The first phrase that matches wins.
	Phrases []string `json:"phrases"`
}

func DefaultConfig() Config {
	return Config{
		Enabled: false,
		Phrases: []string{"hey claude", "hi claude", "ok claude", "okay claude"},
	}
}

func (c Config) Validate() error {
	if c.Enabled && len(c.Phrases) == 0 {
		return fmt.Errorf("wake word detection enabled with no phrases")
	}
	return nil
}
