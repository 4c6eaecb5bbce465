package vad

import "fmt"

// Config holds the thresholds governing when speech is judged started and
// ended. Thresholds apply to per-frame speech probabilities in [0, 1].
type Config struct {
	// PositiveSpeechThreshold is the probability at or above which a frame
	// counts as speech.
	PositiveSpeechThreshold float64
	// NegativeSpeechThreshold is the probability below which a frame counts
	// as silence. Frames between the two thresholds extend an utterance
	// without counting either way (hysteresis).
	NegativeSpeechThreshold float64
	// MinSpeechMs is the minimum amount of detected speech for an utterance
	// to be reported; shorter utterances are misfires.
	MinSpeechMs int
	// RedemptionMs is the amount of trailing silence after which an
	// utterance is considered ended.
	RedemptionMs int
	// PreSpeechPadMs is how much audio from before the speech-start frame is
	// prepended to the reported utterance.
	PreSpeechPadMs int
}

func DefaultConfig() Config {
	return Config{
		PositiveSpeechThreshold: 0.8,
		NegativeSpeechThreshold: 0.3,
		MinSpeechMs:             150,
		RedemptionMs:            300,
		PreSpeechPadMs:          90,
	}
}

func (c Config) Validate() error {
	if c.PositiveSpeechThreshold <= 0 || c.PositiveSpeechThreshold > 1 {
		return fmt.Errorf("positive speech threshold %v out of range (0, 1]", c.PositiveSpeechThreshold)
	}
	if c.NegativeSpeechThreshold < 0 || c.NegativeSpeechThreshold > 1 {
		return fmt.Errorf("negative speech threshold %v out of range [0, 1]", c.NegativeSpeechThreshold)
	}
	if c.NegativeSpeechThreshold >= c.PositiveSpeechThreshold {
		return fmt.Errorf("negative speech threshold %v must be below positive speech threshold %v",
			c.NegativeSpeechThreshold, c.PositiveSpeechThreshold)
	}
	if c.MinSpeechMs < 0 || c.RedemptionMs < 0 || c.PreSpeechPadMs < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// merged returns c with zero fields replaced by defaults, so partially
// specified configs loaded from settings behave predictably.
func (c Config) merged() Config {
	defaults := DefaultConfig()
	if c.PositiveSpeechThreshold == 0 {
		c.PositiveSpeechThreshold = defaults.PositiveSpeechThreshold
	}
	if c.NegativeSpeechThreshold == 0 {
		c.NegativeSpeechThreshold = defaults.NegativeSpeechThreshold
	}
	if c.MinSpeechMs == 0 {
		c.MinSpeechMs = defaults.MinSpeechMs
	}
	if c.RedemptionMs == 0 {
		c.RedemptionMs = defaults.RedemptionMs
	}
	if c.PreSpeechPadMs == 0 {
		c.PreSpeechPadMs = defaults.PreSpeechPadMs
	}
	return c
}
