package vad

import (
	"context"
	"math"
)

// Classifier scores a single frame of normalized mono samples with the
// probability that it contains speech. The neural models that usually back
// this interface are external capabilities; the detector only consumes the
// per-frame scores.
type Classifier interface {
	SpeechProbability(frame []float32) (float64, error)
	Reset()
}

// ClassifierLoader produces a Classifier. Loading a model can be slow, so the
// detector calls Load asynchronously and exposes a distinct loading state
// while it runs.
type ClassifierLoader interface {
	Load(ctx context.Context) (Classifier, error)
}

// LoaderFunc adapts a plain function into a ClassifierLoader.
type LoaderFunc func(ctx context.Context) (Classifier, error)

func (f LoaderFunc) Load(ctx context.Context) (Classifier, error) { return f(ctx) }

// EnergyClassifier is a pure-Go fallback classifier that maps RMS energy to a
// pseudo speech probability. It is no substitute for a trained model but
// keeps the detector usable without one.
type EnergyClassifier struct {
	// NoiseFloor is the RMS level mapped to probability 0.
	NoiseFloor float64
	// SpeechLevel is the RMS level mapped to probability 1.
	SpeechLevel float64
}

func NewEnergyClassifier() *EnergyClassifier {
	return &EnergyClassifier{
		NoiseFloor:  0.008,
		SpeechLevel: 0.1,
	}
}

func (c *EnergyClassifier) SpeechProbability(frame []float32) (float64, error) {
	if len(frame) == 0 {
		return 0, nil
	}

	sum := 0.0
	for _, sample := range frame {
		sum += float64(sample) * float64(sample)
	}
	level := math.Sqrt(sum / float64(len(frame)))

	probability := (level - c.NoiseFloor) / (c.SpeechLevel - c.NoiseFloor)
	return math.Max(0, math.Min(1, probability)), nil
}

func (c *EnergyClassifier) Reset() {}
