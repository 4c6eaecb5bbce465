// Package audio holds the encoding contracts shared by capture, playback,
// transcription and synthesis: mono 16kHz 16-bit PCM unless a client says
// otherwise.
package audio

import "context"

const (
	DefaultSampleRate = 16000
	DefaultFormat     = "linear16"
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: encodingFormat(DefaultFormat)}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// BytesPerSecond is the raw throughput of a mono stream in this encoding.
func (e EncodingInfo) BytesPerSecond() int {
	return e.SampleRate * e.Format.ByteSize()
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)

// CaptureClient is the microphone side of an audio device. StartCapture
// acquires the device exclusively; StopCapture must release it on every exit
// path, including errors.
type CaptureClient interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
	EncodingInfo() EncodingInfo
}

// PlaybackClient is the speaker side of an audio device. Play blocks until
// the passed samples have been handed off and played, or ctx is cancelled.
type PlaybackClient interface {
	Play(ctx context.Context, audio []byte) error
	EncodingInfo() EncodingInfo
}
