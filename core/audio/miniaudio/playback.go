package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/kolvoice/kol-core/core/audio"
)

// PlaybackClient plays one buffer at a time. Play blocks until the device
// callback has consumed the whole buffer, which lets the playback queue keep
// segment ordering without tracking marks.
type PlaybackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	mu      sync.Mutex
	pending []byte
	drained chan struct{}
	started bool
}

func (c *PlaybackClient) init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleRate := uint32(audio.DefaultSampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = sampleRate
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = sampleRate / 10 // ~100ms of audio
	c.config.Periods = 4

	c.audioContext = audioContext

	var err error
	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	); err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	return nil
}

func (c *PlaybackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		c.mu.Lock()
		defer c.mu.Unlock()

		if len(c.pending) == 0 {
			return
		}

		n := copy(pOutput[:need], c.pending)
		c.pending = c.pending[n:]
		if len(c.pending) == 0 && c.drained != nil {
			close(c.drained)
			c.drained = nil
		}
	}
}

func (c *PlaybackClient) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	c.mu.Lock()
	if c.device == nil {
		c.mu.Unlock()
		return fmt.Errorf("device not initialized")
	}
	if !c.started {
		if err := c.device.Start(); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("failed to start playback device: %w", err)
		}
		c.started = true
	}

	drained := make(chan struct{})
	c.pending = append([]byte(nil), pcm...)
	c.drained = drained
	c.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		c.clear()
		return ctx.Err()
	}
}

func (c *PlaybackClient) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
	if c.drained != nil {
		close(c.drained)
		c.drained = nil
	}
}

func (c *PlaybackClient) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (c *PlaybackClient) uninit() error {
	c.clear()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
		c.started = false
	}

	return nil
}
