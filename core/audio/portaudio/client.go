// Package portaudio provides a capture/playback client backed by PortAudio.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/kolvoice/kol-core/core/audio"
)

type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	in  []int16
	out []int16

	capturing atomic.Bool
	stopped   chan struct{}

	// running tracks the duplex stream itself, which serves both directions
	// and is only torn down on Close.
	running atomic.Bool

	playMu sync.Mutex
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open PortAudio stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
	}, nil
}

func (c *Client) StartCapture(ctx context.Context, onAudio func(audio []byte)) error {
	if !c.capturing.CompareAndSwap(false, true) {
		return nil
	}

	if err := c.ensureStarted(); err != nil {
		c.capturing.Store(false)
		return err
	}

	stopped := make(chan struct{})
	c.stopped = stopped

	go func() {
		defer close(stopped)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if !c.capturing.Load() {
				return
			}

			if err := c.stream.Read(); err != nil {
				continue
			}

			audioBuffer := bytes.Buffer{}
			binary.Write(&audioBuffer, binary.LittleEndian, c.in)
			onAudio(audioBuffer.Bytes())
		}
	}()

	return nil
}

func (c *Client) StopCapture() error {
	if !c.capturing.CompareAndSwap(true, false) {
		return nil
	}

	if c.stopped != nil {
		<-c.stopped
	}
	return nil
}

func (c *Client) ensureStarted() error {
	if !c.running.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.stream.Start(); err != nil {
		c.running.Store(false)
		return fmt.Errorf("failed to start PortAudio stream: %w", err)
	}
	return nil
}

func (c *Client) Play(ctx context.Context, pcm []byte) error {
	c.playMu.Lock()
	defer c.playMu.Unlock()

	if err := c.ensureStarted(); err != nil {
		return err
	}

	bufferSize := c.bufferSize * 2
	for offset := 0; offset < len(pcm); offset += bufferSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		chunk := pcm[offset:min(offset+bufferSize, len(pcm))]
		if len(chunk) < bufferSize {
			// Zero-pad the trailing partial buffer.
			chunk = append(append([]byte(nil), chunk...), make([]byte, bufferSize-len(chunk))...)
		}

		if err := binary.Read(bytes.NewReader(chunk), binary.LittleEndian, c.out); err != nil {
			return fmt.Errorf("failed to frame audio for playback: %w", err)
		}
		if err := c.stream.Write(); err != nil {
			return fmt.Errorf("failed to write to PortAudio stream: %w", err)
		}
	}

	return nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (c *Client) Close() {
	_ = c.StopCapture()
	c.stream.Close()
	portaudio.Terminate()
}
