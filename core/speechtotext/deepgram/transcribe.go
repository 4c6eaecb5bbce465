// Package deepgram streams captured audio to Deepgram's live transcription
// API over a websocket. It is the streaming alternative to blob
// transcription: Deepgram performs its own endpointing, so the client emits
// speech-started and per-utterance transcript callbacks directly.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"

	"github.com/kolvoice/kol-core/core/audio"
	"github.com/kolvoice/kol-core/core/speechtotext"
)

const keepAliveInterval = 5 * time.Second

type TranscriptionClient struct {
	apiKey string
	model  string

	connMu sync.Mutex
	conn   *websocket.Conn

	accumulatedTranscript string
	unendedSegment        bool
}

type ClientOption func(*TranscriptionClient)

func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) { c.model = model }
}

// NewTranscriptionClient builds a client for the given API key, falling back
// to the DEEPGRAM_API_KEY environment variable when empty.
func NewTranscriptionClient(apiKey string, opts ...ClientOption) (*TranscriptionClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("DEEPGRAM_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	client := &TranscriptionClient{apiKey: apiKey, model: "nova-3"}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func (c *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	options := speechtotext.TranscriptionOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(&options)
	}

	if options.EncodingInfo.Format.ByteSize() <= 0 {
		return fmt.Errorf("unsupported encoding %q", options.EncodingInfo.Format.Name())
	}

	conn, err := c.connect(options)
	if err != nil {
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	go c.readAndProcessMessages(ctx, conn, options)
	go c.keepAlive(ctx)

	return nil
}

func (c *TranscriptionClient) connect(options speechtotext.TranscriptionOptions) (*websocket.Conn, error) {
	listenURL, _ := url.Parse("wss://api.deepgram.com/v1/listen")
	queryParams := listenURL.Query()
	queryParams.Set("encoding", options.EncodingInfo.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(options.EncodingInfo.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", c.model)
	queryParams.Set("smart_format", "true")
	queryParams.Set("endpointing", "300")
	if language := strings.TrimSpace(options.Language); language != "" && language != "auto" {
		queryParams.Set("language", language)
	}
	if options.TranscriptionCallback != nil || options.SpeechEndedCallback != nil {
		queryParams.Set("utterance_end_ms", "1000")
		queryParams.Set("interim_results", "true")
	} else if options.InterimTranscriptionCallback != nil {
		queryParams.Set("interim_results", "true")
	}
	if options.SpeechStartedCallback != nil {
		queryParams.Set("vad_events", "true")
	}
	listenURL.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(listenURL.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to dial deepgram: %w", err)
	}
	return conn, nil
}

func (c *TranscriptionClient) SendAudio(pcm []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("transcription stream not open")
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return fmt.Errorf("failed to write audio to deepgram: %w", err)
	}
	return nil
}

func (c *TranscriptionClient) Close(context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return nil
	}

	if err := c.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		logger.Warn("failed to request deepgram stream close", "error", err)
	}

	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close deepgram connection: %w", err)
	}
	return nil
}

func (c *TranscriptionClient) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			if conn == nil {
				c.connMu.Unlock()
				return
			}
			if err := conn.WriteJSON(struct {
				Type string `json:"type"`
			}{Type: "KeepAlive"}); err != nil {
				logger.Warn("failed to send deepgram keepalive", "error", err)
			}
			c.connMu.Unlock()
		}
	}
}

func (c *TranscriptionClient) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, options speechtotext.TranscriptionOptions) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("failed to read deepgram websocket message", "error", err)
			}

			c.connMu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.connMu.Unlock()
			conn.Close()
			return
		}
		if msgType != websocket.BinaryMessage {
			c.processMessage(ctx, msg, options)
		}
	}
}

func (c *TranscriptionClient) processMessage(_ context.Context, msg []byte, options speechtotext.TranscriptionOptions) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram transcript message", "error", err)
			return
		}
		if len(msgResp.Channel.Alternatives) == 0 {
			return
		}
		transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)

		if msgResp.IsFinal {
			if len(transcript) > 0 {
				c.accumulatedTranscript += " " + transcript
			}
			if msgResp.SpeechFinal {
				c.onSpeechEnded(options)
			}
			return
		}

		if len(transcript) > 0 && options.InterimTranscriptionCallback != nil {
			options.InterimTranscriptionCallback(strings.TrimSpace(c.accumulatedTranscript + " " + transcript))
		}

	case api.TypeUtteranceEndResponse:
		if c.unendedSegment {
			c.onSpeechEnded(options)
		}

	case api.TypeSpeechStartedResponse:
		c.unendedSegment = true
		if options.SpeechStartedCallback != nil {
			options.SpeechStartedCallback()
		}
	}
}

func (c *TranscriptionClient) onSpeechEnded(options speechtotext.TranscriptionOptions) {
	c.unendedSegment = false

	fullTranscript := strings.TrimSpace(c.accumulatedTranscript)
	c.accumulatedTranscript = ""

	if options.SpeechEndedCallback != nil {
		options.SpeechEndedCallback()
	}
	if len(fullTranscript) > 0 && options.TranscriptionCallback != nil {
		options.TranscriptionCallback(fullTranscript)
	}
}
