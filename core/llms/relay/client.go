// Package relay is a chat backend that talks to a kol relay server: a thin
// proxy in front of the actual model provider. Streaming responses arrive as
// server-sent-event frames, each a JSON object carrying one of
// {"text": "..."}, {"done": true} or {"error": "..."}.
package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"

	"github.com/kolvoice/kol-core/core/llms"
)

const chunkPrefix = "data:"

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type chatRequest struct {
	Messages     []llms.Message `json:"messages"`
	SystemPrompt string         `json:"systemPrompt,omitempty"`
	Model        string         `json:"model,omitempty"`
}

// frame is one SSE payload. Exactly one of the fields is set; done and error
// are terminal.
type frame struct {
	Text  string `json:"text,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// Complete asks the relay for a full, non-streamed response.
func (c *Client) Complete(ctx context.Context, messages []llms.Message, opts ...llms.PromptOption) (string, error) {
	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, span := tracer.Start(ctx, "prompt relay")
	defer span.End()

	body, err := json.Marshal(chatRequest{
		Messages:     messages,
		SystemPrompt: options.SystemPrompt,
		Model:        options.Model,
	})
	if err != nil {
		return "", fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("relay returned status %s", resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	var parsed struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("error decoding response: %w", err)
	}
	return parsed.Response, nil
}

// StreamComplete returns a stream over the relay's SSE endpoint. The request
// is issued on first iteration; cancelling the iteration context aborts it.
func (c *Client) StreamComplete(messages []llms.Message, opts ...llms.PromptOption) llms.Stream {
	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	return &stream{
		client: c,
		request: chatRequest{
			Messages:     messages,
			SystemPrompt: options.SystemPrompt,
			Model:        options.Model,
		},
	}
}

type stream struct {
	client  *Client
	request chatRequest
}

func (s *stream) Chunks(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, span := tracer.Start(ctx, "prompt relay streaming")
		defer span.End()

		body, err := json.Marshal(s.request)
		if err != nil {
			yield("", fmt.Errorf("error marshalling JSON: %w", err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.baseURL+"/api/chat/stream", bytes.NewReader(body))
		if err != nil {
			yield("", fmt.Errorf("error creating HTTP request: %w", err))
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")

		resp, err := s.client.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("relay returned status %s", resp.Status)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield("", err)
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, chunkPrefix) {
				continue
			}

			var parsed frame
			if err := json.Unmarshal([]byte(strings.TrimSpace(line[len(chunkPrefix):])), &parsed); err != nil {
				// Skip malformed frames rather than killing the stream.
				continue
			}

			switch {
			case parsed.Error != "":
				yield("", fmt.Errorf("relay stream failed: %s", parsed.Error))
				return
			case parsed.Done:
				return
			case parsed.Text != "":
				if !yield(parsed.Text, nil) {
					return
				}
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil && err != io.ErrUnexpectedEOF {
			yield("", fmt.Errorf("error reading stream: %w", err))
		}
	}
}
