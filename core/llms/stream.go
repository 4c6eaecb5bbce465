package llms

import (
	"context"
	"iter"
)

// Stream is a lazily-evaluated response stream. Chunks starts the request on
// first iteration and yields text deltas until the stream finishes or fails;
// cancelling ctx aborts the in-flight request.
type Stream interface {
	Chunks(ctx context.Context) iter.Seq2[string, error]
}

// Collect drains a stream into the full response text. It stops early and
// returns the partial text alongside the error when the stream fails.
func Collect(ctx context.Context, stream Stream) (string, error) {
	var response string
	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			return response, err
		}
		response += chunk
	}
	return response, nil
}
