package deepgram

import (
	"context"
	"fmt"
	"testing"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"

	"github.com/kolvoice/kol-core/core/speechtotext"
)

func resultMessage(transcript string, isFinal, speechFinal bool) []byte {
	return fmt.Appendf(nil,
		`{"type":%q,"channel":{"alternatives":[{"transcript":%q}]},"is_final":%t,"speech_final":%t}`,
		api.TypeMessageResponse, transcript, isFinal, speechFinal,
	)
}

func TestProcessMessageAccumulatesUntilSpeechFinal(t *testing.T) {
	client := &TranscriptionClient{}

	var transcripts []string
	options := speechtotext.TranscriptionOptions{
		TranscriptionCallback: func(transcript string) {
			transcripts = append(transcripts, transcript)
		},
	}

	ctx := context.Background()
	client.processMessage(ctx, resultMessage("hello", true, false), options)
	client.processMessage(ctx, resultMessage("there", true, false), options)
	client.processMessage(ctx, resultMessage("friend", true, true), options)

	if len(transcripts) != 1 {
		t.Fatalf("expected one final transcript, got %d (%v)", len(transcripts), transcripts)
	}
	if transcripts[0] != "hello there friend" {
		t.Errorf("expected accumulated transcript %q, got %q", "hello there friend", transcripts[0])
	}
	if client.accumulatedTranscript != "" {
		t.Errorf("expected accumulator to reset, still holds %q", client.accumulatedTranscript)
	}
}

func TestProcessMessageInterimIncludesAccumulated(t *testing.T) {
	client := &TranscriptionClient{}

	var interim string
	options := speechtotext.TranscriptionOptions{
		InterimTranscriptionCallback: func(transcript string) { interim = transcript },
	}

	ctx := context.Background()
	client.processMessage(ctx, resultMessage("good", true, false), options)
	client.processMessage(ctx, resultMessage("morning", false, false), options)

	if interim != "good morning" {
		t.Errorf("expected interim transcript %q, got %q", "good morning", interim)
	}
}

func TestProcessMessageUtteranceEndFlushesOpenSegment(t *testing.T) {
	client := &TranscriptionClient{}

	started := false
	var transcripts []string
	options := speechtotext.TranscriptionOptions{
		SpeechStartedCallback: func() { started = true },
		TranscriptionCallback: func(transcript string) {
			transcripts = append(transcripts, transcript)
		},
	}

	ctx := context.Background()
	client.processMessage(ctx, fmt.Appendf(nil, `{"type":%q}`, api.TypeSpeechStartedResponse), options)
	if !started {
		t.Fatal("expected speech started callback")
	}

	client.processMessage(ctx, resultMessage("see you later", true, false), options)
	client.processMessage(ctx, fmt.Appendf(nil, `{"type":%q}`, api.TypeUtteranceEndResponse), options)

	if len(transcripts) != 1 || transcripts[0] != "see you later" {
		t.Fatalf("expected utterance end to flush %q, got %v", "see you later", transcripts)
	}

	// A second utterance end without new speech must not re-emit.
	client.processMessage(ctx, fmt.Appendf(nil, `{"type":%q}`, api.TypeUtteranceEndResponse), options)
	if len(transcripts) != 1 {
		t.Errorf("expected no duplicate transcript, got %v", transcripts)
	}
}

func TestProcessMessageIgnoresEmptyFinal(t *testing.T) {
	client := &TranscriptionClient{}

	called := false
	options := speechtotext.TranscriptionOptions{
		TranscriptionCallback: func(string) { called = true },
	}

	ctx := context.Background()
	client.processMessage(ctx, resultMessage("", true, true), options)

	if called {
		t.Error("expected no transcript callback for empty utterance")
	}
}
