// Command kol is a terminal voice chat. It wires the orchestration core to
// real devices and providers: miniaudio capture/playback, Whisper
// transcription, a streamed chat completion, and ElevenLabs synthesis.
//
// Configuration comes from the environment (a .env file is honored):
// OPENAI_API_KEY, ELEVENLABS_API_KEY, and optionally KOL_RELAY_URL to route
// chat traffic through a relay server instead of calling OpenAI directly.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	orchestration "github.com/kolvoice/kol-core/core"
	"github.com/kolvoice/kol-core/core/audio/miniaudio"
	"github.com/kolvoice/kol-core/core/conversations"
	"github.com/kolvoice/kol-core/core/llms"
	"github.com/kolvoice/kol-core/core/llms/openai"
	"github.com/kolvoice/kol-core/core/llms/relay"
	"github.com/kolvoice/kol-core/core/settings"
	"github.com/kolvoice/kol-core/core/speechtotext/whisper"
	"github.com/kolvoice/kol-core/core/texttospeech/elevenlabs"
	"github.com/kolvoice/kol-core/core/vad"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "kol:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dataDir := os.Getenv("KOL_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	settingsStore := settings.NewStore(filepath.Join(dataDir, "settings.json"))
	current, err := settingsStore.Load()
	if err != nil {
		return err
	}

	conversationStore, err := conversations.NewStore(filepath.Join(dataDir, "conversations"))
	if err != nil {
		return err
	}
	saver := conversations.NewSaver(conversationStore)
	defer saver.Flush()

	audioClient, err := miniaudio.NewClient()
	if err != nil {
		return fmt.Errorf("failed to initialize audio: %w", err)
	}
	defer audioClient.Close()

	var llm orchestration.LLM
	if relayURL := os.Getenv("KOL_RELAY_URL"); relayURL != "" {
		llm = relay.NewClient(relayURL)
	} else {
		llm = openai.NewClient(os.Getenv("OPENAI_API_KEY"))
	}

	// Without a synthesis key the assistant still works, just silently.
	var synthesizer orchestration.TextToSpeech
	if client, err := elevenlabs.NewClient(""); err == nil {
		synthesizer = client
	}

	orchestrator := orchestration.NewOrchestrator(
		orchestration.WithCaptureClient(&audioClient.Capture),
		orchestration.WithPlaybackClient(&audioClient.Playback),
		orchestration.WithSpeechToText(whisper.NewClient(os.Getenv("OPENAI_API_KEY"))),
		orchestration.WithLLM(llm),
		orchestration.WithTextToSpeech(synthesizer),
		orchestration.WithVADConfig(current.VAD),
		orchestration.WithClassifierLoader(vad.LoaderFunc(func(ctx context.Context) (vad.Classifier, error) {
			return vad.NewEnergyClassifier(), nil
		})),
		orchestration.WithWakeWordConfig(current.WakeWordConfig()),
		orchestration.WithSystemPrompt(current.SystemPrompt),
		orchestration.WithModel(current.ModelID),
		orchestration.WithVoice(current.VoiceID),
		orchestration.WithLanguage(current.Language),
	)
	defer orchestrator.Close()

	program := tea.NewProgram(newModel(orchestrator, saver), tea.WithAltScreen(), tea.WithContext(ctx))

	err = orchestrator.Orchestrate(ctx,
		orchestration.WithStateChangeCallback(func(state orchestration.State) {
			program.Send(stateMsg{state: state})
		}),
		orchestration.WithTranscriptionCallback(func(transcript string) {
			program.Send(transcriptMsg{transcript: transcript})
		}),
		orchestration.WithIgnoredSpeechCallback(func(transcript string) {
			program.Send(ignoredMsg{transcript: transcript})
		}),
		orchestration.WithResponseCallback(func(delta, partial string) {
			program.Send(responseMsg{partial: partial})
		}),
		orchestration.WithResponseEndCallback(func(response string) {
			program.Send(responseEndMsg{response: response})
		}),
		orchestration.WithMessagesUpdateCallback(func(messages []llms.Message) {
			program.Send(messagesMsg{messages: messages})
		}),
		orchestration.WithErrorCallback(func(err error) {
			program.Send(errorMsg{err: err})
		}),
	)
	if err != nil {
		return err
	}

	_, err = program.Run()
	return err
}
