package conversations

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/kolvoice/kol-core/core/llms"
)

func TestTitleShortMessageKeptWhole(t *testing.T) {
	title := TitleFor([]llms.Message{llms.UserMessage("What's the weather?")})
	if title != "What's the weather?" {
		t.Errorf("unexpected title %q", title)
	}
}

func TestTitleTruncatesAtWordBoundary(t *testing.T) {
	title := TitleFor([]llms.Message{
		llms.UserMessage("Tell me everything you know about the history of ancient Rome"),
	})
	if !strings.HasSuffix(title, "...") {
		t.Fatalf("expected truncated title to end with ellipsis, got %q", title)
	}
	if len(title) > maxTitleLength+3 {
		t.Errorf("title too long: %q (%d chars)", title, len(title))
	}
	if strings.HasSuffix(strings.TrimSuffix(title, "..."), " ") {
		t.Errorf("expected no trailing space before ellipsis, got %q", title)
	}
}

func TestTitleIgnoresEarlyWordBoundary(t *testing.T) {
	// The only space falls before the boundary cutoff, so the cut is hard.
	title := TitleFor([]llms.Message{
		llms.UserMessage("Short " + strings.Repeat("a", 60)),
	})
	if len(title) != maxTitleLength+3 {
		t.Errorf("expected hard cut at %d chars plus ellipsis, got %q (%d chars)",
			maxTitleLength, title, len(title))
	}
}

func TestTitleTruncatesOnRuneBoundaries(t *testing.T) {
	title := TitleFor([]llms.Message{llms.UserMessage(strings.Repeat("é", 60))})
	if !utf8.ValidString(title) {
		t.Fatalf("title is not valid UTF-8: %q", title)
	}
	if got := utf8.RuneCountInString(strings.TrimSuffix(title, "...")); got != maxTitleLength {
		t.Errorf("expected a %d-character cut, got %d (%q)", maxTitleLength, got, title)
	}
}

func TestTitleSkipsAssistantMessages(t *testing.T) {
	title := TitleFor([]llms.Message{
		llms.AssistantMessage("Hello! How can I help?"),
		llms.UserMessage("Set a timer"),
	})
	if title != "Set a timer" {
		t.Errorf("expected title from first user message, got %q", title)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	conversation := New(llms.UserMessage("hello"), llms.AssistantMessage("hi there"))
	if err := store.Save(conversation); err != nil {
		t.Fatalf("failed to save conversation: %v", err)
	}

	loaded, err := store.Get(conversation.ID)
	if err != nil {
		t.Fatalf("failed to load conversation: %v", err)
	}
	if loaded.Title != conversation.Title {
		t.Errorf("expected title %q, got %q", conversation.Title, loaded.Title)
	}
	if len(loaded.Messages) != 2 || loaded.Messages[1].Content != "hi there" {
		t.Errorf("unexpected messages %+v", loaded.Messages)
	}

	// Mutating the returned copy must not leak into later reads.
	loaded.Messages[0].Content = "mutated"
	again, err := store.Get(conversation.ID)
	if err != nil {
		t.Fatalf("failed to reload conversation: %v", err)
	}
	if again.Messages[0].Content != "hello" {
		t.Errorf("expected stored content %q, got %q", "hello", again.Messages[0].Content)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if _, err := store.Get("nope"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreListNewestFirstSkippingCorrupt(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	older := New(llms.UserMessage("first"))
	newer := New(llms.UserMessage("second"))
	for _, c := range []Conversation{older, newer} {
		if err := store.Save(c); err != nil {
			t.Fatalf("failed to save conversation: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := os.WriteFile(filepath.Join(dir, "corrupt.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}

	summaries, err := store.List()
	if err != nil {
		t.Fatalf("failed to list conversations: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].ID != newer.ID || summaries[1].ID != older.ID {
		t.Errorf("expected newest first, got %v", summaries)
	}
}

func TestStoreSaveBumpsRecency(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	first := New(llms.UserMessage("older topic"))
	second := New(llms.UserMessage("newer topic"))
	for _, c := range []Conversation{first, second} {
		if err := store.Save(c); err != nil {
			t.Fatalf("failed to save conversation: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Re-saving the first conversation with a new message makes it the most
	// recently updated one.
	first.Messages = append(first.Messages, llms.AssistantMessage("a reply"))
	if err := store.Save(first); err != nil {
		t.Fatalf("failed to re-save conversation: %v", err)
	}

	summaries, err := store.List()
	if err != nil {
		t.Fatalf("failed to list conversations: %v", err)
	}
	if len(summaries) != 2 || summaries[0].ID != first.ID {
		t.Errorf("expected the last written conversation listed first, got %v", summaries)
	}
	if !summaries[0].UpdatedAt.After(summaries[1].UpdatedAt) {
		t.Errorf("expected re-save to advance UpdatedAt, got %v <= %v",
			summaries[0].UpdatedAt, summaries[1].UpdatedAt)
	}
}

func TestStoreDelete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	conversation := New(llms.UserMessage("bye"))
	if err := store.Save(conversation); err != nil {
		t.Fatalf("failed to save conversation: %v", err)
	}
	if err := store.Delete(conversation.ID); err != nil {
		t.Fatalf("failed to delete conversation: %v", err)
	}
	if err := store.Delete(conversation.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSaverCoalescesUpdates(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	saver := NewSaver(store, WithSaveDelay(20*time.Millisecond))

	conversation := New(llms.UserMessage("hello"))
	for _, partial := range []string{"H", "He", "Hello!"} {
		c := conversation
		c.Messages = append(c.Messages[:1:1], llms.AssistantMessage(partial))
		saver.Update(c)
	}

	deadline := time.After(time.Second)
	for {
		loaded, err := store.Get(conversation.ID)
		if err == nil {
			if got := loaded.Messages[1].Content; got != "Hello!" {
				t.Errorf("expected last snapshot to win, got %q", got)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for debounced save")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSaverFlushWritesImmediately(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	saver := NewSaver(store, WithSaveDelay(time.Hour))

	conversation := New(llms.UserMessage("hello"))
	saver.Update(conversation)
	saver.Flush()

	if _, err := store.Get(conversation.ID); err != nil {
		t.Fatalf("expected conversation on disk after flush, got %v", err)
	}
}
