package conversations

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jinzhu/copier"
)

var ErrNotFound = errors.New("conversation not found")

// Store keeps each conversation in <dir>/<id>.json. All returned values are
// deep copies; callers can mutate them without touching the store.
type Store struct {
	dir string

	mu sync.Mutex
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create conversations directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes the conversation to disk, stamping UpdatedAt so listings
// order by last write.
func (s *Store) Save(conversation Conversation) error {
	if conversation.ID == "" {
		return fmt.Errorf("refusing to save conversation without an id")
	}
	conversation.UpdatedAt = time.Now().UTC()

	raw, err := json.MarshalIndent(conversation, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.path(conversation.ID), raw, 0o644); err != nil {
		return fmt.Errorf("failed to write conversation: %w", err)
	}
	return nil
}

func (s *Store) Get(id string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("failed to read conversation: %w", err)
	}

	var conversation Conversation
	if err := json.Unmarshal(raw, &conversation); err != nil {
		return Conversation{}, fmt.Errorf("failed to parse conversation: %w", err)
	}

	var copied Conversation
	if err := copier.CopyWithOption(&copied, &conversation, copier.Option{DeepCopy: true}); err != nil {
		return Conversation{}, fmt.Errorf("failed to copy conversation: %w", err)
	}
	return copied, nil
}

// List returns summaries of every stored conversation, newest first.
// Unreadable or corrupt files are skipped rather than failing the listing.
func (s *Store) List() ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	summaries := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var conversation Conversation
		if err := json.Unmarshal(raw, &conversation); err != nil || conversation.ID == "" {
			continue
		}
		summaries = append(summaries, conversation.Summary())
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
