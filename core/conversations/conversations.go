// Package conversations persists chat history as one JSON file per
// conversation. Listing returns summaries only; full message history is
// loaded on demand.
package conversations

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kolvoice/kol-core/core/llms"
)

const (
	maxTitleLength = 50
	// A word boundary closer to the start than this is ignored when
	// truncating; cutting there would leave a uselessly short title.
	minTitleBoundary = 20
)

type Conversation struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Messages  []llms.Message `json:"messages"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Summary is a Conversation without its messages, for listings.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func New(messages ...llms.Message) Conversation {
	now := time.Now().UTC()
	return Conversation{
		ID:        uuid.NewString(),
		Title:     TitleFor(messages),
		Messages:  messages,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c Conversation) Summary() Summary {
	return Summary{ID: c.ID, Title: c.Title, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

// TitleFor derives a title from the first user message, truncated to at most
// 50 characters. Truncation prefers the last word boundary, unless that
// boundary sits too close to the start of the text.
func TitleFor(messages []llms.Message) string {
	var text string
	for _, message := range messages {
		if message.Role == llms.RoleUser {
			text = strings.TrimSpace(message.Content)
			break
		}
	}
	if text == "" {
		return "New conversation"
	}
	runes := []rune(text)
	if len(runes) <= maxTitleLength {
		return text
	}

	cut := string(runes[:maxTitleLength])
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 && utf8.RuneCountInString(cut[:idx]) > minTitleBoundary {
		cut = cut[:idx]
	}
	return cut + "..."
}
