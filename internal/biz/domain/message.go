package domain

import "time"

const (
	// ThinkingMarker is the interim indicator published before an answer
	ThinkingMarker = "_Thinking..._"

	// ApologyText is the only failure text end users ever see
	ApologyText = "Sorry, I encountered an error processing your request. Please try again later."

	// BotDisplayName is the display name on bot-authored messages
	BotDisplayName = "RAG Assistant"
)

// Message represents a chat message record
type Message struct {
	ID                  string
	ChannelID           string
	Content             string
	AuthorID            string // empty for system-authored messages
	AuthorName          string
	CreatedAt           time.Time
	IsBot               bool
	IsProcessing        bool
	IsProcessed         bool
	ProcessingStartedAt *time.Time
	ProcessedAt         *time.Time
}

// IsFromBot checks if the message was authored by the bot identity
func (m *Message) IsFromBot(botID string) bool {
	return m.AuthorID == botID
}

// IsUnclaimed checks if the message is free to be claimed
func (m *Message) IsUnclaimed() bool {
	return !m.IsProcessing && !m.IsProcessed
}
