package usecase

import (
	"strings"

	"github.com/example/ragbot/internal/biz/domain"
)

// Classifier decides whether an observed message is a trigger the bot
// must answer. It is a pure predicate with no side effects.
type Classifier struct {
	invocationPhrase string
	botUserID        string
}

// NewClassifier creates a new classifier
func NewClassifier(invocationPhrase, botUserID string) *Classifier {
	return &Classifier{
		invocationPhrase: strings.ToLower(invocationPhrase),
		botUserID:        botUserID,
	}
}

// IsTrigger reports whether the message is an unanswered request addressed
// to the bot. A message triggers only if it starts with the invocation
// phrase (case-insensitive), was not authored by the bot identity, does not
// contain the thinking indicator, and is neither claimed nor processed.
func (c *Classifier) IsTrigger(msg *domain.Message) bool {
	if msg.Content == "" {
		return false
	}
	if !strings.HasPrefix(strings.ToLower(msg.Content), c.invocationPhrase) {
		return false
	}
	if msg.IsFromBot(c.botUserID) {
		return false
	}
	// The bot's own interim indicator must never re-trigger a response
	if strings.Contains(msg.Content, domain.ThinkingMarker) {
		return false
	}
	return msg.IsUnclaimed()
}

// ExtractQuery strips the invocation phrase from the message content
func (c *Classifier) ExtractQuery(content string) string {
	if len(content) < len(c.invocationPhrase) {
		return ""
	}
	return strings.TrimSpace(content[len(c.invocationPhrase):])
}
