package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/example/ragbot/internal/biz/domain"
	"github.com/example/ragbot/internal/biz/repo"
)

const engineSystemPrompt = `You are a helpful assistant answering questions for a chat community.
Answer concisely using the chat context below when it is relevant.
If the context does not help, answer from general knowledge.`

// OpenAIEngine generates answers with an OpenAI-compatible chat model,
// using recent channel history as retrieval context
type OpenAIEngine struct {
	client      *openai.Client
	model       string
	messageRepo repo.MessageRepo
	channelID   string
}

// NewOpenAIEngine creates a new engine. baseURL may be empty for the
// default OpenAI endpoint.
func NewOpenAIEngine(apiKey, baseURL, model string, messageRepo repo.MessageRepo, channelID string) *OpenAIEngine {
	if model == "" {
		model = "gpt-4o-mini"
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIEngine{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		messageRepo: messageRepo,
		channelID:   channelID,
	}
}

// Generate produces an answer for a query using up to maxContext recent
// channel messages as context
func (e *OpenAIEngine) Generate(ctx context.Context, query string, maxContext int) (*repo.GenerationResult, error) {
	refs := e.contextRefs(ctx, maxContext)

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: formatPrompt(refs)},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices")
	}

	return &repo.GenerationResult{
		Answer:  strings.TrimSpace(resp.Choices[0].Message.Content),
		Context: refs,
	}, nil
}

// contextRefs fetches recent channel history as context. History failures
// degrade to an answer without context.
func (e *OpenAIEngine) contextRefs(ctx context.Context, maxContext int) []domain.ContextRef {
	history, err := e.messageRepo.RecentHistory(ctx, e.channelID, maxContext)
	if err != nil {
		fmt.Printf("[Engine] Failed to fetch history, answering without context: %v\n", err)
		return nil
	}

	var refs []domain.ContextRef
	for _, msg := range history {
		// The bot's own interim indicators carry no information
		if strings.Contains(msg.Content, domain.ThinkingMarker) {
			continue
		}
		refs = append(refs, domain.ContextRef{
			Content:   msg.Content,
			ChannelID: msg.ChannelID,
			UserName:  msg.AuthorName,
			Timestamp: msg.CreatedAt.Format(time.RFC3339),
			MessageID: msg.ID,
		})
	}
	return refs
}

func formatPrompt(refs []domain.ContextRef) string {
	if len(refs) == 0 {
		return engineSystemPrompt
	}

	var b strings.Builder
	b.WriteString(engineSystemPrompt)
	b.WriteString("\n\nChat context:\n")
	for _, ref := range refs {
		fmt.Fprintf(&b, "[%s] %s: %s\n", ref.Timestamp, ref.UserName, ref.Content)
	}
	return b.String()
}
