package repo

import (
	"context"

	"github.com/example/ragbot/internal/biz/domain"
)

// GenerationResult is the engine's answer plus the context it used
type GenerationResult struct {
	Answer  string
	Context []domain.ContextRef
}

// EngineRepo is the answer-generation engine interface
type EngineRepo interface {
	// Generate produces an answer for a query using up to maxContext
	// context messages. maxContext is a pass-through; the engine may use
	// fewer.
	Generate(ctx context.Context, query string, maxContext int) (*GenerationResult, error)
}
