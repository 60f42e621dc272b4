package data

import (
	"context"
	"fmt"

	"github.com/example/ragbot/internal/biz/repo"
)

// MockEngine is a canned answer engine for local development without an
// API key
type MockEngine struct{}

// NewMockEngine creates a new mock engine
func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

// Generate echoes the query back as a canned answer
func (e *MockEngine) Generate(ctx context.Context, query string, maxContext int) (*repo.GenerationResult, error) {
	return &repo.GenerationResult{
		Answer: fmt.Sprintf("(mock) You asked: %s", query),
	}, nil
}
