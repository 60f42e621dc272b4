package domain

import "time"

// ContextRef identifies a message the engine used as context for an answer
type ContextRef struct {
	Content   string `json:"content"`
	ChannelID string `json:"channel_id"`
	UserName  string `json:"user_name"`
	Timestamp string `json:"timestamp"`
	MessageID string `json:"message_id"`
}

// QueryResult is the outcome of answering a query
type QueryResult struct {
	Answer    string
	Context   []ContextRef
	Timestamp time.Time
	Query     string
	Cached    bool
}
