package domain

import "errors"

// ErrNotFound is returned when a message does not exist in the store
var ErrNotFound = errors.New("message not found")

// ClaimResult is the outcome of an optimistic claim attempt
type ClaimResult int

const (
	// Claimed means this caller won the claim and must handle the message
	Claimed ClaimResult = iota
	// AlreadyClaimed means another claimant won; the caller must do nothing
	AlreadyClaimed
)

// String returns the claim result name
func (r ClaimResult) String() string {
	switch r {
	case Claimed:
		return "claimed"
	case AlreadyClaimed:
		return "already_claimed"
	default:
		return "unknown"
	}
}
