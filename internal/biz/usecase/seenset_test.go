package usecase

import (
	"fmt"
	"testing"
)

func TestSeenSetMarkSeen(t *testing.T) {
	s := NewSeenSet(10)

	if !s.MarkSeen("m1") {
		t.Error("First MarkSeen should return true")
	}
	if s.MarkSeen("m1") {
		t.Error("Second MarkSeen of same ID should return false")
	}
	if !s.MarkSeen("m2") {
		t.Error("MarkSeen of a new ID should return true")
	}
}

func TestSeenSetHardClear(t *testing.T) {
	s := NewSeenSet(3)

	for i := 0; i < 3; i++ {
		s.MarkSeen(fmt.Sprintf("m%d", i))
	}

	// Exceeding capacity clears the whole set and reseeds the new ID
	if !s.MarkSeen("m3") {
		t.Error("MarkSeen over capacity should return true")
	}
	if s.MarkSeen("m3") {
		t.Error("Reseeded ID should be remembered")
	}
	if !s.MarkSeen("m0") {
		t.Error("Cleared IDs should be forgotten after the reset")
	}
}
