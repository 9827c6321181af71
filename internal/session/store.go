// Package session persists conversation snapshots between program runs so a
// returning user sees their prior transcript and the assistant keeps its
// working context.
package session

import (
	"context"
	"encoding/json"
	"time"

	"shop_assistant/internal/assistant"
)

// Record is one saved conversation snapshot. State is the opaque backend
// context blob and is stored byte-for-byte.
type Record struct {
	Entries []assistant.Entry `json:"entries"`
	State   json.RawMessage   `json:"state,omitempty"`
	SavedAt time.Time         `json:"saved_at"`
}

// Store saves and restores conversation snapshots keyed by user id.
type Store interface {
	Save(ctx context.Context, userID string, rec Record) error
	// Load returns the newest snapshot for the user. The second return is
	// false when no usable snapshot exists.
	Load(ctx context.Context, userID string) (Record, bool, error)
	Clear(ctx context.Context, userID string) error
	Close() error
}
