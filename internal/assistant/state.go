package assistant

import (
	"encoding/json"
	"sync"
)

// StateStore holds the opaque conversation state blob owned by the backend.
// The client never reads or mutates its contents: Set is a wholesale
// replacement, Get returns nil before the first turn completes, and the
// bytes are echoed verbatim as previous_state on the next request. No
// schema is enforced client-side so the backend can evolve its shape
// freely.
type StateStore struct {
	mu    sync.Mutex
	state json.RawMessage
}

func NewStateStore() *StateStore {
	return &StateStore{}
}

func (s *StateStore) Get() json.RawMessage {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil
	}
	return append(json.RawMessage(nil), s.state...)
}

func (s *StateStore) Set(state json.RawMessage) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == nil {
		s.state = nil
		return
	}
	s.state = append(json.RawMessage(nil), state...)
}
