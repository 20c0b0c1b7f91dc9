package feed

import (
	"context"
	"encoding/json"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Change is one row-level notification. Inserts and updates carry the full
// post-image in Record; deletes carry only the pre-image id in OldID.
type Change struct {
	Table  string          `json:"table"`
	Type   EventType       `json:"type"`
	Record json.RawMessage `json:"record,omitempty"`
	OldID  string          `json:"old_id,omitempty"`
	UserID string          `json:"user_id,omitempty"`
}

// Filter scopes a subscription. Empty Events means every event type; empty
// UserID means rows of every owner.
type Filter struct {
	Table  string
	Events []EventType
	UserID string
}

func (f Filter) Accepts(t EventType) bool {
	if len(f.Events) == 0 {
		return true
	}
	for _, e := range f.Events {
		if e == t {
			return true
		}
	}
	return false
}

// Source is the store's realtime primitive. Subscribe returns only once the
// stream is live: every change committed after it returns is delivered.
type Source interface {
	Subscribe(ctx context.Context, f Filter) (Stream, error)
}

// Stream delivers changes in arrival order. Changes is closed when the stream
// ends; Err then reports a permanent failure, or nil after Close.
// Reconnects are the transport's business and never end the stream.
type Stream interface {
	Changes() <-chan Change
	Err() error
	Close() error
}
