package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if !Role(s).Valid() {
		return fmt.Errorf("unknown message type %q", s)
	}
	*r = Role(s)
	return nil
}

// Message is one entry of the conversation log. The JSON shape matches the
// persisted history records: {"id", "type", "content", "timestamp"}.
type Message struct {
	ID        int64     `json:"id"`
	Role      Role      `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}

type State int

const (
	Idle State = iota
	AwaitingResponse
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingResponse:
		return "awaiting-response"
	default:
		return "unknown"
	}
}

// Store persists the whole log under a single slot. Implementations swallow
// their own failures; the controller never sees storage errors.
type Store interface {
	Load() []Message
	Save(log []Message)
	Clear()
}

// Asker sends one question to the remote endpoint and returns its answer.
type Asker interface {
	Ask(ctx context.Context, question, userID string) (string, error)
}

type AskerFunc func(ctx context.Context, question, userID string) (string, error)

func (f AskerFunc) Ask(ctx context.Context, question, userID string) (string, error) {
	return f(ctx, question, userID)
}
