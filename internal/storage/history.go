package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gyankosh/internal/chat"
)

const DefaultKey = "metaGyankosh_chat_history"

// History persists a chat log as one JSON array under a single key. Every
// failure is logged and swallowed; callers never see an error.
type History struct {
	backend Backend
	key     string
	logger  *slog.Logger
}

func NewHistory(backend Backend, key string, logger *slog.Logger) *History {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &History{backend: backend, key: key, logger: logger}
}

func (h *History) Load() []chat.Message {
	data, err := h.backend.Get(context.Background(), h.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			h.report("load", err)
		}
		return []chat.Message{}
	}

	var msgs []chat.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		h.report("parse", err)
		return []chat.Message{}
	}
	if msgs == nil {
		return []chat.Message{}
	}
	for i, m := range msgs {
		if err := checkMessage(m); err != nil {
			h.report("parse", fmt.Errorf("record %d: %w", i, err))
			return []chat.Message{}
		}
	}
	return msgs
}

// checkMessage catches records that decode cleanly but are missing fields,
// such as null elements or objects without a type.
func checkMessage(m chat.Message) error {
	switch {
	case !m.Role.Valid():
		return fmt.Errorf("missing or unknown type %q", m.Role)
	case m.CreatedAt.IsZero():
		return errors.New("missing timestamp")
	}
	return nil
}

func (h *History) Save(log []chat.Message) {
	if log == nil {
		log = []chat.Message{}
	}
	data, err := json.Marshal(log)
	if err != nil {
		h.report("encode", err)
		return
	}
	if err := h.backend.Put(context.Background(), h.key, data); err != nil {
		h.report("save", err)
	}
}

func (h *History) Clear() {
	if err := h.backend.Delete(context.Background(), h.key); err != nil {
		h.report("clear", err)
	}
}

func (h *History) report(op string, err error) {
	serr := &StorageError{Op: op, Key: h.key, Err: err}
	h.logger.Error("chat history storage failure", "op", op, "key", h.key, "error", serr)
}

var _ chat.Store = (*History)(nil)
