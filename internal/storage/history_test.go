package storage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"gyankosh/internal/chat"

	"github.com/stretchr/testify/require"
)

func sampleLog() []chat.Message {
	ts := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return []chat.Message{
		{ID: ts.UnixMilli(), Role: chat.RoleUser, Content: "What is the capital of France?", CreatedAt: ts},
		{ID: ts.UnixMilli() + 1, Role: chat.RoleAssistant, Content: "Paris", CreatedAt: ts.Add(time.Second)},
	}
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	dir := t.TempDir()

	fb, err := NewFileBackend(filepath.Join(dir, "files"))
	require.NoError(t, err)
	sb, err := NewSQLiteBackend(filepath.Join(dir, "history.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sb.Close() })

	return map[string]Backend{
		KindFile:   fb,
		KindSQLite: sb,
		KindMemory: NewMemoryBackend(),
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			h := NewHistory(b, "", nil)
			require.Empty(t, h.Load())

			want := sampleLog()
			h.Save(want)
			require.Equal(t, want, h.Load())

			h.Save(want[:1])
			require.Equal(t, want[:1], h.Load(), "save must overwrite the whole log")
		})
	}
}

func TestHistoryClearRemovesValue(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			h := NewHistory(b, "k", nil)
			h.Save(sampleLog())
			h.Clear()

			_, err := b.Get(context.Background(), "k")
			require.ErrorIs(t, err, ErrNotFound)
			require.Empty(t, h.Load())

			h.Clear()
		})
	}
}

func TestHistoryMalformedDataLoadsEmpty(t *testing.T) {
	cases := map[string]string{
		"garbage":        "{not json",
		"empty":          "",
		"wrong shape":    `{"id":1}`,
		"unknown type":   `[{"id":1,"type":"system","content":"x","timestamp":"2025-01-01T00:00:00Z"}]`,
		"bad time":       `[{"id":1,"type":"user","content":"x","timestamp":"yesterday"}]`,
		"missing type":   `[{"id":1,"content":"x","timestamp":"2025-01-01T00:00:00Z"}]`,
		"missing time":   `[{"id":1,"type":"user","content":"x"}]`,
		"null element":   `[null]`,
		"empty object":   `[{}]`,
		"one bad record": `[{"id":1,"type":"user","content":"hi","timestamp":"2025-01-01T00:00:00Z"},{"id":2,"content":"x"}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var logBuf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&logBuf, nil))

			b := NewMemoryBackend()
			require.NoError(t, b.Put(context.Background(), DefaultKey, []byte(raw)))

			h := NewHistory(b, DefaultKey, logger)
			got := h.Load()
			require.NotNil(t, got)
			require.Empty(t, got)
			require.Contains(t, logBuf.String(), "chat history storage failure")
		})
	}
}

func TestHistoryNullLoadsEmpty(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Put(context.Background(), DefaultKey, []byte("null")))
	require.Empty(t, NewHistory(b, DefaultKey, nil).Load())
}

type failingBackend struct{ err error }

func (f failingBackend) Get(context.Context, string) ([]byte, error) { return nil, f.err }

func (f failingBackend) Put(context.Context, string, []byte) error { return f.err }

func (f failingBackend) Delete(context.Context, string) error { return f.err }

func (f failingBackend) Close() error { return nil }

func TestHistorySwallowsBackendFailures(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))
	h := NewHistory(failingBackend{err: errors.New("disk full")}, "k", logger)

	require.Empty(t, h.Load())
	h.Save(sampleLog())
	h.Clear()

	out := logBuf.String()
	require.Contains(t, out, "op=load")
	require.Contains(t, out, "op=save")
	require.Contains(t, out, "op=clear")
	require.Contains(t, out, "disk full")
}

func TestHistoryReadsBrowserExport(t *testing.T) {
	raw := `[{"id":1717171717171,"type":"user","content":"hi","timestamp":"2024-05-31T16:08:37.171Z"},` +
		`{"id":1717171717172,"type":"assistant","content":"hello","timestamp":"2024-05-31T16:08:38.002Z"}]`
	b := NewMemoryBackend()
	require.NoError(t, b.Put(context.Background(), DefaultKey, []byte(raw)))

	got := NewHistory(b, DefaultKey, nil).Load()
	require.Len(t, got, 2)
	require.Equal(t, chat.RoleUser, got[0].Role)
	require.Equal(t, int64(1717171717172), got[1].ID)
}

func TestHistoryBacksConversation(t *testing.T) {
	b := NewMemoryBackend()
	h := NewHistory(b, DefaultKey, nil)

	c := chat.New(h)
	_, err := c.Send(context.Background(), chat.AskerFunc(func(context.Context, string, string) (string, error) {
		return "Paris", nil
	}), "What is the capital of France?")
	require.NoError(t, err)

	reopened := chat.New(NewHistory(b, DefaultKey, nil))
	require.Equal(t, c.Messages(), reopened.Messages())

	reopened.Clear()
	require.Empty(t, chat.New(NewHistory(b, DefaultKey, nil)).Messages())
}
