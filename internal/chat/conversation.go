package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrorReply is the assistant message appended when a request fails.
const ErrorReply = "Sorry, I encountered an error while processing your request. Please try again."

const DefaultUserID = "user"

var (
	ErrEmptyMessage     = errors.New("message is empty")
	ErrAwaitingResponse = errors.New("a request is already outstanding")
)

// Conversation owns the message log and the request state. It is driven from
// a single event loop; the only work done elsewhere is Await.
type Conversation struct {
	store   Store
	userID  string
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu         sync.Mutex
	log        []Message
	state      State
	generation uint64
	lastID     int64
	pending    *Turn
}

type Option func(*Conversation)

func WithUserID(id string) Option {
	return func(c *Conversation) {
		if strings.TrimSpace(id) != "" {
			c.userID = id
		}
	}
}

// WithTimeout bounds each request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Conversation) { c.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Conversation) { c.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Conversation) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a conversation hydrated from store.
func New(store Store, opts ...Option) *Conversation {
	c := &Conversation{
		store:  store,
		userID: DefaultUserID,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.log = append([]Message(nil), store.Load()...)
	for _, m := range c.log {
		if m.ID > c.lastID {
			c.lastID = m.ID
		}
	}
	return c
}

// Turn is an outstanding request. It carries the generation it was issued in
// so a result arriving after a clear can be recognised and dropped.
type Turn struct {
	Question string
	UserID   string

	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
}

func (t *Turn) Context() context.Context { return t.ctx }

type Result struct {
	Turn   *Turn
	Answer string
	Err    error
}

// Submit appends the user message and moves to AwaitingResponse. The caller
// must run the returned turn with Await and hand the result to Settle.
func (c *Conversation) Submit(ctx context.Context, text string) (*Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == AwaitingResponse {
		return nil, ErrAwaitingResponse
	}

	c.appendLocked(RoleUser, text)
	c.store.Save(c.snapshotLocked())

	var cancel context.CancelFunc
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	t := &Turn{
		Question:   text,
		UserID:     c.userID,
		generation: c.generation,
		ctx:        ctx,
		cancel:     cancel,
	}
	c.pending = t
	c.state = AwaitingResponse
	return t, nil
}

// Await performs the network call for t. It blocks until the asker returns
// or the turn's context ends, and touches no conversation state.
func Await(asker Asker, t *Turn) Result {
	answer, err := asker.Ask(t.ctx, t.Question, t.UserID)
	return Result{Turn: t, Answer: answer, Err: err}
}

// Settle records the outcome of a turn and returns to Idle. It reports false
// when the turn was already settled or was issued before the most recent
// clear; such results are dropped.
func (c *Conversation) Settle(res Result) (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := res.Turn
	t.cancel()
	if c.pending != t {
		return Message{}, false
	}
	c.pending = nil
	c.state = Idle

	if t.generation != c.generation {
		c.logger.Info("dropping response for cleared conversation",
			"question_len", len(t.Question),
			"error", res.Err,
		)
		return Message{}, false
	}

	content := res.Answer
	if res.Err != nil {
		c.logger.Error("ask failed", "error", res.Err)
		content = ErrorReply
	}
	msg := c.appendLocked(RoleAssistant, content)
	c.store.Save(c.snapshotLocked())
	return msg, true
}

// Send runs a whole turn synchronously.
func (c *Conversation) Send(ctx context.Context, asker Asker, text string) (Message, error) {
	t, err := c.Submit(ctx, text)
	if err != nil {
		return Message{}, err
	}
	msg, _ := c.Settle(Await(asker, t))
	return msg, nil
}

// Clear empties the log in memory and in storage. An outstanding request is
// left running; its result will be dropped by Settle.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log = nil
	c.generation++
	c.store.Clear()
}

// ClearConfirmed clears only when confirm returns true.
func (c *Conversation) ClearConfirmed(confirm func() bool) bool {
	if confirm == nil || !confirm() {
		return false
	}
	c.Clear()
	return true
}

// Close cancels the outstanding request, if any.
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.pending.cancel()
	}
}

func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.log)
}

func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conversation) Awaiting() bool {
	return c.State() == AwaitingResponse
}

// LastAnswer returns the content of the most recent assistant message.
func (c *Conversation) LastAnswer() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.log) - 1; i >= 0; i-- {
		if c.log[i].Role == RoleAssistant {
			return c.log[i].Content, true
		}
	}
	return "", false
}

func (c *Conversation) appendLocked(role Role, content string) Message {
	now := c.now().UTC()
	id := now.UnixMilli()
	if id <= c.lastID {
		id = c.lastID + 1
	}
	c.lastID = id

	msg := Message{ID: id, Role: role, Content: content, CreatedAt: now}
	c.log = append(c.log, msg)
	return msg
}

func (c *Conversation) snapshotLocked() []Message {
	out := make([]Message, len(c.log))
	copy(out, c.log)
	return out
}
