// Package notify holds the short-lived operator notifications raised by
// dashboard actions.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a notification stays before it is dismissed.
const DefaultTTL = 5000 * time.Millisecond

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Center keeps the live notifications, newest last. Each one removes
// itself after the TTL unless dismissed earlier.
type Center struct {
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	items  []Notification
	timers map[string]*time.Timer
	closed bool
}

type Option func(*Center)

func WithTTL(d time.Duration) Option {
	return func(c *Center) { c.ttl = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Center) { c.logger = l }
}

func NewCenter(opts ...Option) *Center {
	c := &Center{
		ttl:    DefaultTTL,
		logger: slog.Default(),
		timers: make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Center) Success(msg string) { c.Push(KindSuccess, msg) }
func (c *Center) Error(msg string)   { c.Push(KindError, msg) }

func (c *Center) Push(kind Kind, msg string) Notification {
	n := Notification{
		ID:        uuid.New().String(),
		Kind:      kind,
		Message:   msg,
		CreatedAt: time.Now().UTC(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return n
	}
	c.items = append(c.items, n)
	c.timers[n.ID] = time.AfterFunc(c.ttl, func() { c.Dismiss(n.ID) })

	if kind == KindError {
		c.logger.Warn("notification", "message", msg)
	} else {
		c.logger.Debug("notification", "message", msg)
	}
	return n
}

func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Center) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.items...)
}

// Close stops every pending dismissal and drops the notifications.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.items = nil
	c.closed = true
}

// Scope remembers the notifications pushed through it so their owner can
// dismiss them all at once.
type Scope struct {
	c *Center

	mu  sync.Mutex
	ids map[string]struct{}
}

func (c *Center) Scope() *Scope {
	return &Scope{c: c, ids: make(map[string]struct{})}
}

func (s *Scope) Success(msg string) { s.Push(KindSuccess, msg) }
func (s *Scope) Error(msg string)   { s.Push(KindError, msg) }

func (s *Scope) Push(kind Kind, msg string) Notification {
	n := s.c.Push(kind, msg)
	s.mu.Lock()
	s.ids[n.ID] = struct{}{}
	s.mu.Unlock()
	return n
}

// Close dismisses whatever the scope pushed that is still live, pending
// timers included. The scope can be used again afterwards.
func (s *Scope) Close() {
	s.mu.Lock()
	ids := s.ids
	s.ids = make(map[string]struct{})
	s.mu.Unlock()

	for id := range ids {
		s.c.Dismiss(id)
	}
}
