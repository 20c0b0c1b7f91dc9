package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/metrics"
	"github.com/xavierca1/leadsync/internal/replica"
)

var ErrNoUser = errors.New("feed: user id is required for a user-scoped subscription")

// Subscriber applies one table's change stream to a replica. There is at
// most one live subscription per Subscriber; Start with a different user
// tears the old one down first.
type Subscriber[T entity.Record] struct {
	source Source
	store  *replica.Store[T]
	table  string
	events []EventType
	scoped bool
	keep   func(T) bool
	logger *slog.Logger

	mu     sync.Mutex
	userID string
	stream Stream
	cancel context.CancelFunc
	done   chan struct{}
}

type Option[T entity.Record] func(*Subscriber[T])

// WithEvents limits the subscription to the given event types.
func WithEvents[T entity.Record](events ...EventType) Option[T] {
	return func(s *Subscriber[T]) { s.events = events }
}

// WithUserScope restricts the subscription to rows owned by the current user.
func WithUserScope[T entity.Record]() Option[T] {
	return func(s *Subscriber[T]) { s.scoped = true }
}

// WithPredicate keeps only records for which keep returns true. Records that
// stop matching after an update are evicted from the replica.
func WithPredicate[T entity.Record](keep func(T) bool) Option[T] {
	return func(s *Subscriber[T]) { s.keep = keep }
}

func WithLogger[T entity.Record](l *slog.Logger) Option[T] {
	return func(s *Subscriber[T]) { s.logger = l }
}

func NewSubscriber[T entity.Record](source Source, store *replica.Store[T], table string, opts ...Option[T]) *Subscriber[T] {
	s := &Subscriber[T]{
		source: source,
		store:  store,
		table:  table,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "feed", "table", table)
	return s
}

func (s *Subscriber[T]) filter(userID string) Filter {
	f := Filter{Table: s.table, Events: s.events}
	if s.scoped {
		f.UserID = userID
	}
	return f
}

// Start opens the subscription for userID. Calling it again for the same
// user is a no-op; calling it for another user re-subscribes.
func (s *Subscriber[T]) Start(ctx context.Context, userID string) error {
	if s.scoped && userID == "" {
		return ErrNoUser
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		if s.userID == userID {
			return nil
		}
		s.stopLocked()
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := s.source.Subscribe(streamCtx, s.filter(userID))
	if err != nil {
		cancel()
		return err
	}

	s.userID = userID
	s.stream = stream
	s.cancel = cancel
	s.done = make(chan struct{})
	metrics.SubscriptionOpened(s.table)

	go s.run(stream, userID, s.done)
	return nil
}

// Stop tears the subscription down and waits for the apply loop to exit.
func (s *Subscriber[T]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Subscriber[T]) stopLocked() {
	if s.stream == nil {
		return
	}
	if err := s.stream.Close(); err != nil {
		s.logger.Warn("closing change stream", "error", err)
	}
	s.cancel()
	<-s.done

	s.stream = nil
	s.cancel = nil
	s.done = nil
	s.userID = ""
	metrics.SubscriptionClosed(s.table)
}

func (s *Subscriber[T]) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

func (s *Subscriber[T]) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Subscriber[T]) run(stream Stream, userID string, done chan struct{}) {
	defer close(done)

	for ch := range stream.Changes() {
		s.apply(ch, userID)
	}

	// The replica keeps its last-known state; the next full reload bounds staleness.
	if err := stream.Err(); err != nil {
		metrics.RecordFeedFailure(s.table)
		s.logger.Error("change feed subscription failed", "user_id", userID, "error", err)
	}
}

func (s *Subscriber[T]) apply(ch Change, userID string) {
	outcome := s.applyChange(ch, userID)
	metrics.RecordChange(s.table, string(ch.Type), outcome)
}

func (s *Subscriber[T]) applyChange(ch Change, userID string) string {
	if ch.Table != s.table || !s.filter(userID).Accepts(ch.Type) {
		return "filtered"
	}

	switch ch.Type {
	case EventDelete:
		if s.scoped && ch.UserID != "" && ch.UserID != userID {
			return "filtered"
		}
		if s.store.Remove(ch.OldID) {
			return "applied"
		}
		return "ignored"

	case EventInsert, EventUpdate:
		var rec T
		if err := json.Unmarshal(ch.Record, &rec); err != nil {
			s.logger.Warn("undecodable change", "type", ch.Type, "error", err)
			return "invalid"
		}
		if s.scoped && rec.OwnerID() != userID {
			return "filtered"
		}
		if s.keep != nil && !s.keep(rec) {
			if s.store.Evict(rec) {
				return "applied"
			}
			return "filtered"
		}

		var changed bool
		if ch.Type == EventInsert {
			changed = s.store.Insert(rec)
		} else {
			changed = s.store.Upsert(rec)
		}
		if changed {
			return "applied"
		}
		return "ignored"
	}

	s.logger.Warn("unknown change type", "type", ch.Type)
	return "invalid"
}
