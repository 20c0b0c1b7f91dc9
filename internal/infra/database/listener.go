package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/feed"
)

var (
	ErrUnknownTable   = errors.New("change feed: unknown table")
	ErrListenerClosed = errors.New("change feed: listener closed")
	ErrListenTimeout  = errors.New("change feed: listener did not connect in time")
)

var feedTables = map[string]bool{
	entity.TableLeads:          true,
	entity.TableTriggers:       true,
	entity.TableAutomationLogs: true,
}

// ChannelName is the NOTIFY channel a table's changes are announced on.
func ChannelName(table string) string {
	return "leadsync_" + table
}

// ChangeSource turns Postgres LISTEN/NOTIFY into feed streams. Each
// subscription holds its own listener connection; pq reconnects it quietly.
type ChangeSource struct {
	DB         *sql.DB
	ConnString string

	logger        *slog.Logger
	minReconnect  time.Duration
	maxReconnect  time.Duration
	pingEvery     time.Duration
	listenTimeout time.Duration
}

func NewChangeSource(db *sql.DB, connString string, logger *slog.Logger) *ChangeSource {
	return &ChangeSource{
		DB:            db,
		ConnString:    connString,
		logger:        logger.With("component", "listener"),
		minReconnect:  10 * time.Second,
		maxReconnect:  time.Minute,
		pingEvery:     90 * time.Second,
		listenTimeout: time.Minute,
	}
}

func (s *ChangeSource) Subscribe(ctx context.Context, f feed.Filter) (feed.Stream, error) {
	if !feedTables[f.Table] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, f.Table)
	}

	logger := s.logger.With("table", f.Table, "user_id", f.UserID)
	connected := make(chan struct{})
	var once sync.Once
	listener := pq.NewListener(s.ConnString, s.minReconnect, s.maxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			// pq has issued LISTEN for every registered channel by now.
			once.Do(func() { close(connected) })
		case pq.ListenerEventDisconnected:
			logger.Warn("change feed disconnected", "error", err)
		case pq.ListenerEventReconnected:
			logger.Info("change feed reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			logger.Debug("change feed reconnect attempt failed", "error", err)
		}
	})

	// LISTEN is in effect before Subscribe returns. Listen on a listener
	// that is still dialing only registers the channel, so wait for the
	// first connection as well.
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = s.listenTimeout
	listen := func() error {
		err := listener.Listen(ChannelName(f.Table))
		if errors.Is(err, pq.ErrChannelAlreadyOpen) {
			return nil
		}
		return err
	}
	if err := backoff.Retry(listen, backoff.WithContext(policy, ctx)); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen on %s: %w", ChannelName(f.Table), err)
	}

	wait := time.NewTimer(s.listenTimeout)
	defer wait.Stop()
	select {
	case <-connected:
	case <-ctx.Done():
		listener.Close()
		return nil, ctx.Err()
	case <-wait.C:
		listener.Close()
		return nil, fmt.Errorf("listen on %s: %w", ChannelName(f.Table), ErrListenTimeout)
	}

	st := &pgStream{
		ch:   make(chan feed.Change, 64),
		done: make(chan struct{}),
	}
	go s.run(ctx, listener, f, st, logger)
	return st, nil
}

func (s *ChangeSource) run(ctx context.Context, listener *pq.Listener, f feed.Filter, st *pgStream, logger *slog.Logger) {
	defer close(st.ch)
	defer listener.Close()

	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-st.done:
			return
		case <-ticker.C:
			go listener.Ping()
		case n, ok := <-listener.Notify:
			if !ok {
				st.fail(ErrListenerClosed)
				return
			}
			if n == nil {
				// pq sends nil after a reconnect; notifications may have been lost.
				continue
			}
			change, keep, err := s.resolve(ctx, n.Extra, f)
			if err != nil {
				logger.Warn("dropping change notification", "error", err)
				continue
			}
			if !keep {
				continue
			}
			select {
			case st.ch <- change:
			case <-st.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

type notification struct {
	Table  string         `json:"table"`
	Type   feed.EventType `json:"type"`
	ID     string         `json:"id"`
	UserID string         `json:"user_id"`
}

// parseNotification decodes a NOTIFY payload and reports whether f wants it.
func parseNotification(payload string, f feed.Filter) (notification, bool, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return n, false, fmt.Errorf("decode notification: %w", err)
	}
	if n.Table != f.Table || !f.Accepts(n.Type) {
		return n, false, nil
	}
	if f.UserID != "" && n.UserID != f.UserID {
		return n, false, nil
	}
	return n, true, nil
}

// resolve builds the Change for a notification, fetching the post-image of
// inserts and updates. A row deleted before the fetch is skipped.
func (s *ChangeSource) resolve(ctx context.Context, payload string, f feed.Filter) (feed.Change, bool, error) {
	n, keep, err := parseNotification(payload, f)
	if err != nil || !keep {
		return feed.Change{}, false, err
	}

	change := feed.Change{Table: n.Table, Type: n.Type, UserID: n.UserID}
	if n.Type == feed.EventDelete {
		change.OldID = n.ID
		return change, true, nil
	}

	var raw []byte
	// n.Table was checked against the subscription's table, itself from feedTables.
	query := fmt.Sprintf(`SELECT row_to_json(t) FROM %s t WHERE id = $1`, pq.QuoteIdentifier(n.Table))
	err = s.DB.QueryRowContext(ctx, query, n.ID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return feed.Change{}, false, nil
	}
	if err != nil {
		return feed.Change{}, false, err
	}
	change.Record = raw
	return change, true, nil
}

type pgStream struct {
	ch   chan feed.Change
	done chan struct{}
	once sync.Once

	mu  sync.Mutex
	err error
}

func (s *pgStream) Changes() <-chan feed.Change { return s.ch }

func (s *pgStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *pgStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *pgStream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}
