// Package dashboard keeps one operator's live view of leads, the trigger and
// automation logs. A Session owns a replica per table; views mount the
// tables they read and the first mount opens the table's change feed.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/feed"
	"github.com/xavierca1/leadsync/internal/notify"
	"github.com/xavierca1/leadsync/internal/replica"
	"github.com/xavierca1/leadsync/internal/usecase"
)

var ErrNoUser = errors.New("dashboard: no signed-in user")

type Repositories struct {
	Leads    entity.LeadRepositoryInterface
	Triggers entity.TriggerRepositoryInterface
	Logs     entity.AutomationLogRepositoryInterface
}

type Session struct {
	Leads    *replica.Store[entity.Lead]
	Triggers *replica.Store[entity.Trigger]
	Logs     *replica.Store[entity.AutomationLog]

	Notifications *notify.Center
	Orchestrator  *usecase.TriggerOrchestrator
	LeadManager   *usecase.ManageLeadsUseCase
	LogManager    *usecase.ManageLogsUseCase

	logger *slog.Logger

	leadsTable   *table[entity.Lead]
	triggerTable *table[entity.Trigger]
	logsTable    *table[entity.AutomationLog]

	mu     sync.RWMutex
	userID string
}

type SessionOption func(*sessionConfig)

type sessionConfig struct {
	logger        *slog.Logger
	notifications *notify.Center
	orchestrator  []usecase.OrchestratorOption
}

func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(c *sessionConfig) { c.logger = l }
}

func WithNotifications(n *notify.Center) SessionOption {
	return func(c *sessionConfig) { c.notifications = n }
}

func WithOrchestratorOptions(opts ...usecase.OrchestratorOption) SessionOption {
	return func(c *sessionConfig) { c.orchestrator = append(c.orchestrator, opts...) }
}

func NewSession(source feed.Source, repos Repositories, opts ...SessionOption) *Session {
	cfg := sessionConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.notifications == nil {
		cfg.notifications = notify.NewCenter(notify.WithLogger(cfg.logger))
	}

	s := &Session{
		Leads:         replica.New[entity.Lead](),
		Triggers:      replica.New[entity.Trigger](),
		Logs:          replica.New[entity.AutomationLog](),
		Notifications: cfg.notifications,
		logger:        cfg.logger.With("component", "session"),
	}

	orchOpts := append([]usecase.OrchestratorOption{usecase.WithOrchestratorLogger(cfg.logger)}, cfg.orchestrator...)
	s.Orchestrator = usecase.NewTriggerOrchestrator(repos.Triggers, repos.Logs, s.Triggers, s.Notifications, orchOpts...)
	s.LeadManager = usecase.NewManageLeadsUseCase(repos.Leads, cfg.logger)
	s.LogManager = usecase.NewManageLogsUseCase(repos.Logs, s.Notifications, cfg.logger)

	s.leadsTable = &table[entity.Lead]{
		name:  entity.TableLeads,
		store: s.Leads,
		sub: feed.NewSubscriber(source, s.Leads, entity.TableLeads,
			feed.WithUserScope[entity.Lead](),
			feed.WithLogger[entity.Lead](cfg.logger)),
		load: func(ctx context.Context, userID string) ([]entity.Lead, error) {
			return s.LeadManager.List(ctx, entity.LeadQuery{UserID: userID})
		},
	}

	// The trigger row is shared by every operator, so its feed is not user scoped.
	s.triggerTable = &table[entity.Trigger]{
		name:  entity.TableTriggers,
		store: s.Triggers,
		sub: feed.NewSubscriber(source, s.Triggers, entity.TableTriggers,
			feed.WithEvents[entity.Trigger](feed.EventInsert, feed.EventUpdate),
			feed.WithPredicate(func(t entity.Trigger) bool { return t.ID == entity.TriggerID }),
			feed.WithLogger[entity.Trigger](cfg.logger)),
		load: func(ctx context.Context, _ string) ([]entity.Trigger, error) {
			trig, err := s.Orchestrator.Load(ctx)
			if err != nil {
				return nil, err
			}
			return []entity.Trigger{*trig}, nil
		},
	}

	s.logsTable = &table[entity.AutomationLog]{
		name:  entity.TableAutomationLogs,
		store: s.Logs,
		sub: feed.NewSubscriber(source, s.Logs, entity.TableAutomationLogs,
			feed.WithEvents[entity.AutomationLog](feed.EventInsert, feed.EventDelete),
			feed.WithUserScope[entity.AutomationLog](),
			feed.WithLogger[entity.AutomationLog](cfg.logger)),
		load: func(ctx context.Context, userID string) ([]entity.AutomationLog, error) {
			return s.LogManager.List(ctx, userID)
		},
	}

	return s
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// SetUser switches the session to another identity. Every mounted table is
// re-subscribed for the new user and reloaded.
func (s *Session) SetUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	if s.userID == userID {
		s.mu.Unlock()
		return nil
	}
	s.userID = userID
	s.mu.Unlock()

	s.logger.Info("session identity changed", "user_id", userID)

	var errs []error
	for _, t := range s.tables() {
		if userID == "" {
			t.suspend()
			continue
		}
		if err := t.rebind(ctx, userID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reload performs a full reload of every mounted table.
func (s *Session) Reload(ctx context.Context) error {
	userID := s.UserID()
	if userID == "" {
		return nil
	}

	var errs []error
	for _, t := range s.tables() {
		if !t.mounted() {
			continue
		}
		if err := t.reload(ctx, userID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Mounted lists the tables that currently have at least one view.
func (s *Session) Mounted() []string {
	var out []string
	for _, t := range s.tables() {
		if t.mounted() {
			out = append(out, t.tableName())
		}
	}
	return out
}

// Close drops every subscription and pending notification. Scheduled
// disarms are left to finish; call Orchestrator.Shutdown to wait for them.
func (s *Session) Close() {
	for _, t := range s.tables() {
		t.close()
	}
	s.Notifications.Close()
}

func (s *Session) tables() []binding {
	return []binding{s.leadsTable, s.triggerTable, s.logsTable}
}

type binding interface {
	tableName() string
	acquire(ctx context.Context, userID string) error
	release()
	rebind(ctx context.Context, userID string) error
	reload(ctx context.Context, userID string) error
	suspend()
	mounted() bool
	watch(fn func()) func()
	close()
}

// table ties a replica to its change feed. refs counts mounted views; the
// subscription lives while refs is positive.
type table[T entity.Record] struct {
	name  string
	store *replica.Store[T]
	sub   *feed.Subscriber[T]
	load  func(ctx context.Context, userID string) ([]T, error)

	mu   sync.Mutex
	refs int
}

func (t *table[T]) tableName() string { return t.name }

// acquire mounts one view. The feed is listening before the reload's query
// runs, and the reload merges with whatever the feed applies meanwhile.
func (t *table[T]) acquire(ctx context.Context, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.sub.Start(ctx, userID); err != nil {
		return err
	}
	t.refs++

	if err := t.reloadLocked(ctx, userID); err != nil {
		t.refs--
		if t.refs == 0 {
			t.sub.Stop()
		}
		return err
	}
	return nil
}

func (t *table[T]) release() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.refs == 0 {
		return
	}
	t.refs--
	if t.refs == 0 {
		t.sub.Stop()
	}
}

func (t *table[T]) rebind(ctx context.Context, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.refs == 0 {
		t.store.Replace(nil)
		return nil
	}
	if err := t.sub.Start(ctx, userID); err != nil {
		return err
	}
	return t.reloadLocked(ctx, userID)
}

func (t *table[T]) reload(ctx context.Context, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reloadLocked(ctx, userID)
}

// reloadLocked merges a fresh snapshot into the replica. Feed changes
// applied while the query runs are kept when they are newer.
func (t *table[T]) reloadLocked(ctx context.Context, userID string) error {
	r := t.store.BeginReload()
	recs, err := t.load(ctx, userID)
	if err != nil {
		t.store.CancelReload(r)
		return err
	}
	t.store.Merge(r, recs)
	return nil
}

// suspend keeps the mounts but drops the feed and the data, for a signed-out session.
func (t *table[T]) suspend() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sub.Stop()
	t.store.Replace(nil)
}

func (t *table[T]) mounted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refs > 0
}

func (t *table[T]) watch(fn func()) func() {
	return t.store.Watch(fn)
}

func (t *table[T]) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refs = 0
	t.sub.Stop()
}
