package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/feed"
)

type memLeads struct {
	mu   sync.Mutex
	rows map[string]entity.Lead
	err  error
}

func newMemLeads(leads ...entity.Lead) *memLeads {
	m := &memLeads{rows: map[string]entity.Lead{}}
	for _, l := range leads {
		m.rows[l.ID] = l
	}
	return m
}

func (m *memLeads) Create(_ context.Context, l *entity.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows[l.ID] = *l
	return nil
}

func (m *memLeads) FindByID(_ context.Context, id string) (*entity.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rows[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return &l, nil
}

func (m *memLeads) Update(_ context.Context, id string, p entity.LeadPatch) (*entity.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	l, ok := m.rows[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	if p.Status != nil {
		l.Status = *p.Status
	}
	if p.Phone != nil {
		l.Phone = *p.Phone
	}
	if p.Transcript != nil {
		l.Transcript = *p.Transcript
	}
	if p.Metadata != nil {
		l.Metadata = p.Metadata
	}
	l.UpdatedAt = p.UpdatedAt
	m.rows[id] = l
	return &l, nil
}

func (m *memLeads) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return entity.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memLeads) List(_ context.Context, q entity.LeadQuery) ([]entity.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.Lead, 0)
	for _, l := range m.rows {
		if l.UserID == q.UserID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memLeads) get(id string) entity.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

type memLogs struct {
	mu   sync.Mutex
	logs []entity.AutomationLog
}

func (m *memLogs) Append(_ context.Context, l *entity.AutomationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *l)
	return nil
}

func (m *memLogs) ListByUser(_ context.Context, userID string, limit int) ([]entity.AutomationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.AutomationLog, 0)
	for i := len(m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.logs[i].UserID == userID {
			out = append(out, m.logs[i])
		}
	}
	return out, nil
}

func (m *memLogs) Delete(context.Context, string) error { return nil }

func (m *memLogs) DeleteByUser(context.Context, string) (int64, error) { return 0, nil }

func (m *memLogs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

type memTriggers struct {
	mu  sync.Mutex
	row *entity.Trigger
}

func (m *memTriggers) FindByID(context.Context, string) (*entity.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.row == nil {
		return nil, entity.ErrNotFound
	}
	t := *m.row
	return &t, nil
}

func (m *memTriggers) Create(_ context.Context, t *entity.Trigger) (*entity.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.row == nil {
		row := *t
		m.row = &row
	}
	out := *m.row
	return &out, nil
}

func (m *memTriggers) SetFlag(_ context.Context, _ string, flag entity.Flag, value bool, by string) (*entity.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.row == nil {
		return nil, nil
	}
	if flag == entity.FlagStartCalling {
		m.row.StartCalling = value
	} else {
		m.row.StartQualifying = value
	}
	m.row.UpdatedBy = by
	m.row.UpdatedAt = time.Now().UTC()
	out := *m.row
	return &out, nil
}

// idleSource hands out streams that never deliver anything.
type idleSource struct{}

type idleStream struct {
	ch   chan feed.Change
	once sync.Once
}

func (idleSource) Subscribe(context.Context, feed.Filter) (feed.Stream, error) {
	return &idleStream{ch: make(chan feed.Change)}, nil
}

func (s *idleStream) Changes() <-chan feed.Change { return s.ch }
func (s *idleStream) Err() error                  { return nil }

func (s *idleStream) Close() error {
	s.once.Do(func() { close(s.ch) })
	return nil
}
