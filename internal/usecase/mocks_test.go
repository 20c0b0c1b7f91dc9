package usecase_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xavierca1/leadsync/internal/entity"
)

// MockLeadRepository
type MockLeadRepository struct {
	mock.Mock
}

func (m *MockLeadRepository) Create(ctx context.Context, lead *entity.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

func (m *MockLeadRepository) FindByID(ctx context.Context, id string) (*entity.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Lead), args.Error(1)
}

func (m *MockLeadRepository) Update(ctx context.Context, id string, patch entity.LeadPatch) (*entity.Lead, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Lead), args.Error(1)
}

func (m *MockLeadRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockLeadRepository) List(ctx context.Context, q entity.LeadQuery) ([]entity.Lead, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Lead), args.Error(1)
}

// MockLogRepository
type MockLogRepository struct {
	mock.Mock
}

func (m *MockLogRepository) Append(ctx context.Context, log *entity.AutomationLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockLogRepository) ListByUser(ctx context.Context, userID string, limit int) ([]entity.AutomationLog, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.AutomationLog), args.Error(1)
}

func (m *MockLogRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockLogRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// memTriggerRepo is a thread-safe trigger store. When gate is set, raising
// gateFlag blocks until gate is closed.
type memTriggerRepo struct {
	mu       sync.Mutex
	rows     map[string]entity.Trigger
	writes   []bool
	failOn   map[bool]error
	nilReply bool
	gate     chan struct{}
	gateFlag entity.Flag
}

func newMemTriggerRepo() *memTriggerRepo {
	return &memTriggerRepo{rows: map[string]entity.Trigger{}, failOn: map[bool]error{}}
}

func (r *memTriggerRepo) FindByID(_ context.Context, id string) (*entity.Trigger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return &t, nil
}

func (r *memTriggerRepo) Create(_ context.Context, t *entity.Trigger) (*entity.Trigger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.rows[t.ID]; ok {
		return &existing, nil
	}
	r.rows[t.ID] = *t
	out := *t
	return &out, nil
}

func (r *memTriggerRepo) SetFlag(ctx context.Context, id string, flag entity.Flag, value bool, updatedBy string) (*entity.Trigger, error) {
	r.mu.Lock()
	gate := r.gate
	gated := flag == r.gateFlag
	r.mu.Unlock()
	if gate != nil && gated && value {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, value)
	if err := r.failOn[value]; err != nil {
		return nil, err
	}

	t, ok := r.rows[id]
	if !ok {
		t = entity.Trigger{ID: id, CreatedAt: time.Now().UTC()}
	}
	switch flag {
	case entity.FlagStartCalling:
		t.StartCalling = value
	case entity.FlagStartQualifying:
		t.StartQualifying = value
	}
	t.UpdatedBy = updatedBy
	t.UpdatedAt = time.Now().UTC()
	r.rows[id] = t

	if r.nilReply {
		return nil, nil
	}
	out := t
	return &out, nil
}

func (r *memTriggerRepo) flag(f entity.Flag) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[entity.TriggerID].Flag(f)
}

func (r *memTriggerRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.writes)
}

// memLogRepo keeps appended logs in memory.
type memLogRepo struct {
	mu   sync.Mutex
	logs []entity.AutomationLog
	err  error
}

func (r *memLogRepo) Append(_ context.Context, l *entity.AutomationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.logs = append(r.logs, *l)
	return nil
}

func (r *memLogRepo) ListByUser(_ context.Context, userID string, limit int) ([]entity.AutomationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.AutomationLog
	for i := len(r.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if r.logs[i].UserID == userID {
			out = append(out, r.logs[i])
		}
	}
	return out, nil
}

func (r *memLogRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.logs {
		if l.ID == id {
			r.logs = append(r.logs[:i], r.logs[i+1:]...)
			return nil
		}
	}
	return entity.ErrNotFound
}

func (r *memLogRepo) DeleteByUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.logs[:0]
	var n int64
	for _, l := range r.logs {
		if l.UserID == userID {
			n++
			continue
		}
		kept = append(kept, l)
	}
	r.logs = kept
	return n, nil
}

func (r *memLogRepo) actions() []entity.ActionType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.ActionType, len(r.logs))
	for i, l := range r.logs {
		out[i] = l.ActionType
	}
	return out
}

func (r *memLogRepo) all() []entity.AutomationLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.AutomationLog(nil), r.logs...)
}

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) errorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors)
}

var errStoreDown = errors.New("connection refused")
