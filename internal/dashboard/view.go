package dashboard

import (
	"context"
	"sync"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/notify"
	"github.com/xavierca1/leadsync/internal/usecase"
)

// view is the mount bookkeeping shared by every screen.
type view struct {
	s      *Session
	tables []binding
	notes  *notify.Scope

	mu      sync.Mutex
	mounted bool
	cancels []func()
}

// Mount subscribes the view's tables and reloads them. Mounting twice is a no-op.
func (v *view) Mount(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.mounted {
		return nil
	}
	userID := v.s.UserID()
	if userID == "" {
		return ErrNoUser
	}

	for i, t := range v.tables {
		if err := t.acquire(ctx, userID); err != nil {
			for _, done := range v.tables[:i] {
				done.release()
			}
			return err
		}
	}
	v.mounted = true
	return nil
}

// Unmount releases the view's subscriptions and watchers and dismisses the
// notifications it raised. Scheduled disarms are not affected.
func (v *view) Unmount() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.notes.Close()
	if !v.mounted {
		return
	}
	for _, cancel := range v.cancels {
		cancel()
	}
	v.cancels = nil
	for _, t := range v.tables {
		t.release()
	}
	v.mounted = false
}

func (v *view) Mounted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mounted
}

// OnChange runs fn after any change to the view's tables until Unmount.
func (v *view) OnChange(fn func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range v.tables {
		v.cancels = append(v.cancels, t.watch(fn))
	}
}

type LeadsView struct{ view }

func (s *Session) LeadsView() *LeadsView {
	return &LeadsView{view{s: s, tables: []binding{s.leadsTable}, notes: s.Notifications.Scope()}}
}

func (v *LeadsView) Page(f LeadFilter) LeadsPage {
	return FilterLeads(v.s.Leads.List(), f)
}

func (v *LeadsView) Create(ctx context.Context, input usecase.LeadInput) (*entity.Lead, error) {
	lead, err := v.s.LeadManager.Create(ctx, v.s.UserID(), input, v.s.Leads)
	v.report(err, "Lead added successfully", "Failed to add lead")
	return lead, err
}

func (v *LeadsView) Update(ctx context.Context, id string, input usecase.LeadInput) (*entity.Lead, error) {
	lead, err := v.s.LeadManager.Update(ctx, id, input, v.s.Leads)
	v.report(err, "Lead updated successfully", "Failed to update lead")
	return lead, err
}

func (v *LeadsView) Delete(ctx context.Context, id string) error {
	err := v.s.LeadManager.Delete(ctx, id, v.s.Leads)
	v.report(err, "Lead deleted successfully", "Failed to delete lead")
	return err
}

func (v *view) report(err error, ok, failed string) {
	if err != nil {
		v.notes.Error(failed + ": " + err.Error())
		return
	}
	v.notes.Success(ok)
}

type InboundView struct{ view }

func (s *Session) InboundView() *InboundView {
	return &InboundView{view{s: s, tables: []binding{s.leadsTable}, notes: s.Notifications.Scope()}}
}

func (v *InboundView) Page(filter string) InboundPage {
	return ProjectInbound(v.s.Leads.List(), filter)
}

type DashboardView struct{ view }

func (s *Session) DashboardView() *DashboardView {
	return &DashboardView{view{s: s, tables: []binding{s.leadsTable}, notes: s.Notifications.Scope()}}
}

func (v *DashboardView) Stats() DashboardStats {
	return ComputeDashboardStats(v.s.Leads.List())
}

type AnalyticsView struct{ view }

func (s *Session) AnalyticsView() *AnalyticsView {
	return &AnalyticsView{view{s: s, tables: []binding{s.leadsTable}, notes: s.Notifications.Scope()}}
}

func (v *AnalyticsView) Analytics() Analytics {
	return ComputeAnalytics(v.s.Leads.List())
}

type AutomationView struct{ view }

func (s *Session) AutomationView() *AutomationView {
	return &AutomationView{view{s: s, tables: []binding{s.triggerTable, s.logsTable}, notes: s.Notifications.Scope()}}
}

func (v *AutomationView) State() AutomationState {
	o := v.s.Orchestrator
	return ProjectAutomation(
		v.s.Triggers.List(),
		v.s.Logs.List(),
		v.s.UserID(),
		usecase.LogsPageSize,
		o.Busy,
		func(f entity.Flag) string { return string(o.State(f)) },
	)
}

// Arm raises flag for the signed-in user. The scheduled disarm belongs to
// the orchestrator and still fires after this view unmounts.
func (v *AutomationView) Arm(ctx context.Context, flag entity.Flag) error {
	userID := v.s.UserID()
	if userID == "" {
		return ErrNoUser
	}
	return v.s.Orchestrator.ArmNotifying(ctx, userID, flag, v.notes)
}

func (v *AutomationView) DeleteLog(ctx context.Context, id string) error {
	return v.s.LogManager.WithNotifier(v.notes).Delete(ctx, id, v.s.Logs)
}

func (v *AutomationView) DeleteAllLogs(ctx context.Context) (int64, error) {
	return v.s.LogManager.WithNotifier(v.notes).DeleteAll(ctx, v.s.UserID(), v.s.Logs)
}
