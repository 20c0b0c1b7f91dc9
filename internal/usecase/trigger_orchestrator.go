package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/metrics"
)

// DisarmDelay is how long a raised flag stays high before it is cleared.
const DisarmDelay = 3000 * time.Millisecond

const defaultWriteTimeout = 10 * time.Second

type FlagState string

const (
	StateIdle      FlagState = "idle"
	StateArming    FlagState = "arming"
	StateArmed     FlagState = "armed"
	StateDisarming FlagState = "disarming"
)

// AutomationSignal is broadcast to workers that prefer a push over watching
// the trigger row.
type AutomationSignal struct {
	TriggerID string      `json:"trigger_id"`
	Flag      entity.Flag `json:"flag"`
	Armed     bool        `json:"armed"`
	UpdatedBy string      `json:"updated_by"`
	At        time.Time   `json:"at"`
}

// TriggerOrchestrator raises a trigger flag on request and clears it again
// after a fixed delay. Each flag runs its own Idle, Arming, Armed, Disarming
// cycle; the two never share a marker or a timer.
//
// The trigger row carries no version, so two orchestrators arming the same
// flag race and the first disarm clears it for both.
type TriggerOrchestrator struct {
	Triggers entity.TriggerRepositoryInterface
	Logs     entity.AutomationLogRepositoryInterface
	Sink     TriggerSink
	Notifier Notifier

	signals      SignalPublisher
	alerter      Alerter
	logger       *slog.Logger
	delay        time.Duration
	writeTimeout time.Duration

	mu       sync.Mutex
	inFlight map[entity.Flag]struct{}
	states   map[entity.Flag]FlagState
	timers   map[entity.Flag]*time.Timer
	gen      map[entity.Flag]uint64
	pending  sync.WaitGroup
}

type OrchestratorOption func(*TriggerOrchestrator)

func WithDisarmDelay(d time.Duration) OrchestratorOption {
	return func(o *TriggerOrchestrator) { o.delay = d }
}

func WithWriteTimeout(d time.Duration) OrchestratorOption {
	return func(o *TriggerOrchestrator) { o.writeTimeout = d }
}

func WithSignals(p SignalPublisher) OrchestratorOption {
	return func(o *TriggerOrchestrator) { o.signals = p }
}

func WithAlerter(a Alerter) OrchestratorOption {
	return func(o *TriggerOrchestrator) { o.alerter = a }
}

func WithOrchestratorLogger(l *slog.Logger) OrchestratorOption {
	return func(o *TriggerOrchestrator) { o.logger = l }
}

func NewTriggerOrchestrator(
	triggers entity.TriggerRepositoryInterface,
	logs entity.AutomationLogRepositoryInterface,
	sink TriggerSink,
	notifier Notifier,
	opts ...OrchestratorOption,
) *TriggerOrchestrator {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	o := &TriggerOrchestrator{
		Triggers:     triggers,
		Logs:         logs,
		Sink:         sink,
		Notifier:     notifier,
		logger:       slog.Default(),
		delay:        DisarmDelay,
		writeTimeout: defaultWriteTimeout,
		inFlight:     make(map[entity.Flag]struct{}),
		states:       make(map[entity.Flag]FlagState),
		timers:       make(map[entity.Flag]*time.Timer),
		gen:          make(map[entity.Flag]uint64),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "orchestrator")
	return o
}

// Load reads the trigger row, creating it with both flags lowered if it does
// not exist yet, and stores it in the sink.
func (o *TriggerOrchestrator) Load(ctx context.Context) (*entity.Trigger, error) {
	trig, err := o.Triggers.FindByID(ctx, entity.TriggerID)
	if IsNotFound(err) {
		now := time.Now().UTC()
		trig, err = o.Triggers.Create(ctx, &entity.Trigger{
			ID:        entity.TriggerID,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if err != nil {
		return nil, persistence("load trigger", err)
	}
	if o.Sink != nil {
		o.Sink.Upsert(*trig)
	}
	return trig, nil
}

func (o *TriggerOrchestrator) State(flag entity.Flag) FlagState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.states[flag]; ok {
		return s
	}
	return StateIdle
}

// Busy reports whether an arm of flag is waiting on the store.
func (o *TriggerOrchestrator) Busy(flag entity.Flag) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inFlight[flag]
	return ok
}

func (o *TriggerOrchestrator) raised(flag entity.Flag) bool {
	if o.Sink == nil {
		return o.states[flag] == StateArmed
	}
	t, ok := o.Sink.Get(entity.TriggerID)
	return ok && t.Flag(flag)
}

// Arm raises flag on behalf of userID and schedules it to be cleared.
func (o *TriggerOrchestrator) Arm(ctx context.Context, userID string, flag entity.Flag) error {
	return o.ArmNotifying(ctx, userID, flag, o.Notifier)
}

// ArmNotifying is Arm with the outcome reported to n instead of the
// orchestrator's Notifier.
func (o *TriggerOrchestrator) ArmNotifying(ctx context.Context, userID string, flag entity.Flag, n Notifier) error {
	if n == nil {
		n = discardNotifier{}
	}
	if !flag.Valid() {
		return &ValidationError{Field: "flag", Message: fmt.Sprintf("unknown flag %q", flag)}
	}

	o.mu.Lock()
	if _, busy := o.inFlight[flag]; busy {
		o.mu.Unlock()
		metrics.RecordTrigger(string(flag), "arm", "in_flight")
		return ErrArmInFlight
	}
	if o.raised(flag) {
		o.mu.Unlock()
		metrics.RecordTrigger(string(flag), "arm", "already_armed")
		return ErrAlreadyArmed
	}
	delete(o.inFlight, flag)
	o.inFlight[flag] = struct{}{}
	o.states[flag] = StateArming
	o.mu.Unlock()

	trig, err := o.Triggers.SetFlag(ctx, entity.TriggerID, flag, true, userID)
	if err != nil {
		o.armFailed(ctx, userID, flag, err, n)
		return persistence(fmt.Sprintf("raise %s", flag), err)
	}

	if trig == nil {
		if _, err := o.Load(ctx); err != nil {
			o.logger.Warn("reloading trigger after arm", "flag", flag, "error", err)
		}
	} else if o.Sink != nil {
		o.Sink.Upsert(*trig)
	}
	o.schedule(userID, flag)

	metrics.RecordTrigger(string(flag), "arm", "success")
	o.logger.Info("automation armed", "flag", flag, "user_id", userID, "disarm_in", o.delay)
	o.appendLog(ctx, entity.NewAutomationLog(flag.StartAction(), entity.LogSuccess, userID, map[string]any{"enabled": true}))
	n.Success(fmt.Sprintf("%s automation triggered", flag.Label()))
	o.publish(ctx, flag, true, userID)
	return nil
}

// schedule moves flag to Armed and starts its disarm timer. A timer left by
// an earlier arm is replaced.
func (o *TriggerOrchestrator) schedule(userID string, flag entity.Flag) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if t := o.timers[flag]; t != nil && t.Stop() {
		o.pending.Done()
	}
	o.gen[flag]++
	gen := o.gen[flag]

	delete(o.inFlight, flag)
	o.states[flag] = StateArmed
	o.pending.Add(1)
	o.timers[flag] = time.AfterFunc(o.delay, func() { o.disarm(userID, flag, gen) })
}

func (o *TriggerOrchestrator) armFailed(ctx context.Context, userID string, flag entity.Flag, cause error, n Notifier) {
	metrics.RecordTrigger(string(flag), "arm", "failed")
	o.logger.Error("arming automation", "flag", flag, "user_id", userID, "error", cause)

	o.appendLog(ctx, entity.NewAutomationLog(flag.StartAction(), entity.LogFailed, userID, map[string]any{"error": cause.Error()}))
	n.Error(fmt.Sprintf("Failed to trigger %s automation: %v", flag.Label(), cause))
	if o.alerter != nil {
		if err := o.alerter.ArmFailed(context.WithoutCancel(ctx), flag, userID, cause); err != nil {
			o.logger.Warn("sending arm failure alert", "flag", flag, "error", err)
		}
	}

	o.mu.Lock()
	delete(o.inFlight, flag)
	if o.timers[flag] != nil {
		o.states[flag] = StateArmed
	} else {
		o.states[flag] = StateIdle
	}
	o.mu.Unlock()
}

// disarm runs on its own timer and outlives any request or view that armed
// the flag. A failed write is logged and left alone.
func (o *TriggerOrchestrator) disarm(userID string, flag entity.Flag, gen uint64) {
	defer o.pending.Done()

	o.mu.Lock()
	if o.gen[flag] != gen {
		o.mu.Unlock()
		return
	}
	delete(o.timers, flag)
	o.states[flag] = StateDisarming
	o.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), o.writeTimeout)
	defer cancel()

	trig, err := o.Triggers.SetFlag(ctx, entity.TriggerID, flag, false, userID)
	if err != nil {
		metrics.RecordTrigger(string(flag), "disarm", "failed")
		o.logger.Error("auto-disarm failed", "flag", flag, "error", err)
		o.appendLog(ctx, entity.NewAutomationLog(flag.StopAction(), entity.LogFailed, userID, map[string]any{"error": err.Error()}))
	} else {
		if trig != nil && o.Sink != nil {
			o.Sink.Upsert(*trig)
		}
		metrics.RecordTrigger(string(flag), "disarm", "success")
		o.logger.Info("automation disarmed", "flag", flag)
		o.appendLog(ctx, entity.NewAutomationLog(flag.StopAction(), entity.LogSuccess, userID, map[string]any{"enabled": false}))
		o.publish(ctx, flag, false, userID)
	}

	o.mu.Lock()
	if o.gen[flag] == gen {
		o.states[flag] = StateIdle
	}
	o.mu.Unlock()
}

func (o *TriggerOrchestrator) appendLog(ctx context.Context, entry *entity.AutomationLog) {
	if o.Logs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.writeTimeout)
	defer cancel()
	if err := o.Logs.Append(ctx, entry); err != nil {
		o.logger.Warn("appending automation log", "action", entry.ActionType, "error", err)
	}
}

func (o *TriggerOrchestrator) publish(ctx context.Context, flag entity.Flag, armed bool, userID string) {
	if o.signals == nil {
		return
	}
	err := o.signals.PublishSignal(context.WithoutCancel(ctx), AutomationSignal{
		TriggerID: entity.TriggerID,
		Flag:      flag,
		Armed:     armed,
		UpdatedBy: userID,
		At:        time.Now().UTC(),
	})
	if err != nil {
		o.logger.Warn("publishing automation signal", "flag", flag, "armed", armed, "error", err)
	}
}

// Shutdown waits for scheduled disarms to finish.
func (o *TriggerOrchestrator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
