// Package runtime runs one participant session end to end: trigger device,
// flow controller, record policy, result store, metrics and completion
// notice.
package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/numlab/numerosity/adapter"
	"github.com/numlab/numerosity/flow"
	"github.com/numlab/numerosity/i18n"
	"github.com/numlab/numerosity/log"
	"github.com/numlab/numerosity/metrics"
	"github.com/numlab/numerosity/policy"
	"github.com/numlab/numerosity/results"
	"github.com/numlab/numerosity/sequencer"
	"github.com/numlab/numerosity/timeline"
	"github.com/numlab/numerosity/trial"
	"github.com/numlab/numerosity/trigger"
	"github.com/numlab/numerosity/types"
)

// finalizeTimeout bounds each post-session write.
const finalizeTimeout = 30 * time.Second

// SessionStore persists the result and the metrics snapshot.
type SessionStore interface {
	flow.Store
	WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error
}

// SessionConfig configures a single session.
type SessionConfig struct {
	Settings types.Settings
	// Meta is the session identity. Validated by NewSessionOrchestrator.
	Meta types.SessionMeta
	// Frontend renders steps. Required.
	Frontend timeline.Frontend
	// Connector opens the trigger device; nil runs without one.
	Connector trigger.Connector
	// Dispatcher configures trigger delivery.
	Dispatcher trigger.DispatcherConfig
	// Policy receives every record as it is appended. Nil uses NoopPolicy.
	Policy policy.Policy
	// PolicyName labels the report.
	PolicyName string
	// Store is optional; nil keeps results in memory.
	Store SessionStore
	// StoragePath is reported in the completion notice.
	StoragePath string
	// Adapter is optional.
	Adapter adapter.Adapter
	// Collector may be nil; all Collector methods are nil-safe.
	Collector *metrics.Collector
	// Logger defaults to a logger carrying the session context.
	Logger *log.Logger
	Clock  clockwork.Clock
	Timing trial.Timing
	Texts  *i18n.Translator
	// Sequencer overrides the seeded default (tests).
	Sequencer *sequencer.Sequencer
}

// SessionResult summarizes a finished session.
type SessionResult struct {
	Meta         types.SessionMeta
	Outcome      types.Outcome
	Result       *types.ExperimentResult
	Order        [2]types.Category
	History      []flow.Transition
	PolicyStats  policy.Stats
	TriggerStats trigger.Stats
	Metrics      metrics.Snapshot
	Duration     time.Duration
}

// SessionOrchestrator orchestrates a single session.
type SessionOrchestrator struct {
	config *SessionConfig
	logger *log.Logger
	clock  clockwork.Clock
	ctrl   *flow.Controller
	disp   *trigger.Dispatcher
	log    *results.Log
}

// NewSessionOrchestrator validates the session and builds the controller.
// Configuration errors surface here, before anything is shown.
func NewSessionOrchestrator(config *SessionConfig) (*SessionOrchestrator, error) {
	if err := config.Meta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session metadata: %w", err)
	}
	if config.Policy == nil {
		config.Policy = policy.NewNoopPolicy()
		config.PolicyName = "noop"
	}
	logger := config.Logger
	if logger == nil {
		logger = log.NewLogger(&config.Meta)
	}
	clock := config.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	rlog := results.NewLog(
		results.WithClock(clock),
		results.WithIngester(config.Policy),
		results.WithLogger(logger),
	)
	dcfg := config.Dispatcher
	if dcfg.Logger == nil {
		dcfg.Logger = logger.With(map[string]any{"component": "trigger"})
	}
	device := trigger.NewDevice()
	disp := trigger.NewDispatcher(device, dcfg)

	fcfg := flow.Config{
		Settings:   config.Settings,
		Meta:       config.Meta,
		Frontend:   config.Frontend,
		Connector:  config.Connector,
		Dispatcher: disp,
		Device:     device,
		Sequencer:  config.Sequencer,
		Log:        rlog,
		Clock:      clock,
		Timing:     config.Timing,
		Texts:      config.Texts,
		Metrics:    config.Collector,
		Logger:     logger,
	}
	if config.Store != nil {
		fcfg.Store = config.Store
	}
	ctrl, err := flow.New(fcfg)
	if err != nil {
		_ = disp.Close()
		return nil, err
	}

	return &SessionOrchestrator{
		config: config,
		logger: logger,
		clock:  clock,
		ctrl:   ctrl,
		disp:   disp,
		log:    rlog,
	}, nil
}

// Controller exposes the flow controller (state inspection in tests).
func (o *SessionOrchestrator) Controller() *flow.Controller {
	return o.ctrl
}

// Execute runs the session end to end.
//
// Execution flow:
//  1. Run the flow controller to Finished or Aborted (result stored there)
//  2. Flush and close the record policy
//  3. Write the metrics snapshot
//  4. Publish the completion notice
//
// The returned error is the controller's: a failed run or
// flow.ErrPersistence. Steps 2 to 4 are best effort and only logged.
func (o *SessionOrchestrator) Execute(ctx context.Context) (*SessionResult, error) {
	start := o.clock.Now()
	o.logger.Info("starting session", map[string]any{
		"experiment": o.config.Meta.Experiment,
		"policy":     o.config.PolicyName,
		"sequencing": string(o.config.Settings.Sequencing.Content),
	})

	outcome, runErr := o.ctrl.Run(ctx)

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	if err := o.config.Policy.Flush(flushCtx); err != nil {
		o.logger.Warn("policy flush failed (best effort)", map[string]any{"error": err.Error()})
	}
	cancel()
	if err := o.config.Policy.Close(); err != nil {
		o.logger.Warn("policy close failed", map[string]any{"error": err.Error()})
	}
	ps := o.config.Policy.Stats()
	o.config.Collector.AbsorbPolicyStats(ps.TotalRecords, ps.RecordsPersisted, ps.Errors)

	snap := o.config.Collector.Snapshot()
	if o.config.Store != nil {
		mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
		if err := o.config.Store.WriteMetrics(mctx, snap, o.clock.Now()); err != nil {
			o.logger.Warn("metrics write failed", map[string]any{"error": err.Error()})
		}
		cancel()
	}

	if o.config.Adapter != nil {
		o.publish(ctx, outcome)
	}

	result := &SessionResult{
		Meta:         o.config.Meta,
		Outcome:      outcome,
		Result:       o.log.Result(o.ctrl.Settings()),
		Order:        o.ctrl.Order(),
		History:      o.ctrl.History(),
		PolicyStats:  ps,
		TriggerStats: o.disp.Stats(),
		Metrics:      snap,
		Duration:     o.clock.Since(start),
	}
	o.logger.Info("session completed", map[string]any{
		"outcome":  string(outcome.Status),
		"trials":   outcome.Trials,
		"duration": result.Duration.String(),
	})
	return result, runErr
}

func (o *SessionOrchestrator) publish(ctx context.Context, outcome types.Outcome) {
	ev := adapter.NewSessionCompletedEvent(o.config.Meta, outcome, o.config.StoragePath, o.clock.Now())
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if err := o.config.Adapter.Publish(pctx, ev); err != nil {
		o.logger.Warn("completion notice failed", map[string]any{"error": err.Error()})
	}
	if err := o.config.Adapter.Close(); err != nil {
		o.logger.Warn("adapter close failed", map[string]any{"error": err.Error()})
	}
}
