// Package flow drives a session through its states:
//
//	ConnectingDevice → ShowingInstructions ⇄ AwaitingQuiz → RepeatingInstructions
//	                                        ↓
//	                         Calibrating (first half) → RunningHalf → … → Finished
//
// Any waiting point can enter Interrupted; closing the quit survey returns
// to the paused state, confirming it ends in Aborted.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/numlab/numerosity/i18n"
	"github.com/numlab/numerosity/log"
	"github.com/numlab/numerosity/metrics"
	"github.com/numlab/numerosity/results"
	"github.com/numlab/numerosity/sequencer"
	"github.com/numlab/numerosity/timeline"
	"github.com/numlab/numerosity/trial"
	"github.com/numlab/numerosity/trigger"
	"github.com/numlab/numerosity/types"
)

// ErrPersistence wraps a failure to hand the result to the store.
var ErrPersistence = errors.New("result persistence failed")

// ErrForceDeviceWithoutConnector is returned when forceDevice is set but
// no device connector is configured.
var ErrForceDeviceWithoutConnector = errors.New("forceDevice requires a trigger device connector")

// Store persists the final result of a session.
type Store interface {
	SaveResult(ctx context.Context, meta types.SessionMeta, result *types.ExperimentResult, outcome types.Outcome) error
}

// Config wires a Controller. Frontend and Log are required.
type Config struct {
	Settings types.Settings
	Meta     types.SessionMeta
	Frontend timeline.Frontend
	// Connector opens the trigger device. Nil starts without a device.
	Connector trigger.Connector
	// Dispatcher sends triggers. Nil creates one over a fresh Device.
	Dispatcher *trigger.Dispatcher
	Device     *trigger.Device
	// Sequencer defaults to one seeded from Meta.Seed.
	Sequencer *sequencer.Sequencer
	Log       *results.Log
	// Store is optional; nil keeps the result in memory only.
	Store   Store
	Clock   clockwork.Clock
	Timing  trial.Timing
	Texts   *i18n.Translator
	Metrics *metrics.Collector
	Logger  *log.Logger
}

// Transition is one entry of the state history.
type Transition struct {
	From types.FlowState
	To   types.FlowState
	At   time.Time
}

// quizOutcome records why instructions are repeated.
type quizOutcome int

const (
	quizWrong quizOutcome = iota
	quizReadAgain
)

// Controller owns the session flow. Run must be called once.
type Controller struct {
	settings   types.Settings
	meta       types.SessionMeta
	frontend   timeline.Frontend
	connector  trigger.Connector
	device     *trigger.Device
	dispatcher *trigger.Dispatcher
	seq        *sequencer.Sequencer
	log        *results.Log
	store      Store
	clock      clockwork.Clock
	texts      *i18n.Translator
	metrics    *metrics.Collector
	logger     *log.Logger
	machine    *trial.Machine
	progress   *trial.Progress

	order      [2]types.Category
	half       int
	calibrated bool
	repeat     quizOutcome
	steps      int
	halves     [2][]types.TrialSpec

	mu      sync.Mutex
	state   types.FlowState
	history []Transition
}

// New validates the configuration and builds a controller. Configuration
// errors, including *sequencer.InsufficientStimuliError, surface here
// before any screen is shown.
func New(cfg Config) (*Controller, error) {
	if cfg.Frontend == nil {
		return nil, errors.New("flow: frontend is required")
	}
	cfg.Settings.Normalize()
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	if err := sequencer.Check(cfg.Settings.BlocksPerHalf()); err != nil {
		return nil, err
	}
	if cfg.Settings.Configuration.ForceDevice && cfg.Connector == nil {
		return nil, ErrForceDeviceWithoutConnector
	}

	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	if cfg.Texts == nil {
		bundle, err := i18n.Default()
		if err != nil {
			return nil, err
		}
		cfg.Texts = bundle.Translator(cfg.Settings.Language.Content)
	}
	if cfg.Device == nil {
		cfg.Device = trigger.NewDevice()
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = trigger.NewDispatcher(cfg.Device, trigger.DispatcherConfig{Logger: cfg.Logger})
	}
	if cfg.Sequencer == nil {
		cfg.Sequencer = sequencer.New(cfg.Meta.Seed)
	}
	if cfg.Log == nil {
		cfg.Log = results.NewLog(results.WithClock(cfg.Clock), results.WithLogger(cfg.Logger))
	}

	c := &Controller{
		settings:   cfg.Settings,
		meta:       cfg.Meta,
		frontend:   cfg.Frontend,
		connector:  cfg.Connector,
		device:     cfg.Device,
		dispatcher: cfg.Dispatcher,
		seq:        cfg.Sequencer,
		log:        cfg.Log,
		store:      cfg.Store,
		clock:      cfg.Clock,
		texts:      cfg.Texts,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		progress:   trial.NewProgress(cfg.Settings.BlocksPerHalf()),
	}
	c.machine = trial.NewMachine(trial.Config{
		Clock:       cfg.Clock,
		Timing:      cfg.Timing,
		Frontend:    cfg.Frontend,
		Triggers:    cfg.Dispatcher,
		Interrupter: c,
		Recorder:    cfg.Log,
		Progress:    c.progress,
		Texts:       cfg.Texts,
		Metrics:     cfg.Metrics,
		Logger:      cfg.Logger,
	})
	c.state = types.StateShowingInstructions
	if cfg.Connector != nil {
		c.state = types.StateConnectingDevice
	}
	return c, nil
}

// State returns the current state.
func (c *Controller) State() types.FlowState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns every transition so far.
func (c *Controller) History() []Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Transition(nil), c.history...)
}

// Settings returns the normalized session settings.
func (c *Controller) Settings() types.Settings {
	return c.settings
}

// Order returns the category order chosen at run start.
func (c *Controller) Order() [2]types.Category {
	return c.order
}

// HalfTrials returns the generated trial list of half (0 or 1).
func (c *Controller) HalfTrials(half int) []types.TrialSpec {
	return c.halves[half]
}

// Log returns the session ResultLog.
func (c *Controller) Log() *results.Log {
	return c.log
}

func (c *Controller) transition(to types.FlowState) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.history = append(c.history, Transition{From: from, To: to, At: c.clock.Now()})
	c.mu.Unlock()

	c.metrics.IncTransition()
	c.logger.Info("state transition", map[string]any{
		"from": from.String(),
		"to":   to.String(),
		"half": c.half,
	})
}

// Run drives the session to Finished or Aborted, persists the result and
// shows the end screen. A non-nil error means the session failed or the
// result could not be stored; the outcome is still returned.
func (c *Controller) Run(ctx context.Context) (types.Outcome, error) {
	started := c.clock.Now()
	c.metrics.IncSessionStarted()
	c.order = c.seq.HalfOrder(c.settings.Sequencing.Content)
	c.logger.Info("session started", map[string]any{
		"order":           []string{string(c.order[0]), string(c.order[1])},
		"blocks_per_half": c.settings.BlocksPerHalf(),
		"seed":            c.meta.Seed,
	})

	var runErr error
	for !c.State().Terminal() {
		next, err := c.step(ctx)
		if errors.Is(err, trial.ErrAborted) {
			break
		}
		if err != nil {
			runErr = err
			break
		}
		c.transition(next)
	}

	return c.finish(ctx, started, runErr)
}

func (c *Controller) step(ctx context.Context) (types.FlowState, error) {
	switch s := c.State(); s {
	case types.StateConnectingDevice:
		return c.connecting(ctx)
	case types.StateShowingInstructions:
		return c.instructions(ctx)
	case types.StateAwaitingQuiz:
		return c.quiz(ctx)
	case types.StateRepeatingInstructions:
		return c.repeating(ctx)
	case types.StateCalibrating:
		return c.calibrating(ctx)
	case types.StateRunningHalf:
		return c.runningHalf(ctx)
	default:
		return s, fmt.Errorf("flow: no handler for state %s", s)
	}
}

// await shows step and returns the first non-quit event answering it.
// Quit events open the survey; on resume the step is shown again.
func (c *Controller) await(ctx context.Context, step timeline.Step) (timeline.Event, error) {
	if err := c.frontend.Show(step); err != nil {
		return timeline.Event{}, err
	}
	for {
		ev, err := timeline.Next(ctx, c.frontend, step.ID)
		if err != nil {
			return timeline.Event{}, err
		}
		if ev.Kind != timeline.EventQuit {
			return ev, nil
		}
		resume, err := c.Interrupt(ctx)
		if err != nil {
			return timeline.Event{}, err
		}
		if !resume {
			return timeline.Event{}, trial.ErrAborted
		}
		if err := c.frontend.Show(step); err != nil {
			return timeline.Event{}, err
		}
	}
}

func (c *Controller) connecting(ctx context.Context) (types.FlowState, error) {
	var lastErr error
	for {
		ev, err := c.await(ctx, c.connectStep(lastErr))
		if err != nil {
			return 0, err
		}
		if ev.Kind != timeline.EventChoice {
			continue
		}
		if ev.Choice == 1 && !c.settings.Configuration.ForceDevice {
			c.log.Append(ctx, &types.Record{Type: types.RecordTypeDevice, DeviceOutcome: types.DeviceSkipped, Transport: trigger.KindNone})
			c.logger.Warn("trigger device skipped", nil)
			return types.StateShowingInstructions, nil
		}
		if ev.Choice != 0 {
			continue
		}

		c.metrics.IncConnectAttempt()
		t, err := c.connector.Connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			lastErr = err
			c.metrics.IncConnectFailure()
			c.log.Append(ctx, &types.Record{Type: types.RecordTypeDevice, DeviceOutcome: types.DeviceFailed, Error: err.Error()})
			c.logger.Warn("trigger device connection failed", map[string]any{"error": err.Error()})
			continue
		}
		c.device.Attach(t)
		c.metrics.SetTransport(t.Kind())
		c.log.Append(ctx, &types.Record{Type: types.RecordTypeDevice, DeviceOutcome: types.DeviceConnected, Transport: t.Kind()})
		c.logger.Info("trigger device connected", map[string]any{"transport": t.Kind()})
		return types.StateShowingInstructions, nil
	}
}

func (c *Controller) instructions(ctx context.Context) (types.FlowState, error) {
	for {
		ev, err := c.await(ctx, c.instructionsStep())
		if err != nil {
			return 0, err
		}
		if ev.Kind == timeline.EventChoice {
			return types.StateAwaitingQuiz, nil
		}
	}
}

func (c *Controller) quiz(ctx context.Context) (types.FlowState, error) {
	step := c.quizStep()
	for {
		ev, err := c.await(ctx, step)
		if err != nil {
			return 0, err
		}
		switch {
		case ev.Kind == timeline.EventRepeat:
			c.metrics.IncQuizAttempt()
			c.log.Append(ctx, types.NewQuizRecord(c.half, c.order[c.half], types.QuizAnswerRepeat, false))
			c.repeat = quizReadAgain
			return types.StateRepeatingInstructions, nil
		case ev.Kind == timeline.EventChoice && ev.Choice >= 0 && ev.Choice < len(step.Choices):
			c.metrics.IncQuizAttempt()
			correct := ev.Choice == CorrectQuizChoice
			c.log.Append(ctx, types.NewQuizRecord(c.half, c.order[c.half], strconv.Itoa(ev.Choice), correct))
			if !correct {
				c.repeat = quizWrong
				return types.StateRepeatingInstructions, nil
			}
			if c.half == 0 && !c.calibrated && !c.settings.Configuration.SkipCalibration {
				return types.StateCalibrating, nil
			}
			return types.StateRunningHalf, nil
		}
	}
}

// repeating shows the return prompt after a wrong answer. An explicit
// read-again request goes straight back to the instructions.
func (c *Controller) repeating(ctx context.Context) (types.FlowState, error) {
	c.metrics.IncInstructionRepeat()
	if c.repeat == quizReadAgain {
		return types.StateShowingInstructions, nil
	}
	step := c.messageStep("return", c.texts.T("return.text"), c.texts.T("return.button"))
	for {
		ev, err := c.await(ctx, step)
		if err != nil {
			return 0, err
		}
		if ev.Kind == timeline.EventChoice {
			return types.StateShowingInstructions, nil
		}
	}
}

func (c *Controller) calibrating(ctx context.Context) (types.FlowState, error) {
	notice := ""
	for {
		ev, err := c.await(ctx, c.calibrationStep(notice))
		if err != nil {
			return 0, err
		}
		if ev.Kind != timeline.EventCalibrate && ev.Kind != timeline.EventSubmit {
			continue
		}
		method, scale, ok := calibrationScale(ev)
		if !ok {
			notice = c.texts.T("calibration.invalid")
			continue
		}
		c.machine.SetImageScale(scale)
		c.calibrated = true
		w, h := c.machine.ImageSize()
		c.log.Append(ctx, &types.Record{
			Type:        types.RecordTypeCalibration,
			Method:      method,
			ScaleFactor: scale,
			ImageWidth:  w,
			ImageHeight: h,
		})
		c.logger.Info("calibrated", map[string]any{"method": method, "scale_factor": scale})
		return types.StateRunningHalf, nil
	}
}

// calibrationScale turns a calibration event into a scale factor. The ruler
// path measures a 10 cm reference bar: scale = 10 / measured cm.
func calibrationScale(ev timeline.Event) (method string, scale float64, ok bool) {
	if ev.Method == types.CalibrationAuto {
		return types.CalibrationAuto, ev.ScaleFactor, ev.ScaleFactor > 0
	}
	cm, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(ev.Value, ",", ".")), 64)
	if err != nil || cm <= 0 {
		return types.CalibrationRuler, 0, false
	}
	return types.CalibrationRuler, 10 / cm, true
}

func (c *Controller) runningHalf(ctx context.Context) (types.FlowState, error) {
	t := c.texts
	if c.half == 0 {
		if _, err := c.await(ctx, c.messageStep("tip", t.T("tip.text"), t.T("continue"))); err != nil {
			return 0, err
		}
	}
	if _, err := c.await(ctx, c.messageStep("start", t.T("start.text"), t.T("continue"))); err != nil {
		return 0, err
	}

	trials, err := c.seq.GenerateHalf(c.order[c.half], c.settings.BlocksPerHalf())
	if err != nil {
		return 0, err
	}
	c.halves[c.half] = trials
	c.logger.Info("half started", map[string]any{
		"half":     c.half,
		"category": string(c.order[c.half]),
		"trials":   len(trials),
	})

	for i, spec := range trials {
		if _, err := c.machine.Run(ctx, spec, c.half, i); err != nil {
			return 0, err
		}
	}

	if c.half == 0 {
		if _, err := c.await(ctx, c.messageStep("half-end", t.T("half_end.text"), t.T("continue"))); err != nil {
			return 0, err
		}
		c.half = 1
		return types.StateShowingInstructions, nil
	}
	return types.StateFinished, nil
}

// Interrupt opens the quit survey. It implements timeline.Interrupter for
// the trial machine and is used by every flow waiting point.
func (c *Controller) Interrupt(ctx context.Context) (bool, error) {
	prev := c.State()
	c.transition(types.StateInterrupted)
	c.metrics.IncInterrupt()

	step := c.quitStep("")
	if err := c.frontend.Show(step); err != nil {
		return false, err
	}
	for {
		ev, err := timeline.Next(ctx, c.frontend, step.ID)
		if err != nil {
			return false, err
		}
		switch ev.Kind {
		case timeline.EventQuitClose:
			c.metrics.IncResume()
			c.transition(prev)
			return true, nil
		case timeline.EventQuitConfirm:
			if ev.Choice < 0 || ev.Choice >= len(quitReasons) {
				step = c.quitStep(c.texts.T("quit.missing"))
				if err := c.frontend.Show(step); err != nil {
					return false, err
				}
				continue
			}
			c.log.Append(ctx, types.NewQuitRecord(strconv.Itoa(ev.Choice)))
			c.transition(types.StateAborted)
			return false, nil
		}
	}
}

// finish releases the device, persists the result and shows the end screen.
func (c *Controller) finish(ctx context.Context, started time.Time, runErr error) (types.Outcome, error) {
	if err := c.dispatcher.Close(); err != nil {
		c.logger.Warn("trigger device release failed", map[string]any{"error": err.Error()})
	}
	ts := c.dispatcher.Stats()
	c.metrics.AbsorbTriggerStats(ts.Sent, ts.Failed, ts.Dropped, ts.Skipped)

	outcome := types.Outcome{
		Trials:   len(c.log.Trials()),
		Duration: c.clock.Since(started),
	}
	switch {
	case runErr != nil:
		outcome.Status = types.OutcomeFailed
		outcome.Message = runErr.Error()
		c.metrics.IncSessionFailed()
	case c.State() == types.StateAborted:
		outcome.Status = types.OutcomeAborted
		outcome.Message = "participant quit"
		if q, ok := c.log.Last(); ok && q.Type == types.RecordTypeQuit {
			outcome.QuitReason = q.QuitReason
		}
		c.metrics.IncSessionAborted()
	default:
		outcome.Status = types.OutcomeFinished
		outcome.Message = "all trials completed"
		c.metrics.IncSessionFinished()
	}

	result := c.log.Result(c.settings)
	var storeErr error
	if c.store != nil {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		storeErr = c.store.SaveResult(saveCtx, c.meta, result, outcome)
		cancel()
		if storeErr != nil {
			c.metrics.IncStoreFailure()
			c.logger.Error("result persistence failed", map[string]any{"error": storeErr.Error()})
			storeErr = fmt.Errorf("%w: %w", ErrPersistence, storeErr)
		} else {
			c.metrics.IncStoreWrite()
		}
	}

	if runErr == nil {
		if err := c.frontend.Show(c.endStep(outcome.Status)); err != nil {
			c.logger.Warn("end screen not shown", map[string]any{"error": err.Error()})
		}
	}
	c.logger.Info("session ended", map[string]any{
		"status":      string(outcome.Status),
		"trials":      outcome.Trials,
		"duration_ms": outcome.Duration.Milliseconds(),
	})

	return outcome, errors.Join(runErr, storeErr)
}
