// Package metrics provides per-session metrics collection.
//
// The Collector accumulates counters during a single session. It is a leaf
// package with no internal dependencies. Trigger and persistence counters
// are absorbed from the dispatcher and policy stats when the session ends
// rather than recorded live, avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of the session metrics.
type Snapshot struct {
	// Session lifecycle
	SessionsStarted  int64 `json:"sessions_started" yaml:"sessions_started"`
	SessionsFinished int64 `json:"sessions_finished" yaml:"sessions_finished"`
	SessionsAborted  int64 `json:"sessions_aborted" yaml:"sessions_aborted"`
	SessionsFailed   int64 `json:"sessions_failed" yaml:"sessions_failed"`

	// Flow
	Transitions        int64 `json:"transitions" yaml:"transitions"`
	TrialsCompleted    int64 `json:"trials_completed" yaml:"trials_completed"`
	InvalidEstimates   int64 `json:"invalid_estimates" yaml:"invalid_estimates"`
	QuizAttempts       int64 `json:"quiz_attempts" yaml:"quiz_attempts"`
	InstructionRepeats int64 `json:"instruction_repeats" yaml:"instruction_repeats"`
	Interrupts         int64 `json:"interrupts" yaml:"interrupts"`
	Resumes            int64 `json:"resumes" yaml:"resumes"`

	// Device
	ConnectAttempts int64 `json:"connect_attempts" yaml:"connect_attempts"`
	ConnectFailures int64 `json:"connect_failures" yaml:"connect_failures"`

	// Triggers (absorbed from dispatcher stats at session end)
	TriggersSent    int64 `json:"triggers_sent" yaml:"triggers_sent"`
	TriggersFailed  int64 `json:"triggers_failed" yaml:"triggers_failed"`
	TriggersDropped int64 `json:"triggers_dropped" yaml:"triggers_dropped"`
	TriggersSkipped int64 `json:"triggers_skipped" yaml:"triggers_skipped"`

	// Persistence (records absorbed from policy stats at session end)
	RecordsReceived  int64 `json:"records_received" yaml:"records_received"`
	RecordsPersisted int64 `json:"records_persisted" yaml:"records_persisted"`
	PolicyErrors     int64 `json:"policy_errors" yaml:"policy_errors"`
	StoreWrites      int64 `json:"store_writes" yaml:"store_writes"`
	StoreFailures    int64 `json:"store_failures" yaml:"store_failures"`

	// Front-end
	FrontendDecodeErrors int64 `json:"frontend_decode_errors" yaml:"frontend_decode_errors"`

	// Dimensions
	Policy         string `json:"policy" yaml:"policy"`
	Frontend       string `json:"frontend" yaml:"frontend"`
	StorageBackend string `json:"storage_backend" yaml:"storage_backend"`
	Transport      string `json:"transport" yaml:"transport"`
	SessionID      string `json:"session_id" yaml:"session_id"`
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex
	s  Snapshot
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(policy, frontend, storageBackend, sessionID string) *Collector {
	return &Collector{s: Snapshot{
		Policy:         policy,
		Frontend:       frontend,
		StorageBackend: storageBackend,
		SessionID:      sessionID,
	}}
}

func (c *Collector) inc(field *int64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// IncSessionStarted records a session start.
func (c *Collector) IncSessionStarted() {
	if c == nil {
		return
	}
	c.inc(&c.s.SessionsStarted)
}

// IncSessionFinished records a session that ran every trial.
func (c *Collector) IncSessionFinished() {
	if c == nil {
		return
	}
	c.inc(&c.s.SessionsFinished)
}

// IncSessionAborted records a session quit by the participant.
func (c *Collector) IncSessionAborted() {
	if c == nil {
		return
	}
	c.inc(&c.s.SessionsAborted)
}

// IncSessionFailed records a session that could not run to a terminal state.
func (c *Collector) IncSessionFailed() {
	if c == nil {
		return
	}
	c.inc(&c.s.SessionsFailed)
}

// IncTransition records one flow state transition.
func (c *Collector) IncTransition() {
	if c == nil {
		return
	}
	c.inc(&c.s.Transitions)
}

// IncTrialCompleted records a trial whose estimate was accepted.
func (c *Collector) IncTrialCompleted() {
	if c == nil {
		return
	}
	c.inc(&c.s.TrialsCompleted)
}

// IncInvalidEstimate records a rejected estimate submission.
func (c *Collector) IncInvalidEstimate() {
	if c == nil {
		return
	}
	c.inc(&c.s.InvalidEstimates)
}

// IncQuizAttempt records one quiz answer.
func (c *Collector) IncQuizAttempt() {
	if c == nil {
		return
	}
	c.inc(&c.s.QuizAttempts)
}

// IncInstructionRepeat records a return to the instructions.
func (c *Collector) IncInstructionRepeat() {
	if c == nil {
		return
	}
	c.inc(&c.s.InstructionRepeats)
}

// IncInterrupt records an opened quit survey.
func (c *Collector) IncInterrupt() {
	if c == nil {
		return
	}
	c.inc(&c.s.Interrupts)
}

// IncResume records a closed quit survey.
func (c *Collector) IncResume() {
	if c == nil {
		return
	}
	c.inc(&c.s.Resumes)
}

// IncConnectAttempt records a device connection attempt.
func (c *Collector) IncConnectAttempt() {
	if c == nil {
		return
	}
	c.inc(&c.s.ConnectAttempts)
}

// IncConnectFailure records a failed device connection attempt.
func (c *Collector) IncConnectFailure() {
	if c == nil {
		return
	}
	c.inc(&c.s.ConnectFailures)
}

// IncStoreWrite records a successful result write.
func (c *Collector) IncStoreWrite() {
	if c == nil {
		return
	}
	c.inc(&c.s.StoreWrites)
}

// IncStoreFailure records a failed result write.
func (c *Collector) IncStoreFailure() {
	if c == nil {
		return
	}
	c.inc(&c.s.StoreFailures)
}

// IncFrontendDecodeError records an undecodable front-end frame.
func (c *Collector) IncFrontendDecodeError() {
	if c == nil {
		return
	}
	c.inc(&c.s.FrontendDecodeErrors)
}

// SetTransport records the connected transport kind.
func (c *Collector) SetTransport(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.s.Transport = kind
	c.mu.Unlock()
}

// AbsorbTriggerStats copies dispatcher counters at session end.
func (c *Collector) AbsorbTriggerStats(sent, failed, dropped, skipped int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.s.TriggersSent = sent
	c.s.TriggersFailed = failed
	c.s.TriggersDropped = dropped
	c.s.TriggersSkipped = skipped
	c.mu.Unlock()
}

// AbsorbPolicyStats copies record policy counters at session end.
func (c *Collector) AbsorbPolicyStats(received, persisted, errors int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.s.RecordsReceived = received
	c.s.RecordsPersisted = persisted
	c.s.PolicyErrors = errors
	c.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}
