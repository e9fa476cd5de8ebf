package trigger

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/numlab/numerosity/log"
)

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// QueueSize bounds pending codes. Default 16.
	QueueSize int
	// SendTimeout bounds each send. Default 250ms.
	SendTimeout time.Duration
	// DrainTimeout bounds how long Close waits for pending sends. Default 2s.
	DrainTimeout time.Duration
	// Logger is optional.
	Logger *log.Logger
}

// Stats counts dispatcher outcomes.
type Stats struct {
	Sent    int64
	Failed  int64
	Dropped int64
	Skipped int64
}

// Dispatcher sends codes asynchronously and in order on one worker
// goroutine. Fire never blocks the caller.
type Dispatcher struct {
	device *Device
	config DispatcherConfig
	logger *log.Logger

	mu     sync.RWMutex // guards closed and queue close
	closed bool
	queue  chan Code
	done   chan struct{}

	sent, failed, dropped, skipped atomic.Int64
}

// NewDispatcher starts a dispatcher sending through device.
func NewDispatcher(device *Device, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 250 * time.Millisecond
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	d := &Dispatcher{
		device: device,
		config: cfg,
		logger: logger,
		queue:  make(chan Code, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Fire queues code for delivery and returns immediately.
// With no device connected it is a logged no-op.
func (d *Dispatcher) Fire(code Code) {
	if d.device.Transport() == nil {
		d.skipped.Add(1)
		d.logger.Debug("trigger skipped, no device", map[string]any{"code": string(code)})
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.skipped.Add(1)
		return
	}
	select {
	case d.queue <- code:
	default:
		d.dropped.Add(1)
		d.logger.Warn("trigger dropped, queue full", map[string]any{"code": string(code)})
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for code := range d.queue {
		t := d.device.Transport()
		if t == nil {
			d.skipped.Add(1)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), d.config.SendTimeout)
		start := time.Now()
		err := t.Send(ctx, code)
		cancel()
		if err != nil {
			d.failed.Add(1)
			d.logger.Warn("trigger send failed", map[string]any{
				"code":      string(code),
				"transport": t.Kind(),
				"error":     err.Error(),
			})
			continue
		}
		d.sent.Add(1)
		d.logger.Debug("trigger sent", map[string]any{
			"code":       string(code),
			"latency_ms": time.Since(start).Milliseconds(),
		})
	}
}

// Close stops accepting codes, waits up to DrainTimeout for pending sends,
// and releases the device.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	select {
	case <-d.done:
	case <-time.After(d.config.DrainTimeout):
		d.logger.Warn("trigger queue drain timed out", map[string]any{"pending": len(d.queue)})
	}
	return d.device.Close()
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Sent:    d.sent.Load(),
		Failed:  d.failed.Load(),
		Dropped: d.dropped.Load(),
		Skipped: d.skipped.Load(),
	}
}
