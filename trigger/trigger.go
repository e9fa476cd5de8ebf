// Package trigger delivers single-character synchronization pulses to an
// external recording device.
//
// Delivery is best effort. A missing device turns every send into a logged
// no-op, and send failures are logged and counted but never surface to the
// caller. Timing-critical callers go through Dispatcher, whose Fire never
// blocks.
package trigger

import (
	"context"
	"errors"
	"sync"

	"github.com/numlab/numerosity/iox"
)

// Code is a single-character trigger value.
type Code string

// Phase trigger codes, in trial order.
const (
	PreBlank  Code = "0"
	Fixation  Code = "1"
	Stimulus  Code = "2"
	PostBlank Code = "3"
	Response  Code = "4"
)

// Transport kinds.
const (
	KindNone   = "none"
	KindStream = "stream"
	KindBulk   = "bulk"
)

// ErrNoDevice is returned by Connect when no matching device is present.
var ErrNoDevice = errors.New("no trigger device found")

// Transport sends codes to a connected device.
type Transport interface {
	// Send writes the code. It may block for the duration of the write.
	Send(ctx context.Context, code Code) error
	// Kind returns KindStream or KindBulk.
	Kind() string
	// Close releases the underlying device.
	Close() error
}

// Connector opens a Transport on request.
type Connector interface {
	Connect(ctx context.Context) (Transport, error)
}

// Device is the single-owner handle to at most one connected transport.
type Device struct {
	mu        sync.Mutex
	transport Transport
}

// NewDevice returns a device with nothing connected.
func NewDevice() *Device {
	return &Device{}
}

// Attach sets the connected transport, closing any previous one.
func (d *Device) Attach(t Transport) {
	d.mu.Lock()
	prev := d.transport
	d.transport = t
	d.mu.Unlock()
	if prev != nil && prev != t {
		iox.DiscardErr(prev.Close)
	}
}

// Transport returns the connected transport, or nil.
func (d *Device) Transport() Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transport
}

// Kind returns the connected transport kind, or KindNone.
func (d *Device) Kind() string {
	if t := d.Transport(); t != nil {
		return t.Kind()
	}
	return KindNone
}

// Close releases the connected transport. It is safe to call more than once.
func (d *Device) Close() error {
	d.mu.Lock()
	t := d.transport
	d.transport = nil
	d.mu.Unlock()
	if t == nil {
		return nil
	}
	return t.Close()
}
