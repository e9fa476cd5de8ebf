package trigger

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
)

// DefaultBaudRate is the serial line speed of the trigger box.
const DefaultBaudRate = 9600

// StreamTransport writes codes to an open duplex byte stream.
type StreamTransport struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// NewStreamTransport wraps an open stream.
func NewStreamTransport(w io.WriteCloser) *StreamTransport {
	return &StreamTransport{w: w}
}

// Send writes the UTF-8 encoding of code.
func (t *StreamTransport) Send(ctx context.Context, code Code) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := io.WriteString(t.w, string(code)); err != nil {
		return fmt.Errorf("stream write %q: %w", code, err)
	}
	return nil
}

// Kind returns KindStream.
func (t *StreamTransport) Kind() string { return KindStream }

// Close closes the stream. It does not wait for an in-flight write.
func (t *StreamTransport) Close() error {
	return t.w.Close()
}

// SerialConfig configures a SerialConnector.
type SerialConfig struct {
	// Port is the device path (e.g. /dev/ttyACM0). Empty selects the first
	// port reported by the system.
	Port string
	// BaudRate defaults to DefaultBaudRate.
	BaudRate int
}

// SerialConnector opens a StreamTransport on a serial port.
type SerialConnector struct {
	config SerialConfig
	open   func(name string, baud int) (io.WriteCloser, error)
	list   func() ([]string, error)
}

// NewSerialConnector creates a connector backed by go.bug.st/serial.
func NewSerialConnector(cfg SerialConfig) *SerialConnector {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	return &SerialConnector{
		config: cfg,
		open:   openSerial,
		list:   serial.GetPortsList,
	}
}

// Connect opens the configured port.
func (c *SerialConnector) Connect(ctx context.Context) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := c.config.Port
	if name == "" {
		ports, err := c.list()
		if err != nil {
			return nil, fmt.Errorf("list serial ports: %w", err)
		}
		if len(ports) == 0 {
			return nil, ErrNoDevice
		}
		name = ports[0]
	}
	w, err := c.open(name, c.config.BaudRate)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	return NewStreamTransport(w), nil
}

func openSerial(name string, baud int) (io.WriteCloser, error) {
	return serial.Open(name, &serial.Mode{BaudRate: baud})
}

// ListPorts returns the serial ports visible to the system.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
