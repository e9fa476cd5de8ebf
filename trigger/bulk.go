package trigger

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// EndpointWriter is the subset of a bulk OUT endpoint used for sends.
type EndpointWriter interface {
	WriteContext(ctx context.Context, buf []byte) (int, error)
}

// BulkTransport sends each code as one bulk OUT transfer.
type BulkTransport struct {
	mu      sync.Mutex
	ep      EndpointWriter
	release io.Closer
}

// NewBulkTransport wraps an OUT endpoint; release is closed on Close.
func NewBulkTransport(ep EndpointWriter, release io.Closer) *BulkTransport {
	return &BulkTransport{ep: ep, release: release}
}

// Send transfers the UTF-8 encoding of code.
func (t *BulkTransport) Send(ctx context.Context, code Code) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.ep.WriteContext(ctx, []byte(code))
	if err != nil {
		return fmt.Errorf("bulk transfer %q: %w", code, err)
	}
	if n != len(code) {
		return fmt.Errorf("bulk transfer %q: short write (%d bytes)", code, n)
	}
	return nil
}

// Kind returns KindBulk.
func (t *BulkTransport) Kind() string { return KindBulk }

// Close releases the interface, configuration, device and USB context.
func (t *BulkTransport) Close() error {
	if t.release == nil {
		return nil
	}
	return t.release.Close()
}
