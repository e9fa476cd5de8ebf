// Package usb opens bulk trigger transports through libusb.
//
// It is the only package that links github.com/google/gousb, which needs
// cgo. Import it from the command layer only.
package usb

import (
	"context"
	"fmt"

	"github.com/google/gousb"

	"github.com/numlab/numerosity/iox"
	"github.com/numlab/numerosity/trigger"
)

// Default USB identity of the trigger box (Arduino Leonardo class device).
const (
	DefaultVendorID  = 0x2341
	DefaultProductID = 0x8037
)

// Config configures a Connector.
type Config struct {
	VendorID  uint16
	ProductID uint16
	// Config is the configuration number (default 1).
	Config int
	// Interface is the interface number (default 0).
	Interface int
	// Endpoint is the OUT endpoint number (default 1).
	Endpoint int
}

func (c *Config) applyDefaults() {
	if c.VendorID == 0 {
		c.VendorID = DefaultVendorID
	}
	if c.ProductID == 0 {
		c.ProductID = DefaultProductID
	}
	if c.Config == 0 {
		c.Config = 1
	}
	if c.Endpoint == 0 {
		c.Endpoint = 1
	}
}

// Connector opens a trigger.BulkTransport on the configured device.
type Connector struct {
	config Config
}

// NewConnector creates a connector; zero fields take their defaults.
func NewConnector(cfg Config) *Connector {
	cfg.applyDefaults()
	return &Connector{config: cfg}
}

// Config returns the effective configuration.
func (c *Connector) Config() Config { return c.config }

// Connect opens the device, claims the interface and returns its OUT endpoint.
func (c *Connector) Connect(ctx context.Context) (trigger.Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	usb := gousb.NewContext()

	dev, err := usb.OpenDeviceWithVIDPID(gousb.ID(c.config.VendorID), gousb.ID(c.config.ProductID))
	if err != nil {
		iox.DiscardClose(usb)
		return nil, fmt.Errorf("open usb device %04x:%04x: %w", c.config.VendorID, c.config.ProductID, err)
	}
	if dev == nil {
		iox.DiscardClose(usb)
		return nil, trigger.ErrNoDevice
	}
	if err := dev.SetAutoDetach(true); err != nil {
		iox.DiscardErr(func() error { return iox.CloseAll(dev, usb) })
		return nil, fmt.Errorf("detach kernel driver: %w", err)
	}

	cfg, err := dev.Config(c.config.Config)
	if err != nil {
		iox.DiscardErr(func() error { return iox.CloseAll(dev, usb) })
		return nil, fmt.Errorf("select configuration %d: %w", c.config.Config, err)
	}
	intf, err := cfg.Interface(c.config.Interface, 0)
	if err != nil {
		iox.DiscardErr(func() error { return iox.CloseAll(cfg, dev, usb) })
		return nil, fmt.Errorf("claim interface %d: %w", c.config.Interface, err)
	}
	ep, err := intf.OutEndpoint(c.config.Endpoint)
	if err != nil {
		intf.Close()
		iox.DiscardErr(func() error { return iox.CloseAll(cfg, dev, usb) })
		return nil, fmt.Errorf("open out endpoint %d: %w", c.config.Endpoint, err)
	}

	release := iox.CloserFunc(func() error {
		intf.Close()
		return iox.CloseAll(cfg, dev, usb)
	})
	return trigger.NewBulkTransport(ep, release), nil
}

var _ trigger.Connector = (*Connector)(nil)
