package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/gousb"
)

// USBTMC interface identification (class 0xFE application specific,
// subclass 0x03 test and measurement).
const (
	ClassUSBTMC    = gousb.ClassApplication
	SubClassUSBTMC = 0x03
)

// DefaultMaxTransfer caps a single bulk IN request.
const DefaultMaxTransfer = 1024 * 1024

// USBTMCConn is a USBTMC bulk-only session.
type USBTMCConn struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	done func()

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	proto       *USBTMCProtocol
	maxTransfer int
	termChar    byte

	// payload of a bulk IN transfer not yet handed to the caller
	pending []byte

	closeOnce sync.Once
	closed    atomic.Bool
}

// USBTMCOptions selects the device and interface to open.
type USBTMCOptions struct {
	VendorID    uint16
	ProductID   uint16
	Serial      string // empty matches the first device
	Interface   int    // -1 searches for the USBTMC interface
	MaxTransfer int
	TermChar    byte
}

// OpenUSBTMC finds and claims a USBTMC device.
func OpenUSBTMC(opts USBTMCOptions) (*USBTMCConn, error) {
	ctx := gousb.NewContext()

	dev, err := findDevice(ctx, opts)
	if err != nil {
		ctx.Close()
		return nil, err
	}

	// Not fatal on all platforms.
	_ = dev.SetAutoDetach(true)

	c := &USBTMCConn{
		ctx:         ctx,
		dev:         dev,
		proto:       NewUSBTMCProtocol(),
		maxTransfer: opts.MaxTransfer,
		termChar:    opts.TermChar,
	}
	if c.maxTransfer <= 0 {
		c.maxTransfer = DefaultMaxTransfer
	}

	if err := c.claimInterface(opts.Interface); err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	return c, nil
}

func findDevice(ctx *gousb.Context, opts USBTMCOptions) (*gousb.Device, error) {
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == opts.VendorID && uint16(desc.Product) == opts.ProductID
	})
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("USB error: %w", err)
	}

	var match *gousb.Device
	for _, d := range devs {
		if match == nil {
			serial, _ := d.SerialNumber()
			if opts.Serial == "" || serial == opts.Serial {
				match = d
				continue
			}
		}
		d.Close()
	}
	if match == nil {
		return nil, fmt.Errorf("device not found (VID:0x%04X PID:0x%04X serial %q)",
			opts.VendorID, opts.ProductID, opts.Serial)
	}
	return match, nil
}

// claimInterface finds and claims the USBTMC interface and its bulk
// endpoints.
func (c *USBTMCConn) claimInterface(number int) error {
	cfgNum, err := c.dev.ActiveConfigNum()
	if err != nil || cfgNum == 0 {
		cfgNum = 1
	}

	if number < 0 {
		desc, ok := c.dev.Desc.Configs[cfgNum]
		if !ok {
			return fmt.Errorf("config %d not described", cfgNum)
		}
		for _, intf := range desc.Interfaces {
			if len(intf.AltSettings) == 0 {
				continue
			}
			alt := intf.AltSettings[0]
			if alt.Class == ClassUSBTMC && alt.SubClass == SubClassUSBTMC {
				number = intf.Number
				break
			}
		}
		if number < 0 {
			return fmt.Errorf("no USBTMC interface on device")
		}
	}

	intf, done, err := c.dev.DefaultInterface()
	if err != nil || intf.Setting.Number != number {
		if done != nil {
			done()
		}
		cfg, err := c.dev.Config(cfgNum)
		if err != nil {
			return fmt.Errorf("failed to get config: %w", err)
		}
		intf, err = cfg.Interface(number, 0)
		if err != nil {
			cfg.Close()
			return fmt.Errorf("failed to claim interface %d: %w", number, err)
		}
		done = func() {
			intf.Close()
			cfg.Close()
		}
	}
	c.done = done

	if err := c.findEndpoints(intf); err != nil {
		done()
		c.done = nil
		return err
	}
	return nil
}

// findEndpoints discovers the bulk IN and OUT endpoints.
func (c *USBTMCConn) findEndpoints(intf *gousb.Interface) error {
	outNum, inNum := -1, -1
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionOut && outNum < 0 {
			outNum = ep.Number
		}
		if ep.Direction == gousb.EndpointDirectionIn && inNum < 0 {
			inNum = ep.Number
		}
	}
	if outNum < 0 {
		return fmt.Errorf("bulk OUT endpoint not found")
	}
	if inNum < 0 {
		return fmt.Errorf("bulk IN endpoint not found")
	}

	epOut, err := intf.OutEndpoint(outNum)
	if err != nil {
		return fmt.Errorf("failed to open OUT endpoint: %w", err)
	}
	epIn, err := intf.InEndpoint(inNum)
	if err != nil {
		return fmt.Errorf("failed to open IN endpoint: %w", err)
	}
	c.epOut = epOut
	c.epIn = epIn
	return nil
}

// Write sends p as one USBTMC message, split into transfers of at most
// maxTransfer bytes. EOM is set on the last transfer.
func (c *USBTMCConn) Write(ctx context.Context, p []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	for {
		chunk := p
		if len(chunk) > c.maxTransfer {
			chunk = chunk[:c.maxTransfer]
		}
		p = p[len(chunk):]
		msg := c.proto.EncodeDevDepMsgOut(chunk, len(p) == 0)
		if _, err := c.epOut.WriteContext(ctx, msg); err != nil {
			return usbError(ctx, fmt.Errorf("USB write failed: %w", err))
		}
		if len(p) == 0 {
			return nil
		}
	}
}

// Read returns bytes from the current bulk IN transfer, requesting a new
// one when nothing is pending.
func (c *USBTMCConn) Read(ctx context.Context, p []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	if len(c.pending) == 0 {
		if err := c.transferIn(ctx, len(p)); err != nil {
			return 0, err
		}
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *USBTMCConn) transferIn(ctx context.Context, want int) error {
	if want > c.maxTransfer || want <= 0 {
		want = c.maxTransfer
	}
	req := c.proto.EncodeRequestDevDepMsgIn(uint32(want), c.termChar)
	if _, err := c.epOut.WriteContext(ctx, req); err != nil {
		return usbError(ctx, fmt.Errorf("USB request failed: %w", err))
	}

	// Header plus payload plus alignment padding.
	buf := make([]byte, HeaderSize+want+3)
	n, err := c.epIn.ReadContext(ctx, buf)
	if err != nil {
		return usbError(ctx, fmt.Errorf("USB read failed: %w", err))
	}
	h, payload, err := c.proto.DecodeDevDepMsgIn(buf[:n])
	if err != nil {
		return err
	}

	// A transfer larger than one read continues without a header.
	data := append([]byte(nil), payload...)
	for len(data) < h.TransferSize {
		n, err := c.epIn.ReadContext(ctx, buf)
		if err != nil {
			return usbError(ctx, fmt.Errorf("USB read failed: %w", err))
		}
		data = append(data, buf[:n]...)
	}
	c.pending = data[:h.TransferSize]
	return nil
}

func usbError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, gousb.ErrorTimeout) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// Close releases USB resources. Safe to call more than once.
func (c *USBTMCConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.done != nil {
			c.done()
		}
		if c.dev != nil {
			c.dev.Close()
		}
		if c.ctx != nil {
			c.ctx.Close()
		}
	})
	return nil
}
