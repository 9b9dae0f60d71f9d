package instrument

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/resource"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/transport"
)

// Opener opens sessions for locators.
type Opener interface {
	Open(ctx context.Context, loc resource.Locator) (*Handle, error)
}

// SimulatorFactory builds an in-memory connection for SIM locators.
type SimulatorFactory func(model string) (transport.Conn, error)

// Dialer opens real transports according to the locator kind.
type Dialer struct {
	Config    transport.Config
	Log       logrus.FieldLogger
	Simulator SimulatorFactory
	Observer  Observer
}

// Open connects to loc. Failures are returned as *transport.ConnectionError.
func (d *Dialer) Open(ctx context.Context, loc resource.Locator) (*Handle, error) {
	cfg := d.Config
	if cfg.Timeout <= 0 {
		cfg.Timeout = transport.DefaultConfig().Timeout
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	conn, err := d.dial(ctx, loc, cfg)
	if err != nil {
		if transport.IsTimeout(err) {
			err = transport.ErrTimeout
		}
		return nil, &transport.ConnectionError{Locator: loc.String(), Op: "open", Err: err}
	}

	h := NewHandle(loc.String(), conn, cfg, d.Log)
	if d.Observer != nil {
		h.SetObserver(d.Observer)
	}
	h.Logger().WithField("kind", loc.Kind).Debug("session opened")
	return h, nil
}

func (d *Dialer) dial(ctx context.Context, loc resource.Locator, cfg transport.Config) (transport.Conn, error) {
	switch loc.Kind {
	case resource.KindTCPIP:
		port := loc.Port
		if port == 0 {
			port = cfg.SocketPort
		}
		if port == 0 {
			port = transport.DefaultConfig().SocketPort
		}
		return transport.DialTCP(ctx, net.JoinHostPort(loc.Host, strconv.Itoa(port)))
	case resource.KindUSB:
		return transport.OpenUSBTMC(transport.USBTMCOptions{
			VendorID:    loc.VendorID,
			ProductID:   loc.ProductID,
			Serial:      loc.Serial,
			Interface:   loc.Interface,
			MaxTransfer: cfg.ChunkSize,
		})
	case resource.KindSerial:
		baud := cfg.Baud
		if baud <= 0 {
			baud = transport.DefaultConfig().Baud
		}
		return transport.OpenSerial(loc.DevicePath(), baud)
	case resource.KindSim:
		if d.Simulator == nil {
			return nil, fmt.Errorf("no simulator configured")
		}
		return d.Simulator(loc.Model)
	}
	return nil, fmt.Errorf("unsupported locator kind %q", loc.Kind)
}
