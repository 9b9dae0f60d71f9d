// Package generic is the fallback for instruments that identify themselves
// but have no dedicated driver. It offers raw command access only.
package generic

import (
	"context"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/idn"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/instrument"
)

// Name is the descriptor name.
const Name = "generic-scpi"

// Instrument is a session with no capabilities beyond raw SCPI.
type Instrument struct {
	h  *instrument.Handle
	id idn.Identity
}

func New(h *instrument.Handle, id idn.Identity) *Instrument {
	return &Instrument{h: h, id: id}
}

func (i *Instrument) Identity() idn.Identity { return i.id }

func (i *Instrument) Categories() []driver.Category { return nil }

func (i *Instrument) Close() error { return i.h.Close() }

// Write sends a raw command.
func (i *Instrument) Write(ctx context.Context, cmd string) error {
	return i.h.Write(ctx, cmd)
}

// Query sends a raw query.
func (i *Instrument) Query(ctx context.Context, cmd string) (string, error) {
	return i.h.Query(ctx, cmd)
}

// Descriptor accepts any well-formed identity. Its priority sits below
// every vendor driver so it only wins when nothing else matches.
func Descriptor() driver.Descriptor {
	return driver.Descriptor{
		Name:     Name,
		Priority: -100,
		Match:    func(id idn.Identity) bool { return !id.Malformed },
		New: func(h *instrument.Handle, id idn.Identity) (driver.Driver, error) {
			return New(h, id), nil
		},
	}
}
