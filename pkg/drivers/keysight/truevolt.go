package keysight

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/idn"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/instrument"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/scpi"
)

// Measurement functions understood by Meter.Measure.
const (
	FuncVoltageDC  = "voltage:dc"
	FuncVoltageAC  = "voltage:ac"
	FuncCurrentDC  = "current:dc"
	FuncCurrentAC  = "current:ac"
	FuncResistance = "resistance"
	FuncFrequency  = "frequency"
)

var truevoltFunctions = []string{
	FuncVoltageDC, FuncVoltageAC, FuncCurrentDC, FuncCurrentAC, FuncResistance, FuncFrequency,
}

// TruevoltCommands is the 34460A/34461A measurement table. A function such
// as voltage:dc lives at measure.voltage.dc.
func TruevoltCommands() *scpi.Tree {
	t := scpi.NewTree()
	t.MustRegister("measure.voltage.dc", ":MEASure:VOLTage:DC?")
	t.MustRegister("measure.voltage.ac", ":MEASure:VOLTage:AC?")
	t.MustRegister("measure.current.dc", ":MEASure:CURRent:DC?")
	t.MustRegister("measure.current.ac", ":MEASure:CURRent:AC?")
	t.MustRegister("measure.resistance", ":MEASure:RESistance?")
	t.MustRegister("measure.frequency", ":MEASure:FREQuency?")
	t.MustRegister("system.error", ":SYSTem:ERRor?")
	return t
}

// Meter drives a Truevolt DMM.
type Meter struct {
	h        *instrument.Handle
	id       idn.Identity
	commands *scpi.Tree
}

// NewMeter binds a Truevolt DMM to an open session.
func NewMeter(h *instrument.Handle, id idn.Identity) *Meter {
	return &Meter{h: h, id: id, commands: TruevoltCommands()}
}

func (m *Meter) Identity() idn.Identity { return m.id }

func (m *Meter) Categories() []driver.Category {
	return []driver.Category{driver.CategoryDMM}
}

func (m *Meter) Close() error { return m.h.Close() }

func (m *Meter) Functions() []string {
	return append([]string(nil), truevoltFunctions...)
}

// Measure runs a one-shot measurement with auto range.
func (m *Meter) Measure(ctx context.Context, function string) (float64, error) {
	fn := strings.ToLower(strings.TrimSpace(function))
	path := "measure." + strings.ReplaceAll(fn, ":", ".")
	if !m.commands.Has(path) {
		return 0, driver.Unsupported(m.id.Model, "meter", function)
	}
	cmd, err := m.commands.Format(path)
	if err != nil {
		return 0, err
	}
	resp, err := m.h.Query(ctx, cmd)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(resp), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: unexpected reply %q", path, resp)
	}
	return v, nil
}
