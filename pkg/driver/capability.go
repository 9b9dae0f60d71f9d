package driver

import (
	"context"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/idn"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/waveform"
)

// Category is an instrument class used by discovery.
type Category string

const (
	CategoryScope     Category = "scope"
	CategorySupply    Category = "supply"
	CategoryDMM       Category = "dmm"
	CategoryGenerator Category = "generator"
)

// Common enumerated modes. Drivers accept any spelling their command table
// lists; matching is case-insensitive.
const (
	CouplingAC  = "AC"
	CouplingDC  = "DC"
	CouplingGND = "GND"

	SlopePositive = "POSitive"
	SlopeNegative = "NEGative"
	SlopeEither   = "RFALl"

	DisplayVectors = "VECTors"
	DisplayDots    = "DOTS"
)

// Driver is the base every vendor driver implements. Capabilities are
// discovered with the As* accessors.
type Driver interface {
	Identity() idn.Identity
	Categories() []Category
	Close() error
}

// Horizontal controls the timebase.
type Horizontal interface {
	// SetTimebase snaps secondsPerDiv to the model's table before sending
	// and returns the value applied.
	SetTimebase(ctx context.Context, secondsPerDiv float64) (float64, error)
	Timebase(ctx context.Context) (float64, error)
}

// Vertical gives access to input channels.
type Vertical interface {
	Channels() int
	Channel(index int) (Channel, error)
}

// Channel is one input. Index is 1-based and fixed for the life of the
// session.
type Channel interface {
	Index() int
	Name() string

	SetVoltsPerDiv(ctx context.Context, v float64) (float64, error)
	VoltsPerDiv(ctx context.Context) (float64, error)
	SetCoupling(ctx context.Context, mode string) error
	Coupling(ctx context.Context) (string, error)

	Capture(ctx context.Context) (*waveform.Waveform, error)
	LastCapture() (*waveform.Waveform, error)

	Mean() (float64, error)
	Min() (float64, error)
	Max() (float64, error)
	PkPk() (float64, error)
}

// EdgeSettings is the edge trigger state.
type EdgeSettings struct {
	Source   string
	Slope    string
	Coupling string
	Level    float64
}

// Trigger controls the edge trigger.
type Trigger interface {
	SetSource(ctx context.Context, channel int) error
	SetLevel(ctx context.Context, volts float64) error
	SetSlope(ctx context.Context, slope string) error
	SetCoupling(ctx context.Context, mode string) error
	EdgeSettings(ctx context.Context) (EdgeSettings, error)
}

// Display controls waveform rendering on the instrument screen.
type Display interface {
	SetFormat(ctx context.Context, mode string) error
	SetPersistence(ctx context.Context, mode string) error
}

// Source is a programmable power supply.
type Source interface {
	Outputs() int
	// SetVoltage and SetCurrent clamp to the output's rating and return the
	// value applied.
	SetVoltage(ctx context.Context, output int, volts float64) (float64, error)
	SetCurrent(ctx context.Context, output int, amps float64) (float64, error)
	SetOutput(ctx context.Context, output int, on bool) error
}

// Meter is a digital multimeter.
type Meter interface {
	Functions() []string
	Measure(ctx context.Context, function string) (float64, error)
}

// CaptureObserver receives capture events, e.g. for metrics.
type CaptureObserver interface {
	CaptureCompleted(samples int, clipped bool, err error)
}

func model(d Driver) string {
	return d.Identity().Model
}

// AsHorizontal returns d's Horizontal capability.
func AsHorizontal(d Driver) (Horizontal, error) {
	if c, ok := d.(Horizontal); ok {
		return c, nil
	}
	return nil, Unsupported(model(d), "horizontal", "")
}

// AsVertical returns d's Vertical capability.
func AsVertical(d Driver) (Vertical, error) {
	if c, ok := d.(Vertical); ok {
		return c, nil
	}
	return nil, Unsupported(model(d), "vertical", "")
}

// AsTrigger returns d's Trigger capability.
func AsTrigger(d Driver) (Trigger, error) {
	if c, ok := d.(Trigger); ok {
		return c, nil
	}
	return nil, Unsupported(model(d), "trigger", "")
}

// AsDisplay returns d's Display capability.
func AsDisplay(d Driver) (Display, error) {
	if c, ok := d.(Display); ok {
		return c, nil
	}
	return nil, Unsupported(model(d), "display", "")
}

// AsSource returns d's Source capability.
func AsSource(d Driver) (Source, error) {
	if c, ok := d.(Source); ok {
		return c, nil
	}
	return nil, Unsupported(model(d), "source", "")
}

// AsMeter returns d's Meter capability.
func AsMeter(d Driver) (Meter, error) {
	if c, ok := d.(Meter); ok {
		return c, nil
	}
	return nil, Unsupported(model(d), "meter", "")
}

// Capabilities names the capability interfaces d implements.
func Capabilities(d Driver) []string {
	var out []string
	if _, ok := d.(Horizontal); ok {
		out = append(out, "horizontal")
	}
	if _, ok := d.(Vertical); ok {
		out = append(out, "vertical")
	}
	if _, ok := d.(Trigger); ok {
		out = append(out, "trigger")
	}
	if _, ok := d.(Display); ok {
		out = append(out, "display")
	}
	if _, ok := d.(Source); ok {
		out = append(out, "source")
	}
	if _, ok := d.(Meter); ok {
		out = append(out, "meter")
	}
	return out
}

// HasCategory reports whether cats contains c.
func HasCategory(cats []Category, c Category) bool {
	for _, x := range cats {
		if x == c {
			return true
		}
	}
	return false
}
