package rigol

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/idn"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/instrument"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/ranges"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/scpi"
)

// Rating is the programmable range of one supply output.
type Rating struct {
	MaxVolts float64
	MaxAmps  float64
}

// DP800Ratings lists the per-output ratings of the models we know. Unknown
// DP800 models fall back to DP832.
var DP800Ratings = map[string][]Rating{
	"DP831":  {{8, 5}, {30, 2}, {-30, 2}},
	"DP832":  {{30, 3}, {30, 3}, {5, 3}},
	"DP832A": {{30, 3}, {30, 3}, {5, 3}},
	"DP811":  {{20, 10}},
	"DP821":  {{60, 1}, {8, 10}},
}

// DP800Commands is the supply command table.
func DP800Commands() *scpi.Tree {
	t := scpi.NewTree()
	t.MustRegister("source.voltage", ":SOURce{}:VOLTage {}")
	t.MustRegister("source.voltage.query", ":SOURce{}:VOLTage?")
	t.MustRegister("source.current", ":SOURce{}:CURRent {}")
	t.MustRegister("source.current.query", ":SOURce{}:CURRent?")
	t.MustRegister("output.state", ":OUTPut:STATe {},{}", "ON", "OFF")
	t.MustRegister("output.state.query", ":OUTPut:STATe? {}")
	t.MustRegister("measure.voltage", ":MEASure:VOLTage? {}")
	t.MustRegister("measure.current", ":MEASure:CURRent? {}")
	t.MustRegister("system.error", ":SYSTem:ERRor?")
	return t
}

// Supply drives a DP800 series power supply.
type Supply struct {
	h        *instrument.Handle
	id       idn.Identity
	commands *scpi.Tree
	ratings  []Rating
}

// NewSupply binds a DP800 to an open session.
func NewSupply(h *instrument.Handle, id idn.Identity) (*Supply, error) {
	ratings, ok := DP800Ratings[strings.ToUpper(id.Model)]
	if !ok {
		ratings = DP800Ratings["DP832"]
	}
	return &Supply{h: h, id: id, commands: DP800Commands(), ratings: ratings}, nil
}

func (s *Supply) Identity() idn.Identity { return s.id }

func (s *Supply) Categories() []driver.Category {
	return []driver.Category{driver.CategorySupply}
}

func (s *Supply) Close() error { return s.h.Close() }

func (s *Supply) Outputs() int { return len(s.ratings) }

func (s *Supply) rating(output int) (Rating, error) {
	if output < 1 || output > len(s.ratings) {
		return Rating{}, &driver.ChannelNotFoundError{Index: output, Max: len(s.ratings)}
	}
	return s.ratings[output-1], nil
}

func (s *Supply) send(ctx context.Context, path string, args ...any) error {
	cmd, err := s.commands.Format(path, args...)
	if err != nil {
		return err
	}
	return s.h.Write(ctx, cmd)
}

func (s *Supply) queryFloat(ctx context.Context, path string, args ...any) (float64, error) {
	cmd, err := s.commands.Format(path, args...)
	if err != nil {
		return 0, err
	}
	resp, err := s.h.Query(ctx, cmd)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(resp), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: unexpected reply %q", path, resp)
	}
	return v, nil
}

// SetVoltage clamps volts to the output's rating. A negative rated output
// is programmed with the magnitude.
func (s *Supply) SetVoltage(ctx context.Context, output int, volts float64) (float64, error) {
	r, err := s.rating(output)
	if err != nil {
		return 0, err
	}
	max := r.MaxVolts
	if max < 0 {
		max = -max
	}
	v := ranges.Clamp(volts, 0, max)
	if err := s.send(ctx, "source.voltage", output, v); err != nil {
		return 0, err
	}
	return v, nil
}

// SetCurrent clamps amps to the output's current limit range.
func (s *Supply) SetCurrent(ctx context.Context, output int, amps float64) (float64, error) {
	r, err := s.rating(output)
	if err != nil {
		return 0, err
	}
	a := ranges.Clamp(amps, 0, r.MaxAmps)
	if err := s.send(ctx, "source.current", output, a); err != nil {
		return 0, err
	}
	return a, nil
}

func (s *Supply) SetOutput(ctx context.Context, output int, on bool) error {
	if _, err := s.rating(output); err != nil {
		return err
	}
	return s.send(ctx, "output.state", fmt.Sprintf("CH%d", output), on)
}

// MeasureVoltage reads back the voltage at an output's terminals.
func (s *Supply) MeasureVoltage(ctx context.Context, output int) (float64, error) {
	if _, err := s.rating(output); err != nil {
		return 0, err
	}
	return s.queryFloat(ctx, "measure.voltage", fmt.Sprintf("CH%d", output))
}

// MeasureCurrent reads back an output's load current.
func (s *Supply) MeasureCurrent(ctx context.Context, output int) (float64, error) {
	if _, err := s.rating(output); err != nil {
		return 0, err
	}
	return s.queryFloat(ctx, "measure.current", fmt.Sprintf("CH%d", output))
}
