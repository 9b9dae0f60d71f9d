package keysight_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/drivers/keysight"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/instrument"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/simulator"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/transport"
)

func identify(t *testing.T, model string) (*simulator.Instrument, driver.Driver) {
	t.Helper()
	in, err := simulator.Open(model)
	if err != nil {
		t.Fatalf("simulator.Open(%q): %v", model, err)
	}
	cfg := transport.DefaultConfig()
	cfg.Timeout = 2 * time.Second
	h := instrument.NewHandle("SIM::"+model+"::INSTR", in, cfg, nil)

	reg := driver.NewRegistry()
	for _, d := range keysight.Descriptors() {
		reg.MustRegister(d)
	}
	_, drv, err := reg.Identify(context.Background(), h)
	if err != nil {
		t.Fatalf("Identify(%s): %v", model, err)
	}
	t.Cleanup(func() { drv.Close() })
	return in, drv
}

func TestChannelCount(t *testing.T) {
	cases := map[string]int{
		"DSO-X 2024A": 4,
		"DSO-X 2002A": 2,
		"MSO-X 3034T": 4,
		"DSOX1204G":   4,
		"DSOX1102G":   2,
	}
	for model, want := range cases {
		if got := keysight.ChannelCount(model); got != want {
			t.Fatalf("ChannelCount(%q) = %d, want %d", model, got, want)
		}
	}
}

func TestInfiniiVisionCapture(t *testing.T) {
	ctx := context.Background()
	_, drv := identify(t, "DSOX2024A")

	v, err := driver.AsVertical(drv)
	if err != nil {
		t.Fatalf("AsVertical: %v", err)
	}
	ch, err := v.Channel(2)
	if err != nil {
		t.Fatalf("Channel(2): %v", err)
	}
	if got, err := ch.SetVoltsPerDiv(ctx, 0.15); err != nil || got != 0.2 {
		t.Fatalf("SetVoltsPerDiv(0.15) = %g, %v", got, err)
	}
	w, err := ch.Capture(ctx)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if w.Len() != 1000 {
		t.Fatalf("captured %d samples", w.Len())
	}
	if w.Preamble.CodeMax != 0xFFFF {
		t.Fatalf("word transfer should report 16-bit codes, got max %d", w.Preamble.CodeMax)
	}
	if w.Clipped {
		t.Fatalf("0.5 V sine at 200 mV/div should fit on screen")
	}
	pk, err := ch.PkPk()
	if err != nil {
		t.Fatalf("PkPk: %v", err)
	}
	if math.Abs(pk-1) > 0.02 {
		t.Fatalf("PkPk = %g, want about 1", pk)
	}
}

func TestInfiniiVisionVoltsPerDivCeiling(t *testing.T) {
	_, drv := identify(t, "DSOX2024A")
	v, _ := driver.AsVertical(drv)
	ch, _ := v.Channel(1)
	got, err := ch.SetVoltsPerDiv(context.Background(), 20)
	if err != nil {
		t.Fatalf("SetVoltsPerDiv: %v", err)
	}
	if got != 5 {
		t.Fatalf("SetVoltsPerDiv(20) = %g, want the 5 V/div ceiling", got)
	}
}

func TestInfiniiVisionDisplay(t *testing.T) {
	ctx := context.Background()
	in, drv := identify(t, "DSOX2024A")
	d, err := driver.AsDisplay(drv)
	if err != nil {
		t.Fatalf("AsDisplay: %v", err)
	}

	err = d.SetFormat(ctx, driver.DisplayDots)
	var unsupported *driver.UnsupportedOperationError
	if !errors.As(err, &unsupported) {
		t.Fatalf("SetFormat = %v, want UnsupportedOperationError", err)
	}
	if unsupported.Capability != "display" || unsupported.Operation != "type" || unsupported.Model != "DSO-X 2024A" {
		t.Fatalf("unsupported = %+v", unsupported)
	}

	if err := d.SetPersistence(ctx, "INFinite"); err != nil {
		t.Fatalf("SetPersistence: %v", err)
	}
	if v, _ := in.State(":DISP:PERS"); v != "INF" {
		t.Fatalf("DISP:PERS = %q", v)
	}
}

func TestInfiniiVisionTriggerSlopes(t *testing.T) {
	ctx := context.Background()
	_, drv := identify(t, "DSOX2024A")
	trig, err := driver.AsTrigger(drv)
	if err != nil {
		t.Fatalf("AsTrigger: %v", err)
	}
	if err := trig.SetSlope(ctx, "EITHer"); err != nil {
		t.Fatalf("SetSlope(EITHer): %v", err)
	}
	if err := trig.SetSlope(ctx, driver.SlopeEither); err == nil {
		t.Fatalf("SetSlope(%s) should be rejected by the X-Series table", driver.SlopeEither)
	}
	es, err := trig.EdgeSettings(ctx)
	if err != nil {
		t.Fatalf("EdgeSettings: %v", err)
	}
	if es.Slope != "EITHer" || es.Source != "CHANnel1" {
		t.Fatalf("EdgeSettings = %+v", es)
	}
}

func TestTruevoltMeasure(t *testing.T) {
	ctx := context.Background()
	_, drv := identify(t, "34461A")
	m, err := driver.AsMeter(drv)
	if err != nil {
		t.Fatalf("AsMeter: %v", err)
	}
	if _, err := driver.AsVertical(drv); !errors.Is(err, driver.ErrUnsupported) {
		t.Fatalf("AsVertical on a DMM = %v", err)
	}

	cases := map[string]float64{
		keysight.FuncVoltageDC:  1.23456789,
		"VOLTAGE:AC":            0.707106781,
		keysight.FuncResistance: 1000,
		keysight.FuncFrequency:  1000,
	}
	for fn, want := range cases {
		got, err := m.Measure(ctx, fn)
		if err != nil {
			t.Fatalf("Measure(%s): %v", fn, err)
		}
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("Measure(%s) = %g, want %g", fn, got, want)
		}
	}
	if _, err := m.Measure(ctx, "capacitance"); !errors.Is(err, driver.ErrUnsupported) {
		t.Fatalf("Measure(capacitance) = %v, want ErrUnsupported", err)
	}
}
