package driver_test

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"testing"
	"time"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/idn"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/instrument"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/simulator"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/transport"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/waveform"
)

// stub is a driver with no capabilities, tagged with the descriptor that
// built it.
type stub struct {
	name     string
	id       idn.Identity
	h        *instrument.Handle
	observer driver.CaptureObserver
}

func (s *stub) Identity() idn.Identity        { return s.id }
func (s *stub) Categories() []driver.Category { return []driver.Category{driver.CategoryScope} }
func (s *stub) Close() error                  { return s.h.Close() }

func (s *stub) SetCaptureObserver(o driver.CaptureObserver) { s.observer = o }

func stubDescriptor(name string, priority int, match driver.Predicate) driver.Descriptor {
	return driver.Descriptor{
		Name:       name,
		Categories: []driver.Category{driver.CategoryScope},
		Priority:   priority,
		Match:      match,
		New: func(h *instrument.Handle, id idn.Identity) (driver.Driver, error) {
			return &stub{name: name, id: id, h: h}, nil
		},
	}
}

func anyIdentity(id idn.Identity) bool { return !id.Malformed }

func simHandle(t *testing.T, model, idnOverride string) *instrument.Handle {
	t.Helper()
	in, err := simulator.Open(model)
	if err != nil {
		t.Fatalf("simulator.Open(%q): %v", model, err)
	}
	if idnOverride != "" {
		in.OnCommand = func(msg string) ([]byte, bool) {
			if msg == idn.Query {
				return []byte(idnOverride + "\n"), true
			}
			return nil, false
		}
	}
	cfg := transport.DefaultConfig()
	cfg.Timeout = time.Second
	h := instrument.NewHandle("SIM::"+model+"::INSTR", in, cfg, nil)
	t.Cleanup(func() { h.Close() })
	return h
}

func names(ds []driver.Descriptor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Name
	}
	return out
}

func TestRegisterValidation(t *testing.T) {
	reg := driver.NewRegistry()
	bad := []driver.Descriptor{
		{Match: anyIdentity, New: stubDescriptor("x", 0, anyIdentity).New},
		{Name: "no-match", New: stubDescriptor("x", 0, anyIdentity).New},
		{Name: "no-factory", Match: anyIdentity},
	}
	for _, d := range bad {
		if err := reg.Register(d); err == nil {
			t.Fatalf("Register(%+v) succeeded", d.Name)
		}
	}
	reg.MustRegister(stubDescriptor("a", 0, anyIdentity))
	if err := reg.Register(stubDescriptor("a", 5, anyIdentity)); err == nil {
		t.Fatalf("duplicate name accepted")
	}
}

func TestDescriptorOrder(t *testing.T) {
	reg := driver.NewRegistry()
	reg.MustRegister(stubDescriptor("low-1", 0, anyIdentity))
	reg.MustRegister(stubDescriptor("high", 10, anyIdentity))
	reg.MustRegister(stubDescriptor("low-2", 0, anyIdentity))
	reg.MustRegister(stubDescriptor("fallback", -5, anyIdentity))

	want := []string{"high", "low-1", "low-2", "fallback"}
	if got := names(reg.Descriptors()); !slices.Equal(got, want) {
		t.Fatalf("Descriptors = %v, want %v", got, want)
	}
}

func TestFirstMatchWins(t *testing.T) {
	id := idn.Parse("RIGOL TECHNOLOGIES,DS1054Z,DS1ZA1,00.04.04")
	specific := stubDescriptor("ds1000z", 0, driver.MatchModelPrefix("rigol", "DS1"))
	vendor := stubDescriptor("any-rigol", 0, driver.MatchVendor("rigol"))

	ordered := driver.NewRegistry()
	ordered.MustRegister(specific)
	ordered.MustRegister(vendor)
	for i := 0; i < 5; i++ {
		d, ok := ordered.Select(id)
		if !ok || d.Name != "ds1000z" {
			t.Fatalf("Select = %s, %v; want ds1000z", d.Name, ok)
		}
	}

	reversed := driver.NewRegistry()
	reversed.MustRegister(vendor)
	reversed.MustRegister(specific)
	if d, _ := reversed.Select(id); d.Name != "any-rigol" {
		t.Fatalf("generic registered first should win, got %s", d.Name)
	}

	if _, ok := ordered.Select(idn.Parse("KEYSIGHT TECHNOLOGIES,DSO-X 2024A,MY1,1")); ok {
		t.Fatalf("Rigol predicates matched a Keysight identity")
	}
}

func TestMatchModelPrefix(t *testing.T) {
	match := driver.MatchModelPrefix("keysight", "DSO-X", "34461")
	cases := []struct {
		raw  string
		want bool
	}{
		{"KEYSIGHT TECHNOLOGIES,DSO-X 2024A,MY1,1", true},
		{"Agilent Technologies,DSO-X 3034A,MY1,1", true},
		{"Keysight Technologies,34461A,MY1,1", true},
		{"Keysight Technologies,dso-x1204g,MY1,1", true},
		{"Keysight Technologies,E36313A,MY1,1", false},
		{"RIGOL TECHNOLOGIES,DSO-X 2024A,1,1", false},
	}
	for _, tc := range cases {
		if got := match(idn.Parse(tc.raw)); got != tc.want {
			t.Fatalf("match(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestMatchModelPattern(t *testing.T) {
	match := driver.MatchModelPattern("rigol", regexp.MustCompile(`^(DS|MSO)1\d{3}Z`))
	cases := []struct {
		raw  string
		want bool
	}{
		{"RIGOL TECHNOLOGIES,DS1054Z,DS1ZA1,00.04.04", true},
		{"Rigol Technologies,MSO1104Z-S,DS1ZA1,00.04.04", true},
		{"Rigol Technologies,ds 1202z-e,DS1ZA1,00.04.04", true},
		{"Rigol Technologies,DS1102E,DS1ET000000001,00.04.01.00.02", false},
		{"Rigol Technologies,DS1052D,DS1ED1,00.04.01", false},
		{"Rigol Technologies,DP832,DP8C1,00.01.14", false},
		{"KEYSIGHT TECHNOLOGIES,DS1054Z,1,1", false},
	}
	for _, tc := range cases {
		if got := match(idn.Parse(tc.raw)); got != tc.want {
			t.Fatalf("match(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestIdentifyUnidentified(t *testing.T) {
	reg := driver.NewRegistry()
	reg.MustRegister(stubDescriptor("rigol", 0, driver.MatchVendor("rigol")))

	h := simHandle(t, "DS1054Z", "Fluke,8846A,1234,1.0")
	id, drv, err := reg.Identify(context.Background(), h)
	var unidentified *driver.UnidentifiedDeviceError
	if !errors.As(err, &unidentified) {
		t.Fatalf("Identify = %v, want UnidentifiedDeviceError", err)
	}
	if drv != nil {
		t.Fatalf("driver returned with error")
	}
	if id.Manufacturer != "Fluke" || unidentified.Identity.Model != "8846A" {
		t.Fatalf("identity = %+v", id)
	}
	if unidentified.Locator != "SIM::DS1054Z::INSTR" {
		t.Fatalf("locator = %q", unidentified.Locator)
	}
}

type countingObserver struct{ n int }

func (c *countingObserver) CaptureCompleted(int, bool, error) { c.n++ }

func TestIdentifyInjectsCaptureObserver(t *testing.T) {
	reg := driver.NewRegistry()
	reg.MustRegister(stubDescriptor("rigol", 0, driver.MatchVendor("rigol")))
	obs := &countingObserver{}
	reg.SetCaptureObserver(obs)

	id, drv, err := reg.Identify(context.Background(), simHandle(t, "DS1054Z", ""))
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if id.Model != "DS1054Z" {
		t.Fatalf("identity = %+v", id)
	}
	s := drv.(*stub)
	if s.observer != obs {
		t.Fatalf("capture observer not injected")
	}
}

func TestAccessorsReportUnsupported(t *testing.T) {
	drv := &stub{id: idn.Parse("RIGOL TECHNOLOGIES,DS1054Z,1,1")}
	accessors := map[string]func(driver.Driver) error{
		"horizontal": func(d driver.Driver) error { _, err := driver.AsHorizontal(d); return err },
		"vertical":   func(d driver.Driver) error { _, err := driver.AsVertical(d); return err },
		"trigger":    func(d driver.Driver) error { _, err := driver.AsTrigger(d); return err },
		"display":    func(d driver.Driver) error { _, err := driver.AsDisplay(d); return err },
		"source":     func(d driver.Driver) error { _, err := driver.AsSource(d); return err },
		"meter":      func(d driver.Driver) error { _, err := driver.AsMeter(d); return err },
	}
	for capability, as := range accessors {
		err := as(drv)
		if !errors.Is(err, driver.ErrUnsupported) {
			t.Fatalf("As %s = %v, want ErrUnsupported", capability, err)
		}
		var u *driver.UnsupportedOperationError
		if !errors.As(err, &u) || u.Capability != capability || u.Model != "DS1054Z" {
			t.Fatalf("As %s error = %+v", capability, u)
		}
	}
	if caps := driver.Capabilities(drv); len(caps) != 0 {
		t.Fatalf("Capabilities = %v", caps)
	}
}

func TestCaptureStore(t *testing.T) {
	var s driver.CaptureStore
	if _, err := s.LastCapture(); !errors.Is(err, driver.ErrNoCaptureYet) {
		t.Fatalf("LastCapture = %v", err)
	}
	for name, stat := range map[string]func() (float64, error){
		"mean": s.Mean, "min": s.Min, "max": s.Max, "pkpk": s.PkPk,
	} {
		if _, err := stat(); !errors.Is(err, driver.ErrNoCaptureYet) {
			t.Fatalf("%s before capture = %v", name, err)
		}
	}

	p := waveform.Preamble{SampleCount: 4, XIncrement: 1, YMultiplier: 0.5, YOffset: 100, CodeMax: 255}
	w, err := waveform.Decode([]int{98, 100, 102, 104}, p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	s.Store(w)
	if got, _ := s.Min(); got != -1 {
		t.Fatalf("Min = %g", got)
	}
	if got, _ := s.Max(); got != 2 {
		t.Fatalf("Max = %g", got)
	}
	if got, _ := s.PkPk(); got != 3 {
		t.Fatalf("PkPk = %g", got)
	}
	if got, _ := s.Mean(); got != 0.5 {
		t.Fatalf("Mean = %g", got)
	}
}
