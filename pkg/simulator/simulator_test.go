package simulator

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/idn"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/instrument"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/transport"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/waveform"
)

func openHandle(t *testing.T, model string) (*Instrument, *instrument.Handle) {
	t.Helper()
	in, err := Open(model)
	if err != nil {
		t.Fatalf("Open(%q): %v", model, err)
	}
	cfg := transport.DefaultConfig()
	cfg.Timeout = time.Second
	h := instrument.NewHandle("SIM::"+model+"::INSTR", in, cfg, nil)
	t.Cleanup(func() { h.Close() })
	return in, h
}

func TestLookup(t *testing.T) {
	for _, model := range []string{"DS1054Z", "ds1054z", "DSO-X 2024A", "dsox2024a", "34461A", "DP832"} {
		if _, ok := Lookup(model); !ok {
			t.Errorf("Lookup(%q) failed", model)
		}
	}
	if _, ok := Lookup("HP3456A"); ok {
		t.Fatalf("Lookup should reject unknown model")
	}
	if _, err := Open("nothing"); err == nil {
		t.Fatalf("Open should fail for unknown model")
	}
}

func TestIdentityMatchesModel(t *testing.T) {
	for _, model := range Models() {
		p := Profiles[model]
		id := idn.Parse(p.IDN)
		if id.Malformed {
			t.Fatalf("%s: malformed identity %q", model, p.IDN)
		}
		if id.Model != p.Model {
			t.Fatalf("%s: identity model %q, profile model %q", model, id.Model, p.Model)
		}
		if _, ok := idn.LookupVendor(id.Manufacturer); !ok {
			t.Fatalf("%s: unknown vendor %q", model, id.Manufacturer)
		}
	}
}

func TestSetAndQuery(t *testing.T) {
	ctx := context.Background()
	in, h := openHandle(t, "DS1054Z")

	tests := []struct {
		set   string
		query string
		want  string
	}{
		{":TIMebase:MAIN:SCALe 0.0005", ":TIM:MAIN:SCAL?", "0.0005"},
		{":CHANnel2:COUPling AC", ":CHAN2:COUP?", "AC"},
		{":TRIGger:EDGe:SLOPe NEGative", ":TRIG:EDG:SLOP?", "NEG"},
		{":TRIG:EDG:SLOP rfall", ":TRIGGER:EDG:SLOPE?", "RFALL"},
		{":DISP:TYPE DOTS", ":DISPlay:TYPE?", "DOTS"},
	}
	for _, tt := range tests {
		if err := h.Write(ctx, tt.set); err != nil {
			t.Fatalf("Write(%q): %v", tt.set, err)
		}
		got, err := h.Query(ctx, tt.query)
		if err != nil {
			t.Fatalf("Query(%q): %v", tt.query, err)
		}
		if got != tt.want {
			t.Fatalf("%s -> %s = %q, want %q", tt.set, tt.query, got, tt.want)
		}
	}
	if errs := in.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors %v", errs)
	}
}

func TestErrorQueue(t *testing.T) {
	ctx := context.Background()
	in, h := openHandle(t, "DS1054Z")

	if err := h.Write(ctx, ":BOGus:COMMand 1"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(in.Errors()) != 1 {
		t.Fatalf("errors = %v, want one", in.Errors())
	}
	got, err := h.Query(ctx, ":SYSTem:ERRor?")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !strings.HasPrefix(got, "-113") {
		t.Fatalf("SYST:ERR? = %q", got)
	}
	got, _ = h.Query(ctx, ":SYST:ERR?")
	if got != `0,"No error"` {
		t.Fatalf("second SYST:ERR? = %q", got)
	}
}

func TestUnknownQueryTimesOut(t *testing.T) {
	_, h := openHandle(t, "34461A")
	h.SetTimeout(50 * time.Millisecond)
	_, err := h.Query(context.Background(), ":NOPE?")
	if !errors.Is(err, transport.ErrTimeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	ctx := context.Background()
	in, h := openHandle(t, "DS1054Z")
	h.Write(ctx, ":CHAN1:SCAL 5")
	h.Write(ctx, "*RST")
	if v, _ := in.State(":CHAN1:SCAL"); v != "1.000000e+00" {
		t.Fatalf("after *RST CHAN1:SCAL = %q", v)
	}
}

func captureRigol(t *testing.T, h *instrument.Handle, start, stop int) []int {
	t.Helper()
	ctx := context.Background()
	h.Write(ctx, ":WAV:STAR "+strconv.Itoa(start))
	h.Write(ctx, ":WAV:STOP "+strconv.Itoa(stop))
	data, err := h.QueryBlock(ctx, ":WAV:DATA?")
	if err != nil {
		t.Fatalf("QueryBlock: %v", err)
	}
	codes, err := waveform.Unpack(data, waveform.FormatByte)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	return codes
}

func TestRigolWaveform(t *testing.T) {
	ctx := context.Background()
	_, h := openHandle(t, "DS1054Z")

	raw, err := h.Query(ctx, ":WAV:PRE?")
	if err != nil {
		t.Fatalf("preamble: %v", err)
	}
	p, err := waveform.ParseRigolPreamble(raw)
	if err != nil {
		t.Fatalf("ParseRigolPreamble(%q): %v", raw, err)
	}
	if p.SampleCount != 1200 {
		t.Fatalf("SampleCount = %d", p.SampleCount)
	}

	whole := captureRigol(t, h, 1, 1200)
	if len(whole) != 1200 {
		t.Fatalf("got %d codes", len(whole))
	}
	first := captureRigol(t, h, 1, 600)
	second := captureRigol(t, h, 601, 1200)
	joined := append(first, second...)
	for i := range whole {
		if whole[i] != joined[i] {
			t.Fatalf("chunked code %d = %d, whole = %d", i, joined[i], whole[i])
		}
	}

	w, err := waveform.Decode(whole, p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if w.Clipped {
		t.Fatalf("1 V sine at 1 V/div should not clip")
	}
	pk, _ := w.PkPk()
	if pk < 1.9 || pk > 2.1 {
		t.Fatalf("PkPk = %g, want about 2", pk)
	}
}

func TestRigolClipsAtSmallScale(t *testing.T) {
	ctx := context.Background()
	_, h := openHandle(t, "DS1054Z")
	h.Write(ctx, ":CHAN1:SCAL 0.01")

	raw, _ := h.Query(ctx, ":WAV:PRE?")
	p, err := waveform.ParseRigolPreamble(raw)
	if err != nil {
		t.Fatalf("ParseRigolPreamble: %v", err)
	}
	w, err := waveform.Decode(captureRigol(t, h, 1, 1200), p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !w.Clipped {
		t.Fatalf("expected clipped capture")
	}
}

func TestRigolDataOutOfRange(t *testing.T) {
	ctx := context.Background()
	in, h := openHandle(t, "DS1054Z")
	h.Write(ctx, ":WAV:STAR 1300")
	h.Write(ctx, ":WAV:STOP 1400")
	h.SetTimeout(50 * time.Millisecond)
	if _, err := h.QueryBlock(ctx, ":WAV:DATA?"); err == nil {
		t.Fatalf("expected no answer for out of range window")
	}
	if errs := in.Errors(); len(errs) == 0 || !strings.HasPrefix(errs[0], "-222") {
		t.Fatalf("errors = %v", errs)
	}
}

func TestKeysightWordWaveform(t *testing.T) {
	ctx := context.Background()
	_, h := openHandle(t, "DSOX2024A")
	for _, cmd := range []string{":WAVeform:SOURce CHANnel2", ":WAVeform:FORMat WORD", ":WAVeform:BYTeorder MSBFirst", ":WAVeform:POINts 500"} {
		if err := h.Write(ctx, cmd); err != nil {
			t.Fatalf("Write(%q): %v", cmd, err)
		}
	}
	raw, err := h.Query(ctx, ":WAVeform:PREamble?")
	if err != nil {
		t.Fatalf("preamble: %v", err)
	}
	p, err := waveform.ParseKeysightPreamble(raw)
	if err != nil {
		t.Fatalf("ParseKeysightPreamble(%q): %v", raw, err)
	}
	if p.CodeMax != 0xFFFF || p.SampleCount != 500 {
		t.Fatalf("preamble = %+v", p)
	}
	data, err := h.QueryBlock(ctx, ":WAVeform:DATA?")
	if err != nil {
		t.Fatalf("QueryBlock: %v", err)
	}
	codes, err := waveform.Unpack(data, waveform.FormatWordBE)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	w, err := waveform.Decode(codes, p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	pk, _ := w.PkPk()
	if pk < 0.95 || pk > 1.05 {
		t.Fatalf("channel 2 PkPk = %g, want about 1", pk)
	}
}

func TestSupplyAddressedOutput(t *testing.T) {
	ctx := context.Background()
	_, h := openHandle(t, "DP832")
	h.Write(ctx, ":SOUR2:VOLT 3.3")
	got, _ := h.Query(ctx, ":MEAS:VOLT? CH2")
	if got != "0.000" {
		t.Fatalf("disabled output reads %q", got)
	}
	h.Write(ctx, ":OUTPut:STATe CH2,ON")
	if got, _ := h.Query(ctx, ":OUTP:STAT? CH2"); got != "ON" {
		t.Fatalf("OUTP:STAT? CH2 = %q", got)
	}
	if got, _ := h.Query(ctx, ":OUTP:STAT? CH1"); got != "OFF" {
		t.Fatalf("OUTP:STAT? CH1 = %q", got)
	}
	if got, _ := h.Query(ctx, ":MEASure:VOLTage? CH2"); got != "3.3" {
		t.Fatalf("MEAS:VOLT? CH2 = %q", got)
	}
}

func TestMeterReadings(t *testing.T) {
	ctx := context.Background()
	_, h := openHandle(t, "34461A")
	got, err := h.Query(ctx, ":MEASure:VOLTage:DC?")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got != "+1.23456789E+00" {
		t.Fatalf("MEAS:VOLT:DC? = %q", got)
	}
}

func TestCommandHook(t *testing.T) {
	in, h := openHandle(t, "DS1054Z")
	in.OnCommand = func(msg string) ([]byte, bool) {
		if msg == "*IDN?" {
			return []byte("ACME,WIDGET,1,1\n"), true
		}
		return nil, false
	}
	got, err := h.Query(context.Background(), "*IDN?")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got != "ACME,WIDGET,1,1" {
		t.Fatalf("hooked *IDN? = %q", got)
	}
}

func TestClosedInstrument(t *testing.T) {
	in, err := Open("DS1054Z")
	if err != nil {
		t.Fatal(err)
	}
	in.Close()
	if err := in.Write(context.Background(), []byte("*IDN?\n")); !errors.Is(err, transport.ErrClosed) {
		t.Fatalf("Write after Close = %v", err)
	}
}
