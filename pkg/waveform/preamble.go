package waveform

import (
	"fmt"
	"strconv"
	"strings"
)

// Preamble describes how to turn raw ADC codes of one capture into physical
// units.
//
//	time[n]    = XZero + n*XIncrement
//	voltage[n] = YZero + YMultiplier*(code[n]-YOffset)
type Preamble struct {
	SampleCount int
	XIncrement  float64
	XZero       float64
	YMultiplier float64
	YZero       float64
	YOffset     float64
	CodeMin     int
	CodeMax     int
}

// Validate checks the fields Decode depends on.
func (p Preamble) Validate() error {
	if p.SampleCount < 0 {
		return &DecodeError{Reason: fmt.Sprintf("negative sample count %d", p.SampleCount)}
	}
	if p.CodeMax < p.CodeMin {
		return &DecodeError{Reason: fmt.Sprintf("code bounds inverted [%d, %d]", p.CodeMin, p.CodeMax)}
	}
	return nil
}

// preambleFields are the ten comma separated values both the Rigol DS1000Z and
// the Keysight InfiniiVision families return for :WAVeform:PREamble?.
type preambleFields struct {
	format int     // 0 byte, 1 word, 2 ascii (Rigol) / 4 ascii (Keysight)
	kind   int     // acquisition type
	points int     // number of points in the record
	count  int     // averages
	xinc   float64 // seconds between points
	xorig  float64 // time of the reference point
	xref   float64 // index of the reference point
	yinc   float64 // volts per code
	yorig  float64
	yref   float64
}

func parsePreambleFields(raw string) (preambleFields, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ",")
	if len(parts) != 10 {
		return preambleFields{}, &DecodeError{Reason: fmt.Sprintf("preamble has %d fields, want 10: %q", len(parts), raw)}
	}

	var f preambleFields
	ints := []*int{&f.format, &f.kind, &f.points, &f.count}
	for i, dst := range ints {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return preambleFields{}, &DecodeError{Reason: fmt.Sprintf("preamble field %d: %v", i, err)}
		}
		*dst = int(v)
	}
	floats := []*float64{&f.xinc, &f.xorig, &f.xref, &f.yinc, &f.yorig, &f.yref}
	for i, dst := range floats {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[4+i]), 64)
		if err != nil {
			return preambleFields{}, &DecodeError{Reason: fmt.Sprintf("preamble field %d: %v", 4+i, err)}
		}
		*dst = v
	}
	return f, nil
}

func codeBounds(format int) (int, int) {
	if format == 1 {
		return 0, 0xFFFF
	}
	return 0, 0xFF
}

// ParseRigolPreamble decodes a DS1000Z style :WAV:PRE? response. Rigol
// defines voltage = (code - YORigin - YREFerence) * YINCrement and
// time = (n - XREFerence) * XINCrement + XORigin.
func ParseRigolPreamble(raw string) (Preamble, error) {
	f, err := parsePreambleFields(raw)
	if err != nil {
		return Preamble{}, err
	}
	lo, hi := codeBounds(f.format)
	return Preamble{
		SampleCount: f.points,
		XIncrement:  f.xinc,
		XZero:       f.xorig - f.xref*f.xinc,
		YMultiplier: f.yinc,
		YZero:       0,
		YOffset:     f.yorig + f.yref,
		CodeMin:     lo,
		CodeMax:     hi,
	}, nil
}

// ParseKeysightPreamble decodes an InfiniiVision :WAVeform:PREamble?
// response, where voltage = (code - yreference) * yincrement + yorigin.
func ParseKeysightPreamble(raw string) (Preamble, error) {
	f, err := parsePreambleFields(raw)
	if err != nil {
		return Preamble{}, err
	}
	lo, hi := codeBounds(f.format)
	return Preamble{
		SampleCount: f.points,
		XIncrement:  f.xinc,
		XZero:       f.xorig - f.xref*f.xinc,
		YMultiplier: f.yinc,
		YZero:       f.yorig,
		YOffset:     f.yref,
		CodeMin:     lo,
		CodeMax:     hi,
	}, nil
}
