package waveform

import (
	"encoding/binary"
	"fmt"
)

// DecodeError reports a malformed preamble or a sample buffer that does not
// agree with it. It is fatal for the capture it belongs to only.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "waveform: decode: " + e.Reason
}

// Waveform is one decoded capture. It is produced once by Decode and must be
// treated as read-only by every holder.
type Waveform struct {
	Preamble Preamble
	Codes    []int
	Time     []float64
	Voltage  []float64
	// Clipped is set when any code sits on CodeMin or CodeMax, i.e. the
	// front end or ADC saturated. Values are still scaled.
	Clipped bool
}

// Len returns the number of samples.
func (w *Waveform) Len() int { return len(w.Codes) }

// Decode scales raw codes with the preamble. The number of codes must match
// p.SampleCount exactly; the decoder never pads or truncates.
func Decode(codes []int, p Preamble) (*Waveform, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(codes) != p.SampleCount {
		return nil, &DecodeError{Reason: fmt.Sprintf("got %d samples, preamble declares %d", len(codes), p.SampleCount)}
	}

	w := &Waveform{
		Preamble: p,
		Codes:    append([]int(nil), codes...),
		Time:     make([]float64, len(codes)),
		Voltage:  make([]float64, len(codes)),
	}
	// Equal bounds mean the source did not declare an ADC range.
	bounded := p.CodeMax > p.CodeMin
	for n, code := range codes {
		w.Time[n] = p.XZero + float64(n)*p.XIncrement
		w.Voltage[n] = p.YZero + p.YMultiplier*(float64(code)-p.YOffset)
		if bounded && (code <= p.CodeMin || code >= p.CodeMax) {
			w.Clipped = true
		}
	}
	return w, nil
}

// Format describes how samples are packed inside a binary block.
type Format struct {
	Width  int // bytes per sample, 1 or 2
	Order  binary.ByteOrder
	Signed bool
}

var (
	// FormatByte is unsigned 8-bit, the default for :WAV:FORM BYTE.
	FormatByte = Format{Width: 1, Order: binary.LittleEndian}
	// FormatWordLE is unsigned 16-bit little endian (:WAV:FORM WORD on Rigol).
	FormatWordLE = Format{Width: 2, Order: binary.LittleEndian}
	// FormatWordBE is unsigned 16-bit MSB first (Keysight :WAV:BYT MSBF).
	FormatWordBE = Format{Width: 2, Order: binary.BigEndian}
)

// Unpack converts a binary block payload into integer codes.
func Unpack(data []byte, f Format) ([]int, error) {
	if f.Width != 1 && f.Width != 2 {
		return nil, &DecodeError{Reason: fmt.Sprintf("unsupported sample width %d", f.Width)}
	}
	if len(data)%f.Width != 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("%d bytes is not a multiple of sample width %d", len(data), f.Width)}
	}

	codes := make([]int, len(data)/f.Width)
	for i := range codes {
		switch f.Width {
		case 1:
			if f.Signed {
				codes[i] = int(int8(data[i]))
			} else {
				codes[i] = int(data[i])
			}
		case 2:
			order := f.Order
			if order == nil {
				order = binary.LittleEndian
			}
			v := order.Uint16(data[i*2:])
			if f.Signed {
				codes[i] = int(int16(v))
			} else {
				codes[i] = int(v)
			}
		}
	}
	return codes, nil
}

// Pack is the inverse of Unpack; codes outside the format range are clamped.
func Pack(codes []int, f Format) []byte {
	order := f.Order
	if order == nil {
		order = binary.LittleEndian
	}
	out := make([]byte, len(codes)*f.Width)
	for i, c := range codes {
		switch f.Width {
		case 1:
			if f.Signed {
				out[i] = byte(int8(clampInt(c, -128, 127)))
			} else {
				out[i] = byte(clampInt(c, 0, 0xFF))
			}
		case 2:
			if f.Signed {
				order.PutUint16(out[i*2:], uint16(int16(clampInt(c, -32768, 32767))))
			} else {
				order.PutUint16(out[i*2:], uint16(clampInt(c, 0, 0xFFFF)))
			}
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
