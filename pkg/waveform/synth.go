package waveform

import "math"

// Synthesize produces raw codes for p.SampleCount samples of signal, using
// the exact inverse of Decode's scaling. Codes are rounded and, when the
// preamble declares an ADC range, clamped to [CodeMin, CodeMax] so an
// over-range signal decodes as clipped just like a saturated live capture.
func Synthesize(p Preamble, signal func(t float64) float64) []int {
	codes := make([]int, p.SampleCount)
	bounded := p.CodeMax > p.CodeMin
	for n := range codes {
		t := p.XZero + float64(n)*p.XIncrement
		v := signal(t)
		code := p.YOffset
		if p.YMultiplier != 0 {
			code += (v - p.YZero) / p.YMultiplier
		}
		codes[n] = int(math.Round(code))
		if bounded {
			codes[n] = clampInt(codes[n], p.CodeMin, p.CodeMax)
		}
	}
	return codes
}

// Sine returns a sine source with the given amplitude (volts), frequency (Hz)
// and DC offset.
func Sine(amplitude, frequency, offset float64) func(float64) float64 {
	return func(t float64) float64 {
		return offset + amplitude*math.Sin(2*math.Pi*frequency*t)
	}
}
