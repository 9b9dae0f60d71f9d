package waveform

import "errors"

// ErrEmpty is returned by the statistics helpers for a zero-length capture.
var ErrEmpty = errors.New("waveform: no samples")

// Mean returns the arithmetic mean of the scaled voltage.
func (w *Waveform) Mean() (float64, error) {
	if len(w.Voltage) == 0 {
		return 0, ErrEmpty
	}
	var sum float64
	for _, v := range w.Voltage {
		sum += v
	}
	return sum / float64(len(w.Voltage)), nil
}

// Min returns the lowest scaled voltage.
func (w *Waveform) Min() (float64, error) {
	lo, _, err := w.extremes()
	return lo, err
}

// Max returns the highest scaled voltage.
func (w *Waveform) Max() (float64, error) {
	_, hi, err := w.extremes()
	return hi, err
}

// PkPk returns Max - Min.
func (w *Waveform) PkPk() (float64, error) {
	lo, hi, err := w.extremes()
	return hi - lo, err
}

func (w *Waveform) extremes() (float64, float64, error) {
	if len(w.Voltage) == 0 {
		return 0, 0, ErrEmpty
	}
	lo, hi := w.Voltage[0], w.Voltage[0]
	for _, v := range w.Voltage[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, nil
}
