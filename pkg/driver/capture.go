package driver

import (
	"sync"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/waveform"
)

// CaptureStore keeps a channel's most recent waveform and derives the
// statistics accessors from it.
type CaptureStore struct {
	mu   sync.RWMutex
	last *waveform.Waveform
}

// Store replaces the last capture.
func (s *CaptureStore) Store(w *waveform.Waveform) {
	s.mu.Lock()
	s.last = w
	s.mu.Unlock()
}

// LastCapture returns the most recent waveform or ErrNoCaptureYet.
func (s *CaptureStore) LastCapture() (*waveform.Waveform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil, ErrNoCaptureYet
	}
	return s.last, nil
}

func (s *CaptureStore) stat(fn func(*waveform.Waveform) (float64, error)) (float64, error) {
	w, err := s.LastCapture()
	if err != nil {
		return 0, err
	}
	return fn(w)
}

func (s *CaptureStore) Mean() (float64, error) { return s.stat((*waveform.Waveform).Mean) }
func (s *CaptureStore) Min() (float64, error)  { return s.stat((*waveform.Waveform).Min) }
func (s *CaptureStore) Max() (float64, error)  { return s.stat((*waveform.Waveform).Max) }
func (s *CaptureStore) PkPk() (float64, error) { return s.stat((*waveform.Waveform).PkPk) }
