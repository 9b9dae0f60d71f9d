package resource

import (
	"context"
	"fmt"
	"path/filepath"

	"go.bug.st/serial"
)

// DefaultSerialPatterns matches USB serial adapters and CDC-ACM instruments.
var DefaultSerialPatterns = []string{"/dev/ttyUSB*", "/dev/ttyACM*", "COM*"}

// SerialScanner lists serial ports whose names match one of Patterns.
// Ports are not probed; identification happens when a driver is dispatched.
type SerialScanner struct {
	Patterns []string

	// ports overrides the OS enumeration in tests.
	ports func() ([]string, error)
}

func (s SerialScanner) Scan(ctx context.Context) ([]Locator, error) {
	list := serial.GetPortsList
	if s.ports != nil {
		list = s.ports
	}
	names, err := list()
	if err != nil {
		return nil, fmt.Errorf("serial scan: %w", err)
	}

	patterns := s.Patterns
	if len(patterns) == 0 {
		patterns = DefaultSerialPatterns
	}

	var results []Locator
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if matchAny(patterns, name) {
			results = append(results, Locator{Kind: KindSerial, Path: name, Interface: -1})
		}
	}
	return results, nil
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}
