package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// StaticScanner returns a fixed list, typically LAN instruments from the
// configuration file and simulator locators.
type StaticScanner []Locator

// NewStaticScanner parses every entry of list.
func NewStaticScanner(list []string) (StaticScanner, error) {
	out := make(StaticScanner, 0, len(list))
	for _, s := range list {
		loc, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, nil
}

func (s StaticScanner) Scan(ctx context.Context) ([]Locator, error) {
	return cloneLocators(s), ctx.Err()
}

// MultiScanner concatenates several scanners in order, dropping duplicate
// locators. A failing scanner is logged and skipped; the scan fails only
// when every scanner fails.
type MultiScanner struct {
	Scanners []Scanner
	Log      logrus.FieldLogger
}

func (m MultiScanner) Scan(ctx context.Context) ([]Locator, error) {
	seen := make(map[string]bool)
	var results []Locator
	var errs []error
	for _, s := range m.Scanners {
		found, err := s.Scan(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if m.Log != nil {
				m.Log.WithError(err).Warn("scanner failed, skipping")
			}
			errs = append(errs, err)
			continue
		}
		for _, loc := range found {
			key := loc.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			results = append(results, loc)
		}
	}
	if len(m.Scanners) > 0 && len(errs) == len(m.Scanners) {
		return nil, fmt.Errorf("all scanners failed: %w", errors.Join(errs...))
	}
	return results, nil
}
