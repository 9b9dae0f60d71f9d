package driver

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/instrument"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/resource"
)

// Discoverer finds instruments of a category among the reachable locators.
// Locators that cannot be opened or identified are logged and skipped.
type Discoverer struct {
	Registry  *Registry
	Resources resource.Lister
	Opener    instrument.Opener
	Log       logrus.FieldLogger

	// Refresh forces a rescan instead of using cached locators.
	Refresh bool
}

// Discover returns the first instrument offering category, in locator
// order. Exhausting the list yields ErrNotFound.
func (d *Discoverer) Discover(ctx context.Context, category Category) (Driver, error) {
	var found Driver
	err := d.walk(ctx, category, func(drv Driver) bool {
		found = drv
		return false
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%w: category %s", ErrNotFound, category)
	}
	return found, nil
}

// DiscoverAll returns every instrument offering category. The caller owns
// and must close each driver.
func (d *Discoverer) DiscoverAll(ctx context.Context, category Category) ([]Driver, error) {
	var all []Driver
	err := d.walk(ctx, category, func(drv Driver) bool {
		all = append(all, drv)
		return true
	})
	if err != nil {
		for _, drv := range all {
			drv.Close()
		}
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: category %s", ErrNotFound, category)
	}
	return all, nil
}

// walk visits matching drivers until visit returns false.
func (d *Discoverer) walk(ctx context.Context, category Category, visit func(Driver) bool) error {
	log := d.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	locators, err := d.Resources.List(ctx, d.Refresh)
	if err != nil {
		return fmt.Errorf("list resources: %w", err)
	}

	for _, loc := range locators {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry := log.WithField("locator", loc.String())

		h, err := d.Opener.Open(ctx, loc)
		if err != nil {
			entry.WithError(err).Warn("skipping unreachable instrument")
			continue
		}

		id, desc, err := d.Registry.Resolve(ctx, h)
		if err != nil {
			h.Close()
			var unidentified *UnidentifiedDeviceError
			if errors.As(err, &unidentified) {
				entry.WithField("idn", id.Raw).Info("skipping unidentified instrument")
			} else {
				entry.WithError(err).Warn("skipping instrument that did not identify")
			}
			continue
		}
		if !HasCategory(desc.Categories, category) {
			entry.WithField("driver", desc.Name).Debug("category mismatch")
			h.Close()
			continue
		}

		drv, err := d.Registry.construct(desc, h, id)
		if err != nil {
			entry.WithError(err).Warn("driver construction failed")
			h.Close()
			continue
		}
		if !visit(drv) {
			return nil
		}
	}
	return nil
}
