package keysight

import (
	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/drivers/scope"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/idn"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/instrument"
)

// Descriptors returns the Keysight drivers.
func Descriptors() []driver.Descriptor {
	return []driver.Descriptor{
		{
			Name:       "keysight-infiniivision",
			Categories: []driver.Category{driver.CategoryScope},
			Priority:   10,
			Match:      driver.MatchModelPrefix("keysight", "DSO-X", "MSO-X", "DSOX", "MSOX"),
			New: func(h *instrument.Handle, id idn.Identity) (driver.Driver, error) {
				s, err := scope.New(h, id, InfiniiVisionDialect(ChannelCount(id.Model)))
				if err != nil {
					return nil, err
				}
				return s, nil
			},
		},
		{
			Name:       "keysight-truevolt",
			Categories: []driver.Category{driver.CategoryDMM},
			Priority:   10,
			Match:      driver.MatchModelPrefix("keysight", "3446"),
			New: func(h *instrument.Handle, id idn.Identity) (driver.Driver, error) {
				return NewMeter(h, id), nil
			},
		},
	}
}
