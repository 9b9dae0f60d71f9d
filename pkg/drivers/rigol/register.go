package rigol

import (
	"regexp"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/drivers/scope"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/idn"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/instrument"
)

// ds1000zModel matches the DS1000Z and MSO1000Z series but not the older
// DS1000E/D scopes, which lack windowed waveform reads.
var ds1000zModel = regexp.MustCompile(`^(DS|MSO)1\d{3}Z`)

// Descriptors returns the Rigol drivers. chunk is the waveform read size in
// points; zero uses the instrument maximum.
func Descriptors(chunk int) []driver.Descriptor {
	return []driver.Descriptor{
		{
			Name:       "rigol-ds1000z",
			Categories: []driver.Category{driver.CategoryScope},
			Priority:   10,
			Match:      driver.MatchModelPattern("rigol", ds1000zModel),
			New: func(h *instrument.Handle, id idn.Identity) (driver.Driver, error) {
				s, err := scope.New(h, id, DS1000ZDialect(ChannelCount(id.Model), chunk))
				if err != nil {
					return nil, err
				}
				return s, nil
			},
		},
		{
			Name:       "rigol-dp800",
			Categories: []driver.Category{driver.CategorySupply},
			Priority:   10,
			Match:      driver.MatchModelPrefix("rigol", "DP8"),
			New: func(h *instrument.Handle, id idn.Identity) (driver.Driver, error) {
				s, err := NewSupply(h, id)
				if err != nil {
					return nil, err
				}
				return s, nil
			},
		},
	}
}
