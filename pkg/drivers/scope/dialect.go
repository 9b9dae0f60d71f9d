// Package scope implements the oscilloscope capabilities once, driven by a
// per-family Dialect: the command table, the discrete setting tables and
// the waveform transfer format.
package scope

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/ranges"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/scpi"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/waveform"
)

// Command paths a dialect may register. A path missing from the table makes
// the matching operation report driver.ErrUnsupported.
const (
	PathTimebase      = "horizontal.scale"
	PathTimebaseQuery = "horizontal.scale.query"

	PathChannelScale         = "channel.scale"
	PathChannelScaleQuery    = "channel.scale.query"
	PathChannelCoupling      = "channel.coupling"
	PathChannelCouplingQuery = "channel.coupling.query"

	PathTriggerSource        = "trigger.edge.source"
	PathTriggerSourceQuery   = "trigger.edge.source.query"
	PathTriggerLevel         = "trigger.edge.level"
	PathTriggerLevelQuery    = "trigger.edge.level.query"
	PathTriggerSlope         = "trigger.edge.slope"
	PathTriggerSlopeQuery    = "trigger.edge.slope.query"
	PathTriggerCoupling      = "trigger.edge.coupling"
	PathTriggerCouplingQuery = "trigger.edge.coupling.query"

	PathDisplayType        = "display.type"
	PathDisplayPersistence = "display.persistence"

	PathWaveformSource    = "waveform.source"
	PathWaveformMode      = "waveform.mode"
	PathWaveformFormat    = "waveform.format"
	PathWaveformByteOrder = "waveform.byteorder"
	PathWaveformUnsigned  = "waveform.unsigned"
	PathWaveformPoints    = "waveform.points"
	PathWaveformStart     = "waveform.start"
	PathWaveformStop      = "waveform.stop"
	PathWaveformPreamble  = "waveform.preamble"
	PathWaveformData      = "waveform.data"
)

// Setting is one command sent before every transfer, e.g. selecting the
// byte format.
type Setting struct {
	Path  string
	Value any
}

// Dialect describes one scope family.
type Dialect struct {
	Family   string
	Commands *scpi.Tree

	Timebase    ranges.Table
	VoltsPerDiv ranges.Table
	Channels    int

	// Transfer lists the settings applied after the source is selected.
	Transfer      []Setting
	ParsePreamble func(raw string) (waveform.Preamble, error)
	Format        waveform.Format

	// ChunkSize, when positive, reads the record in windows of that many
	// points using the start/stop commands.
	ChunkSize int
}

// Validate checks that the dialect can drive a capture.
func (d Dialect) Validate() error {
	if d.Commands == nil {
		return fmt.Errorf("scope dialect %s: no command table", d.Family)
	}
	if d.Channels <= 0 {
		return fmt.Errorf("scope dialect %s: no channels", d.Family)
	}
	if d.Timebase.Len() == 0 || d.VoltsPerDiv.Len() == 0 {
		return fmt.Errorf("scope dialect %s: empty range table", d.Family)
	}
	if d.ParsePreamble == nil {
		return fmt.Errorf("scope dialect %s: no preamble parser", d.Family)
	}
	if d.ChunkSize > 0 && !(d.Commands.Has(PathWaveformStart) && d.Commands.Has(PathWaveformStop)) {
		return fmt.Errorf("scope dialect %s: chunked transfer needs start and stop commands", d.Family)
	}
	return nil
}

// ChannelMnemonic is the program data naming an input in source commands.
func ChannelMnemonic(index int) string {
	return fmt.Sprintf("CHANnel%d", index)
}

// ChannelValues lists the ChannelMnemonic values for 1..n, for registering
// source commands.
func ChannelValues(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = ChannelMnemonic(i + 1)
	}
	return out
}
