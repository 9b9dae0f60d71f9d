// Package keysight drives InfiniiVision oscilloscopes and Truevolt
// digital multimeters.
package keysight

import (
	"github.com/OpenTraceLab/OpenTraceBench/pkg/drivers/scope"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/ranges"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/scpi"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/waveform"
)

var (
	// InfiniiVisionTimebase is the 2000/3000 X-Series 5 ns to 50 s/div ladder.
	InfiniiVisionTimebase = ranges.Sequence125(-9, 50).Within(5e-9, 50)

	// InfiniiVisionVoltsPerDiv covers 1 mV to 5 V/div.
	InfiniiVisionVoltsPerDiv = ranges.Sequence125(-3, 5)
)

// InfiniiVisionCommands is the X-Series command table. There is no vector
// or dots display switch on these models, so display.type is absent.
func InfiniiVisionCommands(channels int) *scpi.Tree {
	t := scpi.NewTree()
	sources := scope.ChannelValues(channels)

	t.MustRegister(scope.PathTimebase, ":TIMebase:SCALe {}")
	t.MustRegister(scope.PathTimebaseQuery, ":TIMebase:SCALe?")
	t.MustRegister("horizontal.position", ":TIMebase:POSition {}")

	t.MustRegister(scope.PathChannelScale, ":CHANnel{}:SCALe {}")
	t.MustRegister(scope.PathChannelScaleQuery, ":CHANnel{}:SCALe?")
	t.MustRegister(scope.PathChannelCoupling, ":CHANnel{}:COUPling {}", "AC", "DC")
	t.MustRegister(scope.PathChannelCouplingQuery, ":CHANnel{}:COUPling?")
	t.MustRegister("channel.offset", ":CHANnel{}:OFFSet {}")

	t.MustRegister(scope.PathTriggerSource, ":TRIGger:EDGE:SOURce {}", sources...)
	t.MustRegister(scope.PathTriggerSourceQuery, ":TRIGger:EDGE:SOURce?")
	t.MustRegister(scope.PathTriggerSlope, ":TRIGger:EDGE:SLOPe {}", "POSitive", "NEGative", "EITHer", "ALTernate")
	t.MustRegister(scope.PathTriggerSlopeQuery, ":TRIGger:EDGE:SLOPe?")
	t.MustRegister(scope.PathTriggerLevel, ":TRIGger:EDGE:LEVel {}")
	t.MustRegister(scope.PathTriggerLevelQuery, ":TRIGger:EDGE:LEVel?")
	t.MustRegister(scope.PathTriggerCoupling, ":TRIGger:EDGE:COUPling {}", "AC", "DC", "LFReject")
	t.MustRegister(scope.PathTriggerCouplingQuery, ":TRIGger:EDGE:COUPling?")

	t.MustRegister(scope.PathDisplayPersistence, ":DISPlay:PERSistence {}", "MINimum", "INFinite")

	t.MustRegister(scope.PathWaveformSource, ":WAVeform:SOURce {}", sources...)
	t.MustRegister(scope.PathWaveformFormat, ":WAVeform:FORMat {}", "WORD", "BYTE", "ASCii")
	t.MustRegister(scope.PathWaveformByteOrder, ":WAVeform:BYTeorder {}", "MSBFirst", "LSBFirst")
	t.MustRegister(scope.PathWaveformUnsigned, ":WAVeform:UNSigned {}", "ON", "OFF")
	t.MustRegister(scope.PathWaveformPoints, ":WAVeform:POINts {}")
	t.MustRegister(scope.PathWaveformPreamble, ":WAVeform:PREamble?")
	t.MustRegister(scope.PathWaveformData, ":WAVeform:DATA?")

	t.MustRegister("system.error", ":SYSTem:ERRor?")
	return t
}

// InfiniiVisionDialect reads records as unsigned 16-bit words, MSB first,
// in a single block.
func InfiniiVisionDialect(channels int) scope.Dialect {
	return scope.Dialect{
		Family:      "InfiniiVision",
		Commands:    InfiniiVisionCommands(channels),
		Timebase:    InfiniiVisionTimebase,
		VoltsPerDiv: InfiniiVisionVoltsPerDiv,
		Channels:    channels,
		Transfer: []scope.Setting{
			{Path: scope.PathWaveformFormat, Value: "WORD"},
			{Path: scope.PathWaveformByteOrder, Value: "MSBFirst"},
			{Path: scope.PathWaveformUnsigned, Value: true},
		},
		ParsePreamble: waveform.ParseKeysightPreamble,
		Format:        waveform.FormatWordBE,
	}
}

// ChannelCount reads the analog input count from the last digit before the
// model suffix letter, e.g. DSO-X 2024A has 4.
func ChannelCount(model string) int {
	for i := len(model) - 1; i > 0; i-- {
		c := model[i]
		if c >= '0' && c <= '9' {
			if n := int(c - '0'); n == 2 || n == 4 {
				return n
			}
			break
		}
	}
	return 4
}
