// Package rigol drives Rigol DS1000Z oscilloscopes and DP800 power
// supplies.
package rigol

import (
	"strings"
	"unicode"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/drivers/scope"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/ranges"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/scpi"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/waveform"
)

// MaxByteChunk is the most points a DS1000Z returns per :WAV:DATA? in BYTE
// format.
const MaxByteChunk = 250000

var (
	// DS1000ZTimebase is the 5 ns to 50 s/div front panel ladder.
	DS1000ZTimebase = ranges.Sequence125(-9, 50).Within(5e-9, 50)

	// DS1000ZVoltsPerDiv covers 1 mV to 10 V/div at 1x probe.
	DS1000ZVoltsPerDiv = ranges.Sequence125(-3, 10)
)

// DS1000ZCommands builds the command table for a model with the given
// number of inputs.
func DS1000ZCommands(channels int) *scpi.Tree {
	t := scpi.NewTree()
	sources := scope.ChannelValues(channels)

	t.MustRegister(scope.PathTimebase, ":TIMebase:MAIN:SCALe {}")
	t.MustRegister(scope.PathTimebaseQuery, ":TIMebase:MAIN:SCALe?")
	t.MustRegister("horizontal.offset", ":TIMebase:MAIN:OFFSet {}")

	t.MustRegister(scope.PathChannelScale, ":CHANnel{}:SCALe {}")
	t.MustRegister(scope.PathChannelScaleQuery, ":CHANnel{}:SCALe?")
	t.MustRegister(scope.PathChannelCoupling, ":CHANnel{}:COUPling {}", "AC", "DC", "GND")
	t.MustRegister(scope.PathChannelCouplingQuery, ":CHANnel{}:COUPling?")
	t.MustRegister("channel.display", ":CHANnel{}:DISPlay {}", "ON", "OFF")
	t.MustRegister("channel.offset", ":CHANnel{}:OFFSet {}")

	t.MustRegister(scope.PathTriggerSource, ":TRIGger:EDGe:SOURce {}", sources...)
	t.MustRegister(scope.PathTriggerSourceQuery, ":TRIGger:EDGe:SOURce?")
	t.MustRegister(scope.PathTriggerSlope, ":TRIGger:EDGe:SLOPe {}", "POSitive", "NEGative", "RFALl")
	t.MustRegister(scope.PathTriggerSlopeQuery, ":TRIGger:EDGe:SLOPe?")
	t.MustRegister(scope.PathTriggerLevel, ":TRIGger:EDGe:LEVel {}")
	t.MustRegister(scope.PathTriggerLevelQuery, ":TRIGger:EDGe:LEVel?")
	t.MustRegister(scope.PathTriggerCoupling, ":TRIGger:COUPling {}", "AC", "DC", "LFReject", "HFReject")
	t.MustRegister(scope.PathTriggerCouplingQuery, ":TRIGger:COUPling?")
	t.MustRegister("trigger.sweep", ":TRIGger:SWEep {}", "AUTO", "NORMal", "SINGle")
	t.MustRegister("trigger.status", ":TRIGger:STATus?")

	t.MustRegister(scope.PathDisplayType, ":DISPlay:TYPE {}", "VECTors", "DOTS")
	t.MustRegister(scope.PathDisplayPersistence, ":DISPlay:GRADing:TIME {}",
		"MINimum", "0.1", "0.2", "0.5", "1", "5", "10", "INFinite")

	t.MustRegister(scope.PathWaveformSource, ":WAVeform:SOURce {}", sources...)
	t.MustRegister(scope.PathWaveformMode, ":WAVeform:MODE {}", "NORMal", "MAXimum", "RAW")
	t.MustRegister(scope.PathWaveformFormat, ":WAVeform:FORMat {}", "WORD", "BYTE", "ASCii")
	t.MustRegister(scope.PathWaveformStart, ":WAVeform:STARt {}")
	t.MustRegister(scope.PathWaveformStop, ":WAVeform:STOP {}")
	t.MustRegister(scope.PathWaveformPreamble, ":WAVeform:PREamble?")
	t.MustRegister(scope.PathWaveformData, ":WAVeform:DATA?")

	t.MustRegister("system.error", ":SYSTem:ERRor?")
	return t
}

// DS1000ZDialect describes a DS1000Z with the given number of inputs.
// Screen records are read in byte format, chunked to chunk points.
func DS1000ZDialect(channels, chunk int) scope.Dialect {
	if chunk <= 0 || chunk > MaxByteChunk {
		chunk = MaxByteChunk
	}
	return scope.Dialect{
		Family:      "DS1000Z",
		Commands:    DS1000ZCommands(channels),
		Timebase:    DS1000ZTimebase,
		VoltsPerDiv: DS1000ZVoltsPerDiv,
		Channels:    channels,
		Transfer: []scope.Setting{
			{Path: scope.PathWaveformMode, Value: "NORMal"},
			{Path: scope.PathWaveformFormat, Value: "BYTE"},
		},
		ParsePreamble: waveform.ParseRigolPreamble,
		Format:        waveform.FormatByte,
		ChunkSize:     chunk,
	}
}

// ChannelCount reads the input count from a DS1000Z model name: the digit
// before the Z, so DS1054Z has 4 and DS1202Z-E has 2.
func ChannelCount(model string) int {
	m := strings.ToUpper(model)
	i := strings.IndexByte(m, 'Z')
	if i > 0 && unicode.IsDigit(rune(m[i-1])) {
		if n := int(m[i-1] - '0'); n == 2 || n == 4 {
			return n
		}
	}
	return 4
}
