package simulator

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/transport"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/waveform"
)

const (
	rigolScreenPoints = 1200
	rigolMaxByteRead  = 250000
	rigolMaxWordRead  = 125000
	rigolCodesPerDiv  = 25
	rigolYReference   = 127
)

// sourceChannel turns "CHAN2" into 2.
func (in *Instrument) sourceChannel() (int, bool) {
	src := strings.TrimPrefix(in.state[":WAV:SOUR"], "CHAN")
	n, err := strconv.Atoi(src)
	if err != nil || n < 1 || n > in.profile.Channels {
		return 0, false
	}
	return n, true
}

func (in *Instrument) signal(ch int) func(float64) float64 {
	s := in.profile.Signals[ch]
	return waveform.Sine(s.Amplitude, s.Frequency, s.Offset)
}

func (in *Instrument) rigolPoints() int {
	if in.state[":WAV:MODE"] == "RAW" {
		if n, err := strconv.Atoi(in.state[":ACQ:MDEP"]); err == nil && n > 0 {
			return n
		}
	}
	return rigolScreenPoints
}

func (in *Instrument) rigolFormat() (int, waveform.Format) {
	if in.state[":WAV:FORM"] == "WORD" {
		return 1, waveform.FormatWordLE
	}
	return 0, waveform.FormatByte
}

// rigolRecord returns the preamble fields and their decoded form for the
// selected source.
func (in *Instrument) rigolRecord(ch int) (string, waveform.Preamble) {
	points := in.rigolPoints()
	tb := in.float(":TIM:MAIN:SCAL")
	vdiv := in.float(fmt.Sprintf(":CHAN%d:SCAL", ch))
	format, _ := in.rigolFormat()

	xinc := tb * 12 / float64(points)
	xorig := -6*tb + in.float(":TIM:MAIN:OFFS")
	yinc := vdiv / rigolCodesPerDiv
	raw := fmt.Sprintf("%d,0,%d,1,%e,%e,0,%e,0,%d",
		format, points, xinc, xorig, yinc, rigolYReference)
	p, _ := waveform.ParseRigolPreamble(raw)
	return raw, p
}

func rigolPreamble(in *Instrument, _ []string) (string, bool) {
	ch, ok := in.sourceChannel()
	if !ok {
		in.pushError(-221, "Settings conflict")
		return "", false
	}
	raw, _ := in.rigolRecord(ch)
	return raw, true
}

// rigolData answers :WAV:DATA? with the [:WAV:STAR, :WAV:STOP] window of the
// record, one based and inclusive, like the DS1000Z.
func rigolData(in *Instrument, _ []string) (string, bool) {
	ch, ok := in.sourceChannel()
	if !ok {
		in.pushError(-221, "Settings conflict")
		return "", false
	}
	_, p := in.rigolRecord(ch)
	_, format := in.rigolFormat()

	start, err1 := strconv.Atoi(in.state[":WAV:STAR"])
	stop, err2 := strconv.Atoi(in.state[":WAV:STOP"])
	if err1 != nil || err2 != nil || start < 1 || stop < start {
		in.pushError(-222, "Data out of range")
		return "", false
	}
	if stop > p.SampleCount {
		stop = p.SampleCount
	}
	limit := rigolMaxByteRead
	if format.Width == 2 {
		limit = rigolMaxWordRead
	}
	if start > stop || stop-start+1 > limit {
		in.pushError(-222, "Data out of range")
		return "", false
	}

	codes := waveform.Synthesize(p, in.signal(ch))[start-1 : stop]
	in.writeBlock(waveform.Pack(codes, format))
	return "", false
}

// keysightRecord mirrors the InfiniiVision scaling: 8 vertical divisions
// span the full code range, centred on the reference code.
func (in *Instrument) keysightRecord(ch int) (string, waveform.Preamble, waveform.Format) {
	points, err := strconv.Atoi(in.state[":WAV:POIN"])
	if err != nil || points <= 0 {
		points = 1000
	}
	tb := in.float(":TIM:SCAL")
	vdiv := in.float(fmt.Sprintf(":CHAN%d:SCAL", ch))
	offset := in.float(fmt.Sprintf(":CHAN%d:OFFS", ch))

	format, yref, span := 0, 128.0, 256.0
	f := waveform.FormatByte
	if in.state[":WAV:FORM"] == "WORD" {
		format, yref, span = 1, 32768, 65536
		f = waveform.FormatWordBE
		if in.state[":WAV:BYT"] == "LSBF" {
			f = waveform.FormatWordLE
		}
	}
	xinc := tb * 10 / float64(points)
	xorig := -5*tb + in.float(":TIM:POS")
	yinc := vdiv * 8 / span
	raw := fmt.Sprintf("%d,0,%d,1,%E,%E,0,%E,%E,%d",
		format, points, xinc, xorig, yinc, offset, int(math.Round(yref)))
	p, _ := waveform.ParseKeysightPreamble(raw)
	return raw, p, f
}

func keysightPreamble(in *Instrument, _ []string) (string, bool) {
	ch, ok := in.sourceChannel()
	if !ok {
		in.pushError(-221, "Settings conflict")
		return "", false
	}
	raw, _, _ := in.keysightRecord(ch)
	return raw, true
}

func keysightData(in *Instrument, _ []string) (string, bool) {
	ch, ok := in.sourceChannel()
	if !ok {
		in.pushError(-221, "Settings conflict")
		return "", false
	}
	_, p, f := in.keysightRecord(ch)
	in.writeBlock(waveform.Pack(waveform.Synthesize(p, in.signal(ch)), f))
	return "", false
}

// writeBlock queues a definite length block followed by the terminator.
func (in *Instrument) writeBlock(data []byte) {
	in.out.Write(transport.EncodeBlock(data))
	in.out.WriteString("\n")
}
