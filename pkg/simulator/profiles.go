package simulator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Dialect selects the waveform and measurement behaviour of a profile.
type Dialect int

const (
	DialectRigolScope Dialect = iota
	DialectRigolSupply
	DialectKeysightScope
	DialectKeysightMeter
	DialectPlain
)

// Signal is the analogue input fed to a simulated scope channel.
type Signal struct {
	Amplitude float64 // volts
	Frequency float64 // hertz
	Offset    float64 // volts
}

// Profile describes one simulated model.
type Profile struct {
	Model    string
	IDN      string
	Dialect  Dialect
	Channels int

	// Defaults lists every settable header (normalized, e.g. ":CHAN1:SCAL")
	// with its power-on value. Unknown headers raise -113.
	Defaults map[string]string

	// Addressed headers take an output selector as first parameter.
	Addressed map[string]bool

	Signals  map[int]Signal
	Readings map[string]string
}

type handler func(in *Instrument, query bool, params []string) (string, bool)

// Profiles lists the built-in simulated models.
var Profiles = map[string]Profile{
	"DS1054Z":   rigolScope("DS1054Z", "DS1ZA000000001", 4),
	"DS1104Z":   rigolScope("DS1104Z", "DS1ZB000000002", 4),
	"DP832":     rigolSupply(),
	"DSOX2024A": keysightScope(),
	"34461A":    keysightMeter(),
}

// Lookup finds a profile by model, ignoring case and spaces.
func Lookup(model string) (Profile, bool) {
	norm := strings.ToUpper(strings.ReplaceAll(model, " ", ""))
	norm = strings.ReplaceAll(norm, "-", "")
	p, ok := Profiles[norm]
	return p, ok
}

// Models lists the profile names in sorted order.
func Models() []string {
	out := make([]string, 0, len(Profiles))
	for m := range Profiles {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func defaultSignals(channels int) map[int]Signal {
	sig := make(map[int]Signal, channels)
	for n := 1; n <= channels; n++ {
		sig[n] = Signal{Amplitude: 1 / float64(n), Frequency: 1000 * float64(n)}
	}
	return sig
}

func rigolScope(model, serial string, channels int) Profile {
	d := map[string]string{
		":TIM:MAIN:SCAL":  "1.000000e-03",
		":TIM:MAIN:OFFS":  "0.000000e+00",
		":TRIG:MODE":      "EDGE",
		":TRIG:COUP":      "DC",
		":TRIG:SWE":       "AUTO",
		":TRIG:STAT":      "AUTO",
		":TRIG:EDG:SOUR":  "CHAN1",
		":TRIG:EDG:SLOP":  "POS",
		":TRIG:EDG:LEV":   "0.000000e+00",
		":DISP:TYPE":      "VECT",
		":DISP:GRAD:TIME": "MIN",
		":WAV:SOUR":       "CHAN1",
		":WAV:MODE":       "NORM",
		":WAV:FORM":       "BYTE",
		":WAV:STAR":       "1",
		":WAV:STOP":       "1200",
		":ACQ:MDEP":       "12000",
	}
	for n := 1; n <= channels; n++ {
		d[fmt.Sprintf(":CHAN%d:SCAL", n)] = "1.000000e+00"
		d[fmt.Sprintf(":CHAN%d:COUP", n)] = "DC"
		d[fmt.Sprintf(":CHAN%d:OFFS", n)] = "0.000000e+00"
		d[fmt.Sprintf(":CHAN%d:DISP", n)] = "1"
		d[fmt.Sprintf(":CHAN%d:PROB", n)] = "1"
	}
	return Profile{
		Model:    model,
		IDN:      fmt.Sprintf("RIGOL TECHNOLOGIES,%s,%s,00.04.04.SP4", model, serial),
		Dialect:  DialectRigolScope,
		Channels: channels,
		Defaults: d,
		Signals:  defaultSignals(channels),
	}
}

func rigolSupply() Profile {
	d := map[string]string{}
	for n := 1; n <= 3; n++ {
		d[fmt.Sprintf(":SOUR%d:VOLT", n)] = "0.000"
		d[fmt.Sprintf(":SOUR%d:CURR", n)] = "1.000"
		d[fmt.Sprintf(":OUTP:STAT CH%d", n)] = "OFF"
	}
	return Profile{
		Model:     "DP832",
		IDN:       "RIGOL TECHNOLOGIES,DP832,DP8C000000003,00.01.14",
		Dialect:   DialectRigolSupply,
		Channels:  3,
		Defaults:  d,
		Addressed: map[string]bool{":OUTP:STAT": true, ":OUTP": true},
	}
}

func keysightScope() Profile {
	d := map[string]string{
		":TIM:SCAL":       "+1.000E-03",
		":TIM:POS":        "+0.0E+00",
		":TRIG:EDGE:SOUR": "CHAN1",
		":TRIG:EDGE:SLOP": "POS",
		":TRIG:EDGE:LEV":  "+0.0E+00",
		":TRIG:EDGE:COUP": "DC",
		":DISP:PERS":      "MIN",
		":WAV:SOUR":       "CHAN1",
		":WAV:FORM":       "BYTE",
		":WAV:POIN":       "1000",
		":WAV:BYT":        "MSBF",
		":WAV:UNS":        "1",
	}
	for n := 1; n <= 4; n++ {
		d[fmt.Sprintf(":CHAN%d:SCAL", n)] = "+1.00E+00"
		d[fmt.Sprintf(":CHAN%d:COUP", n)] = "DC"
		d[fmt.Sprintf(":CHAN%d:OFFS", n)] = "+0.0E+00"
		d[fmt.Sprintf(":CHAN%d:DISP", n)] = "1"
	}
	return Profile{
		Model:    "DSO-X 2024A",
		IDN:      "KEYSIGHT TECHNOLOGIES,DSO-X 2024A,MY12345678,02.50.2019022736",
		Dialect:  DialectKeysightScope,
		Channels: 4,
		Defaults: d,
		Signals:  defaultSignals(4),
	}
}

func keysightMeter() Profile {
	return Profile{
		Model:    "34461A",
		IDN:      "Keysight Technologies,34461A,MY57200000,A.02.17-02.40-02.17-00.52-03-01",
		Dialect:  DialectKeysightMeter,
		Defaults: map[string]string{},
		Readings: map[string]string{
			":MEAS:VOLT:DC": "+1.23456789E+00",
			":MEAS:VOLT:AC": "+7.07106781E-01",
			":MEAS:CURR:DC": "+1.00000000E-03",
			":MEAS:CURR:AC": "+0.00000000E+00",
			":MEAS:RES":     "+1.00000000E+03",
			":MEAS:FREQ":    "+1.00000000E+03",
		},
	}
}

// handlers returns the special-cased headers for the profile's dialect.
func (p Profile) handlers() map[string]handler {
	h := map[string]handler{
		":SYST:ERR": func(in *Instrument, query bool, _ []string) (string, bool) {
			return in.nextError(), query
		},
	}
	switch p.Dialect {
	case DialectRigolScope:
		h[":WAV:PRE"] = queryOnly(rigolPreamble)
		h[":WAV:DATA"] = queryOnly(rigolData)
	case DialectKeysightScope:
		h[":WAV:PRE"] = queryOnly(keysightPreamble)
		h[":WAV:DATA"] = queryOnly(keysightData)
	case DialectRigolSupply:
		h[":MEAS:VOLT"] = queryOnly(supplyMeasure("VOLT"))
		h[":MEAS:CURR"] = queryOnly(supplyMeasure("CURR"))
	case DialectKeysightMeter:
		for key, value := range p.Readings {
			value := value
			h[key] = queryOnly(func(*Instrument, []string) (string, bool) { return value, true })
		}
	}
	return h
}

func queryOnly(fn func(in *Instrument, params []string) (string, bool)) handler {
	return func(in *Instrument, query bool, params []string) (string, bool) {
		if !query {
			in.pushError(-113, "Undefined header")
			return "", false
		}
		return fn(in, params)
	}
}

// supplyMeasure reports the programmed voltage of an enabled output. No load
// is attached, so current always reads zero.
func supplyMeasure(what string) func(*Instrument, []string) (string, bool) {
	return func(in *Instrument, params []string) (string, bool) {
		ch := "CH1"
		if len(params) > 0 {
			ch = strings.ToUpper(params[0])
		}
		n, err := strconv.Atoi(strings.TrimPrefix(ch, "CH"))
		if err != nil || n < 1 || n > in.profile.Channels {
			in.pushError(-224, "Illegal parameter value")
			return "", false
		}
		if what == "CURR" || in.state[":OUTP:STAT "+ch] != "ON" {
			return "0.000", true
		}
		return in.state[fmt.Sprintf(":SOUR%d:VOLT", n)], true
	}
}

func (in *Instrument) float(key string) float64 {
	v, err := strconv.ParseFloat(in.state[key], 64)
	if err != nil {
		return 0
	}
	return v
}
