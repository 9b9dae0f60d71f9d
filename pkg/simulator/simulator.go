package simulator

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/scpi"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/transport"
)

// CommandHook lets tests intercept a program message. Returning handled
// true suppresses the built-in behaviour; resp, when non-nil, is queued as
// the answer.
type CommandHook func(msg string) (resp []byte, handled bool)

// Instrument is an in-memory SCPI instrument. It implements transport.Conn
// so it can stand in for any real session.
type Instrument struct {
	profile Profile

	// OnCommand is consulted before the built-in command handling.
	OnCommand CommandHook

	mu       sync.Mutex
	state    map[string]string
	errors   []string
	commands []string
	out      bytes.Buffer
	ready    chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

// New builds an instrument behaving like profile.
func New(profile Profile) *Instrument {
	in := &Instrument{
		profile: profile,
		ready:   make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
	in.reset()
	return in
}

// Open builds the instrument for a model name from Profiles, ignoring case.
func Open(model string) (*Instrument, error) {
	p, ok := Lookup(model)
	if !ok {
		return nil, fmt.Errorf("simulator: unknown model %q", model)
	}
	return New(p), nil
}

// Conn adapts Open to instrument.SimulatorFactory.
func Conn(model string) (transport.Conn, error) {
	return Open(model)
}

func (in *Instrument) reset() {
	in.state = make(map[string]string, len(in.profile.Defaults))
	for k, v := range in.profile.Defaults {
		in.state[k] = v
	}
	in.errors = nil
}

// Profile returns the behaviour the instrument was built with.
func (in *Instrument) Profile() Profile { return in.profile }

// Commands returns every program message received, in order.
func (in *Instrument) Commands() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]string(nil), in.commands...)
}

// State returns the stored value for a normalized header such as
// ":CHAN1:SCAL".
func (in *Instrument) State(key string) (string, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	v, ok := in.state[key]
	return v, ok
}

// SetState overrides a stored value.
func (in *Instrument) SetState(key, value string) {
	in.mu.Lock()
	in.state[key] = value
	in.mu.Unlock()
}

// Errors returns the pending error queue.
func (in *Instrument) Errors() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]string(nil), in.errors...)
}

// Write accepts one or more newline terminated program messages.
func (in *Instrument) Write(ctx context.Context, p []byte) error {
	select {
	case <-in.closed:
		return transport.ErrClosed
	default:
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	for _, line := range strings.Split(string(p), "\n") {
		for _, msg := range strings.Split(line, ";") {
			msg = strings.TrimSpace(msg)
			if msg == "" {
				continue
			}
			in.commands = append(in.commands, msg)
			in.handle(msg)
		}
	}
	if in.out.Len() > 0 {
		select {
		case in.ready <- struct{}{}:
		default:
		}
	}
	return nil
}

// Read returns queued response bytes, waiting until some are available.
// A silent instrument blocks until the context ends, like real hardware.
func (in *Instrument) Read(ctx context.Context, p []byte) (int, error) {
	for {
		in.mu.Lock()
		if in.out.Len() > 0 {
			n, _ := in.out.Read(p)
			in.mu.Unlock()
			return n, nil
		}
		in.mu.Unlock()

		select {
		case <-in.ready:
		case <-in.closed:
			return 0, transport.ErrClosed
		case <-ctx.Done():
			return 0, transport.ErrTimeout
		}
	}
}

// Close ends the session.
func (in *Instrument) Close() error {
	in.closeOnce.Do(func() { close(in.closed) })
	return nil
}

// handle executes one program message. Callers hold in.mu.
func (in *Instrument) handle(msg string) {
	if in.OnCommand != nil {
		if resp, handled := in.OnCommand(msg); handled {
			in.out.Write(resp)
			return
		}
	}

	cmd, err := scpi.Parse(msg)
	if err != nil {
		in.pushError(-102, "Syntax error")
		return
	}
	key := normalizeHeader(cmd)
	params := make([]string, len(cmd.Params))
	for i, p := range cmd.Params {
		params[i] = p.Value
	}

	if cmd.Header.Common != "" {
		in.common(key, cmd.Query)
		return
	}
	if fn, ok := in.profile.handlers()[key]; ok {
		if resp, ok := fn(in, cmd.Query, params); ok {
			in.reply(resp)
		}
		return
	}

	// Channel addressed commands: ":OUTP:STAT CH1,ON" and ":OUTP:STAT? CH1".
	if len(params) > 0 && in.profile.Addressed[key] {
		key += " " + strings.ToUpper(params[0])
		params = params[1:]
	}

	if cmd.Query {
		v, ok := in.state[key]
		if !ok {
			in.pushError(-113, "Undefined header")
			return
		}
		in.reply(v)
		return
	}

	if _, ok := in.state[key]; !ok {
		in.pushError(-113, "Undefined header")
		return
	}
	if len(params) != 1 {
		in.pushError(-109, "Missing parameter")
		return
	}
	in.state[key] = shortValue(params[0])
}

func (in *Instrument) common(key string, query bool) {
	switch key {
	case "*IDN":
		in.reply(in.profile.IDN)
	case "*RST":
		in.reset()
	case "*CLS":
		in.errors = nil
	case "*OPC":
		if query {
			in.reply("1")
		}
	default:
		in.pushError(-113, "Undefined header")
	}
}

func (in *Instrument) reply(s string) {
	in.out.WriteString(s)
	in.out.WriteString("\n")
}

func (in *Instrument) pushError(code int, text string) {
	in.errors = append(in.errors, fmt.Sprintf("%d,\"%s\"", code, text))
}

// nextError pops the error queue; an empty queue reports 0,"No error".
func (in *Instrument) nextError() string {
	if len(in.errors) == 0 {
		return `0,"No error"`
	}
	e := in.errors[0]
	in.errors = in.errors[1:]
	return e
}

// longForms maps full upper-case mnemonics to their short forms, for
// clients that send long headers in a single case.
var longForms = map[string]string{
	"CHANNEL": "CHAN", "TIMEBASE": "TIM", "SCALE": "SCAL", "COUPLING": "COUP",
	"TRIGGER": "TRIG", "SOURCE": "SOUR", "SLOPE": "SLOP", "LEVEL": "LEV",
	"DISPLAY": "DISP", "GRADING": "GRAD", "PERSISTENCE": "PERS",
	"WAVEFORM": "WAV", "FORMAT": "FORM", "START": "STAR", "PREAMBLE": "PRE",
	"POINTS": "POIN", "BYTEORDER": "BYT", "UNSIGNED": "UNS", "OFFSET": "OFFS",
	"OUTPUT": "OUTP", "STATE": "STAT", "VOLTAGE": "VOLT", "CURRENT": "CURR",
	"MEASURE": "MEAS", "RESISTANCE": "RES", "FREQUENCY": "FREQ", "SYSTEM": "SYST",
	"ERROR": "ERR", "ACQUIRE": "ACQ", "MDEPTH": "MDEP",
}

// normalizeHeader renders a header in upper-case short form, e.g.
// ":CHANnel1:SCALe?" becomes ":CHAN1:SCAL". The query marker is dropped.
func normalizeHeader(cmd *scpi.Command) string {
	if cmd.Header.Common != "" {
		return "*" + strings.ToUpper(cmd.Header.Common)
	}
	var b strings.Builder
	for _, node := range cmd.Header.Nodes {
		b.WriteString(":")
		b.WriteString(shortMnemonic(node.Mnemonic))
		if node.Suffix != nil {
			b.WriteString(node.Suffix.Number)
		}
	}
	return b.String()
}

func shortMnemonic(m string) string {
	upper := strings.ToUpper(m)
	if upper == m || strings.ToLower(m) == m {
		if s, ok := longForms[upper]; ok {
			return s
		}
		return upper
	}
	return scpi.ShortForm(m)
}

// shortValue stores enumerated values in their short form ("POSitive" is
// kept as "POS") and leaves numbers alone.
func shortValue(v string) string {
	hasUpper := strings.ToLower(v) != v
	hasLower := strings.ToUpper(v) != v
	if hasUpper && hasLower {
		return scpi.ShortForm(v)
	}
	return strings.ToUpper(v)
}
