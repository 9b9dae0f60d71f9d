package resource

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the transport family of a locator.
type Kind string

const (
	KindUSB    Kind = "USB"
	KindTCPIP  Kind = "TCPIP"
	KindSerial Kind = "ASRL"
	KindSim    Kind = "SIM"
)

// DefaultVXIDevice is the device name assumed for TCPIP INSTR locators.
const DefaultVXIDevice = "inst0"

// ErrInvalidLocator is wrapped by every Parse failure.
var ErrInvalidLocator = errors.New("invalid resource locator")

// Locator is a parsed, immutable connection address. Only the fields
// relevant to Kind are set.
type Locator struct {
	Kind  Kind
	Board int

	// USB
	VendorID  uint16
	ProductID uint16
	Serial    string
	Interface int // -1 when not given

	// TCPIP
	Host   string
	Port   int    // raw socket port, 0 for INSTR locators
	Device string // VXI-11 device name for INSTR locators

	// ASRL
	Path string // device path, empty when only a board number was given

	// SIM
	Model string
}

// Parse parses a VISA-style resource string. Accepted forms:
//
//	USB[n]::0xVVVV::0xPPPP::SERIAL[::intf]::INSTR
//	TCPIP[n]::host::port::SOCKET
//	TCPIP[n]::host[::device]::INSTR
//	ASRL[n]::INSTR, ASRL/dev/ttyUSB0::INSTR, ASRL[n]::/dev/ttyUSB0::INSTR
//	SIM::MODEL::INSTR
func Parse(s string) (Locator, error) {
	ast, err := locatorParser.ParseString("", strings.TrimSpace(s))
	if err != nil {
		return Locator{}, fmt.Errorf("%w %q: %v", ErrInvalidLocator, s, err)
	}

	kind, board, err := splitKind(ast.Kind)
	if err != nil {
		return Locator{}, fmt.Errorf("%w %q: %v", ErrInvalidLocator, s, err)
	}

	last := ast.Parts[len(ast.Parts)-1]
	if last.Class == "" {
		return Locator{}, fmt.Errorf("%w %q: missing resource class", ErrInvalidLocator, s)
	}
	class := strings.ToUpper(last.Class)
	values := make([]string, 0, len(ast.Parts)-1)
	for _, p := range ast.Parts[:len(ast.Parts)-1] {
		if p.Class != "" {
			return Locator{}, fmt.Errorf("%w %q: unexpected %s", ErrInvalidLocator, s, p.Class)
		}
		values = append(values, p.Value)
	}

	loc := Locator{Kind: kind, Board: board, Interface: -1}
	switch kind {
	case KindUSB:
		err = loc.parseUSB(class, values)
	case KindTCPIP:
		err = loc.parseTCPIP(class, values)
	case KindSerial:
		err = loc.parseSerial(class, ast.Path, values)
	case KindSim:
		err = loc.parseSim(class, values)
	}
	if err == nil && ast.Path != "" && kind != KindSerial {
		err = fmt.Errorf("device path only valid for ASRL")
	}
	if err != nil {
		return Locator{}, fmt.Errorf("%w %q: %v", ErrInvalidLocator, s, err)
	}
	return loc, nil
}

// MustParse is Parse for locators known to be valid.
func MustParse(s string) Locator {
	loc, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return loc
}

func splitKind(tok string) (Kind, int, error) {
	upper := strings.ToUpper(tok)
	for _, k := range []Kind{KindTCPIP, KindUSB, KindSerial, KindSim} {
		rest, ok := strings.CutPrefix(upper, string(k))
		if !ok {
			continue
		}
		if rest == "" {
			return k, 0, nil
		}
		if k == KindSim {
			return "", 0, fmt.Errorf("SIM takes no board number")
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			return "", 0, fmt.Errorf("bad board number %q", rest)
		}
		return k, n, nil
	}
	return "", 0, fmt.Errorf("unknown interface %q", tok)
}

func (l *Locator) parseUSB(class string, values []string) error {
	if class != "INSTR" {
		return fmt.Errorf("USB requires INSTR, got %s", class)
	}
	if len(values) != 3 && len(values) != 4 {
		return fmt.Errorf("USB needs vendor, product and serial")
	}
	vid, err := strconv.ParseUint(values[0], 0, 16)
	if err != nil {
		return fmt.Errorf("bad vendor id %q", values[0])
	}
	pid, err := strconv.ParseUint(values[1], 0, 16)
	if err != nil {
		return fmt.Errorf("bad product id %q", values[1])
	}
	l.VendorID = uint16(vid)
	l.ProductID = uint16(pid)
	l.Serial = values[2]
	if len(values) == 4 {
		n, err := strconv.Atoi(values[3])
		if err != nil || n < 0 {
			return fmt.Errorf("bad interface number %q", values[3])
		}
		l.Interface = n
	}
	return nil
}

func (l *Locator) parseTCPIP(class string, values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("TCPIP needs a host")
	}
	l.Host = values[0]
	switch class {
	case "SOCKET":
		if len(values) != 2 {
			return fmt.Errorf("SOCKET needs host and port")
		}
		port, err := strconv.Atoi(values[1])
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("bad port %q", values[1])
		}
		l.Port = port
	case "INSTR":
		switch len(values) {
		case 1:
			l.Device = DefaultVXIDevice
		case 2:
			l.Device = values[1]
		default:
			return fmt.Errorf("too many fields for TCPIP INSTR")
		}
	}
	return nil
}

func (l *Locator) parseSerial(class, glued string, values []string) error {
	if class != "INSTR" {
		return fmt.Errorf("ASRL requires INSTR, got %s", class)
	}
	switch {
	case glued != "" && len(values) == 0:
		l.Path = glued
	case glued == "" && len(values) == 0:
		if l.Board == 0 {
			return fmt.Errorf("ASRL needs a board number or device path")
		}
	case glued == "" && len(values) == 1:
		l.Path = values[0]
	default:
		return fmt.Errorf("too many fields for ASRL")
	}
	return nil
}

func (l *Locator) parseSim(class string, values []string) error {
	if class != "INSTR" || len(values) != 1 {
		return fmt.Errorf("SIM form is SIM::MODEL::INSTR")
	}
	l.Model = values[0]
	return nil
}

// DevicePath returns the serial device for ASRL locators. A bare board
// number n maps to /dev/ttyS(n-1).
func (l Locator) DevicePath() string {
	if l.Path != "" || l.Kind != KindSerial {
		return l.Path
	}
	return fmt.Sprintf("/dev/ttyS%d", l.Board-1)
}

// String renders the canonical form. Parse(l.String()) yields l.
func (l Locator) String() string {
	switch l.Kind {
	case KindUSB:
		s := fmt.Sprintf("USB%d::0x%04X::0x%04X::%s", l.Board, l.VendorID, l.ProductID, l.Serial)
		if l.Interface >= 0 {
			s += fmt.Sprintf("::%d", l.Interface)
		}
		return s + "::INSTR"
	case KindTCPIP:
		if l.Port > 0 {
			return fmt.Sprintf("TCPIP%d::%s::%d::SOCKET", l.Board, l.Host, l.Port)
		}
		return fmt.Sprintf("TCPIP%d::%s::%s::INSTR", l.Board, l.Host, l.Device)
	case KindSerial:
		if l.Path == "" {
			return fmt.Sprintf("ASRL%d::INSTR", l.Board)
		}
		if l.Board == 0 {
			return "ASRL" + l.Path + "::INSTR"
		}
		return fmt.Sprintf("ASRL%d::%s::INSTR", l.Board, l.Path)
	case KindSim:
		return "SIM::" + l.Model + "::INSTR"
	}
	return ""
}

// Label returns a short human readable description.
func (l Locator) Label() string {
	switch l.Kind {
	case KindUSB:
		return fmt.Sprintf("USB %04X:%04X %s", l.VendorID, l.ProductID, l.Serial)
	case KindTCPIP:
		return "LAN " + l.Host
	case KindSerial:
		return "Serial " + l.DevicePath()
	case KindSim:
		return "Simulator " + l.Model
	}
	return l.String()
}
