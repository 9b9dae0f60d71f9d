package resource

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// LocatorLexer tokenizes VISA-style resource strings such as
// USB0::0x1AB1::0x04CE::DS1ZA000000001::INSTR.
var LocatorLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Sep", Pattern: `::`},
	{Name: "Hex", Pattern: `0[xX][0-9A-Fa-f]+\b`},

	// Interface kinds with an optional board number
	{Name: "Kind", Pattern: `(?i)\b(USB|TCPIP|ASRL|SIM)\d*\b`},

	// Resource classes
	{Name: "Class", Pattern: `(?i)\b(INSTR|SOCKET)\b`},

	// Device paths, ASRL/dev/ttyUSB0 or ASRL::/dev/ttyUSB0
	{Name: "Path", Pattern: `/[^:\s]*`},
	{Name: "Field", Pattern: `[^:/\s][^:\s]*`},
})

// locatorAST is the raw parse: a kind, an optional glued device path and
// the separator delimited parts. Per-kind structure is checked afterwards.
type locatorAST struct {
	Kind  string         `@Kind`
	Path  string         `@Path?`
	Parts []*locatorPart `( Sep @@ )+`
}

// locatorPart is a resource class or a value. Adjacent value tokens are
// joined, so a host such as usb-hub.lab stays one value.
type locatorPart struct {
	Class string `  @Class`
	Value string `| @( Hex | Field | Path | Kind )+`
}

var locatorParser = participle.MustBuild[locatorAST](
	participle.Lexer(LocatorLexer),
	participle.UseLookahead(2),
)
