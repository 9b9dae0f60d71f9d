package scpi

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// commandLexer tokenizes SCPI program messages and command templates. `{}`
// marks a placeholder in a template; real messages never contain one.
var commandLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t]+`},
	{Name: "Placeholder", Pattern: `\{\}`},
	{Name: "String", Pattern: `"[^"]*"|'[^']*'`},
	{Name: "Number", Pattern: `[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`},
	{Name: "Mnemonic", Pattern: `[A-Za-z][A-Za-z_]*`},
	{Name: "Punct", Pattern: `[:*?,]`},
})

// Command is one parsed program message or template, e.g.
// ":CHANnel{}:SCALe {}" or "*IDN?".
type Command struct {
	Header *Header  `@@`
	Query  bool     `@"?"?`
	Params []*Param `( Whitespace @@ ( Whitespace? "," Whitespace? @@ )* )?`
}

// Header is either an IEEE 488.2 common command (*RST) or a colon separated
// mnemonic path.
type Header struct {
	Common string  `  "*" @Mnemonic`
	Nodes  []*Node `| ":"? @@ ( ":" @@ )*`
}

// Node is one mnemonic of a header with an optional numeric suffix
// (CHANnel1) or placeholder suffix (CHANnel{}).
type Node struct {
	Mnemonic string  `@Mnemonic`
	Suffix   *Suffix `@@?`
}

// Suffix is the channel/instance number attached to a mnemonic.
type Suffix struct {
	Placeholder bool   `  @Placeholder`
	Number      string `| @Number`
}

// Param is a placeholder or a literal program data element. Literal tokens
// are concatenated so CHAN1 or CH1 survive as one value.
type Param struct {
	Placeholder bool   `  @Placeholder`
	Value       string `| @( Mnemonic | Number | String )+`
}

var commandParser = participle.MustBuild[Command](
	participle.Lexer(commandLexer),
	participle.UseLookahead(2),
)

// Parse parses a program message or a template.
func Parse(text string) (*Command, error) {
	cmd, err := commandParser.ParseString("", strings.TrimSpace(text))
	if err != nil {
		return nil, fmt.Errorf("scpi: parse %q: %w", text, err)
	}
	return cmd, nil
}

// Placeholders counts `{}` markers in header suffixes and parameters.
func (c *Command) Placeholders() int {
	n := 0
	for _, node := range c.Header.Nodes {
		if node.Suffix != nil && node.Suffix.Placeholder {
			n++
		}
	}
	for _, p := range c.Params {
		if p.Placeholder {
			n++
		}
	}
	return n
}

// Long renders the header with the long (as written) mnemonic forms.
func (c *Command) Long() string {
	return c.header(func(m string) string { return m })
}

// Short renders the header in canonical short form, e.g. ":TIM:MAIN:SCAL".
// The short form of a mnemonic is its upper-case letters.
func (c *Command) Short() string {
	return c.header(ShortForm)
}

func (c *Command) header(form func(string) string) string {
	var b strings.Builder
	if c.Header.Common != "" {
		b.WriteString("*")
		b.WriteString(strings.ToUpper(c.Header.Common))
	} else {
		for _, node := range c.Header.Nodes {
			b.WriteString(":")
			b.WriteString(form(node.Mnemonic))
			if node.Suffix != nil {
				if node.Suffix.Placeholder {
					b.WriteString("{}")
				} else {
					b.WriteString(node.Suffix.Number)
				}
			}
		}
	}
	if c.Query {
		b.WriteString("?")
	}
	return b.String()
}

// ShortForm returns the upper-case portion of a mixed case mnemonic. A
// mnemonic written entirely in one case is its own short form.
func ShortForm(mnemonic string) string {
	var b strings.Builder
	for _, r := range mnemonic {
		if unicode.IsUpper(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return strings.ToUpper(mnemonic)
	}
	return b.String()
}

// MatchMnemonic applies the SCPI rule: a sent mnemonic matches when it equals
// either the short or the long form, ignoring case.
func MatchMnemonic(template, sent string) bool {
	return strings.EqualFold(sent, template) || strings.EqualFold(sent, ShortForm(template))
}

// Matches reports whether msg addresses the same command as the template c,
// in either short or long form and with any suffix value for a placeholder.
func (c *Command) Matches(msg *Command) bool {
	if c.Query != msg.Query {
		return false
	}
	if c.Header.Common != "" || msg.Header.Common != "" {
		return strings.EqualFold(c.Header.Common, msg.Header.Common)
	}
	if len(c.Header.Nodes) != len(msg.Header.Nodes) {
		return false
	}
	for i, node := range c.Header.Nodes {
		sent := msg.Header.Nodes[i]
		if !MatchMnemonic(node.Mnemonic, sent.Mnemonic) {
			return false
		}
		switch {
		case node.Suffix == nil:
			if sent.Suffix != nil && sent.Suffix.Number != "1" {
				return false
			}
		case node.Suffix.Placeholder:
		case sent.Suffix == nil:
			if node.Suffix.Number != "1" {
				return false
			}
		case node.Suffix.Number != sent.Suffix.Number:
			return false
		}
	}
	return true
}
