package scpi

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// UnknownCommandPathError is returned when a path has no registered template.
type UnknownCommandPathError struct {
	Path string
}

func (e *UnknownCommandPathError) Error() string {
	return fmt.Sprintf("scpi: unknown command path %q", e.Path)
}

// InvalidParameterError is returned by Format when an enumerated parameter is
// not in the accepted set. Nothing is sent to the instrument in that case.
type InvalidParameterError struct {
	Path    string
	Value   string
	Allowed []string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("scpi: %q is not a valid value for %s (allowed: %s)",
		e.Value, e.Path, strings.Join(e.Allowed, ", "))
}

// entry is one registered command.
type entry struct {
	template string
	cmd      *Command
	values   []string
}

// Tree is a hierarchical registry of command templates keyed by dotted paths
// such as "trigger.edge.slope" (category, subcategory, command). Each path
// may carry the enumerated set of values its last parameter accepts.
// Matching of enumerated values ignores case.
type Tree struct {
	mu       sync.RWMutex
	children map[string]*Tree
	entry    *entry
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{children: make(map[string]*Tree)}
}

// Register parses template and stores it under path. values, if any, is the
// accepted set for the final placeholder parameter.
func (t *Tree) Register(path, template string, values ...string) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}
	cmd, err := Parse(template)
	if err != nil {
		return err
	}
	if len(values) > 0 && cmd.Placeholders() == 0 {
		return fmt.Errorf("scpi: %s: values given but template %q has no placeholder", path, template)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	node := t
	for _, seg := range segments {
		child, ok := node.children[seg]
		if !ok {
			child = &Tree{children: make(map[string]*Tree)}
			node.children[seg] = child
		}
		node = child
	}
	node.entry = &entry{
		template: template,
		cmd:      cmd,
		values:   append([]string(nil), values...),
	}
	return nil
}

// MustRegister is Register for command tables built at init time.
func (t *Tree) MustRegister(path, template string, values ...string) {
	if err := t.Register(path, template, values...); err != nil {
		panic(err)
	}
}

// Has reports whether path has a template.
func (t *Tree) Has(path string) bool {
	_, ok := t.lookup(path)
	return ok
}

// Template returns the raw template registered at path.
func (t *Tree) Template(path string) (string, error) {
	e, ok := t.lookup(path)
	if !ok {
		return "", &UnknownCommandPathError{Path: path}
	}
	return e.template, nil
}

// Values returns the enumerated set for path, nil when unconstrained.
func (t *Tree) Values(path string) []string {
	e, ok := t.lookup(path)
	if !ok {
		return nil
	}
	return append([]string(nil), e.values...)
}

// Validate reports whether value is accepted for path. Unknown paths are
// never valid; a path without an enumerated set accepts anything.
func (t *Tree) Validate(path, value string) bool {
	e, ok := t.lookup(path)
	if !ok {
		return false
	}
	_, ok = e.canonical(value)
	return ok
}

// Canonical returns the registered spelling of an enumerated value.
func (t *Tree) Canonical(path, value string) (string, error) {
	e, ok := t.lookup(path)
	if !ok {
		return "", &UnknownCommandPathError{Path: path}
	}
	v, ok := e.canonical(value)
	if !ok {
		return "", &InvalidParameterError{Path: path, Value: value, Allowed: e.values}
	}
	return v, nil
}

// Format substitutes args into the template at path, in order: header suffix
// placeholders first, then parameters. The argument matching the final
// placeholder is validated against the enumerated set and replaced by its
// registered spelling.
func (t *Tree) Format(path string, args ...any) (string, error) {
	e, ok := t.lookup(path)
	if !ok {
		return "", &UnknownCommandPathError{Path: path}
	}
	want := e.cmd.Placeholders()
	if len(args) != want {
		return "", fmt.Errorf("scpi: %s takes %d argument(s), got %d", path, want, len(args))
	}

	values := make([]string, len(args))
	for i, arg := range args {
		values[i] = formatArg(arg)
	}
	if len(e.values) > 0 {
		last := len(values) - 1
		v, ok := e.canonical(values[last])
		if !ok {
			return "", &InvalidParameterError{Path: path, Value: values[last], Allowed: e.values}
		}
		values[last] = v
	}
	return e.cmd.render(values), nil
}

// Lookup finds the path whose template matches a program message, ignoring
// short/long form and case. It is the reverse of Format.
func (t *Tree) Lookup(message string) (string, *Command, error) {
	msg, err := Parse(message)
	if err != nil {
		return "", nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	var matches []string
	t.walk("", func(path string, e *entry) {
		if e.cmd.Matches(msg) {
			matches = append(matches, path)
		}
	})
	if len(matches) == 0 {
		return "", msg, &UnknownCommandPathError{Path: message}
	}
	sort.Strings(matches)
	return matches[0], msg, nil
}

// Paths lists every registered path in sorted order.
func (t *Tree) Paths() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	t.walk("", func(path string, _ *entry) {
		out = append(out, path)
	})
	sort.Strings(out)
	return out
}

// Categories lists the top-level categories.
func (t *Tree) Categories() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.children))
	for name := range t.children {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (t *Tree) walk(prefix string, fn func(string, *entry)) {
	if t.entry != nil {
		fn(prefix, t.entry)
	}
	for name, child := range t.children {
		p := name
		if prefix != "" {
			p = prefix + "." + name
		}
		child.walk(p, fn)
	}
}

func (t *Tree) lookup(path string) (*entry, bool) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	node := t
	for _, seg := range segments {
		child, ok := node.children[seg]
		if !ok {
			return nil, false
		}
		node = child
	}
	return node.entry, node.entry != nil
}

func (e *entry) canonical(value string) (string, bool) {
	if len(e.values) == 0 {
		return value, true
	}
	for _, allowed := range e.values {
		if strings.EqualFold(allowed, value) {
			return allowed, true
		}
	}
	return "", false
}

// render writes the long form with placeholders replaced by values.
func (c *Command) render(values []string) string {
	next := 0
	take := func() string {
		v := values[next]
		next++
		return v
	}

	var b strings.Builder
	if c.Header.Common != "" {
		b.WriteString("*")
		b.WriteString(c.Header.Common)
	}
	for _, node := range c.Header.Nodes {
		b.WriteString(":")
		b.WriteString(node.Mnemonic)
		if node.Suffix != nil {
			if node.Suffix.Placeholder {
				b.WriteString(take())
			} else {
				b.WriteString(node.Suffix.Number)
			}
		}
	}
	if c.Query {
		b.WriteString("?")
	}
	for i, p := range c.Params {
		if i == 0 {
			b.WriteString(" ")
		} else {
			b.WriteString(",")
		}
		if p.Placeholder {
			b.WriteString(take())
		} else {
			b.WriteString(p.Value)
		}
	}
	return b.String()
}

func formatArg(arg any) string {
	switch v := arg.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case int:
		return strconv.Itoa(v)
	case bool:
		if v {
			return "ON"
		}
		return "OFF"
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, &UnknownCommandPathError{Path: path}
	}
	segments := strings.Split(strings.ToLower(path), ".")
	for _, s := range segments {
		if s == "" {
			return nil, &UnknownCommandPathError{Path: path}
		}
	}
	return segments, nil
}
