package driver

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/idn"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/instrument"
)

// Predicate decides whether a descriptor applies to an identity.
type Predicate func(id idn.Identity) bool

// Factory constructs a driver bound to an open session.
type Factory func(h *instrument.Handle, id idn.Identity) (Driver, error)

// Descriptor registers one driver. Higher Priority is tried first; equal
// priorities keep registration order, so a specific predicate registered
// ahead of a generic one wins.
type Descriptor struct {
	Name       string
	Categories []Category
	Priority   int
	Match      Predicate
	New        Factory
}

type registered struct {
	desc Descriptor
	seq  int
}

// Registry is an ordered set of driver descriptors with a single dispatch
// function. The zero value is not usable; call NewRegistry.
type Registry struct {
	mu      sync.RWMutex
	entries []registered
	seq     int

	log      logrus.FieldLogger
	captures CaptureObserver
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Registry{log: l}
}

// SetLogger replaces the logger.
func (r *Registry) SetLogger(log logrus.FieldLogger) {
	if log != nil {
		r.log = log
	}
}

// SetCaptureObserver is handed to every driver constructed afterwards that
// accepts one.
func (r *Registry) SetCaptureObserver(o CaptureObserver) {
	r.captures = o
}

// Register adds d. Names must be unique.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" || d.Match == nil || d.New == nil {
		return fmt.Errorf("driver descriptor needs a name, predicate and factory")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.desc.Name == d.Name {
			return fmt.Errorf("driver %q already registered", d.Name)
		}
	}
	r.seq++
	r.entries = append(r.entries, registered{desc: d, seq: r.seq})
	sort.SliceStable(r.entries, func(i, j int) bool {
		a, b := r.entries[i], r.entries[j]
		if a.desc.Priority != b.desc.Priority {
			return a.desc.Priority > b.desc.Priority
		}
		return a.seq < b.seq
	})
	return nil
}

// MustRegister is Register for driver tables built at init time.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Descriptors returns the descriptors in dispatch order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.desc
	}
	return out
}

// Select returns the first descriptor whose predicate accepts id.
func (r *Registry) Select(id idn.Identity) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.desc.Match(id) {
			return e.desc, true
		}
	}
	return Descriptor{}, false
}

// Resolve queries the identity of h and selects a descriptor without
// constructing a driver.
func (r *Registry) Resolve(ctx context.Context, h *instrument.Handle) (idn.Identity, Descriptor, error) {
	raw, err := h.Query(ctx, idn.Query)
	if err != nil {
		return idn.Identity{}, Descriptor{}, err
	}
	id := idn.Parse(raw)
	desc, ok := r.Select(id)
	if !ok {
		return id, Descriptor{}, &UnidentifiedDeviceError{Locator: h.Locator(), Identity: id}
	}
	r.log.WithFields(logrus.Fields{
		"locator": h.Locator(),
		"model":   id.Model,
		"driver":  desc.Name,
	}).Debug("driver selected")
	return id, desc, nil
}

// Identify queries h, selects the first matching descriptor and builds its
// driver. An unmatched identity yields *UnidentifiedDeviceError together
// with the parsed Identity.
func (r *Registry) Identify(ctx context.Context, h *instrument.Handle) (idn.Identity, Driver, error) {
	id, desc, err := r.Resolve(ctx, h)
	if err != nil {
		return id, nil, err
	}
	d, err := r.construct(desc, h, id)
	return id, d, err
}

func (r *Registry) construct(desc Descriptor, h *instrument.Handle, id idn.Identity) (Driver, error) {
	d, err := desc.New(h, id)
	if err != nil {
		return nil, fmt.Errorf("driver %s: %w", desc.Name, err)
	}
	if r.captures != nil {
		if o, ok := d.(interface{ SetCaptureObserver(CaptureObserver) }); ok {
			o.SetCaptureObserver(r.captures)
		}
	}
	return d, nil
}

// MatchVendor accepts identities from the vendor with the given key (see
// idn.LookupVendor).
func MatchVendor(key string) Predicate {
	return func(id idn.Identity) bool {
		return id.Vendor().Key == key
	}
}

// MatchModelPrefix accepts identities from vendor whose model starts with
// one of prefixes, ignoring case and spaces.
func MatchModelPrefix(vendor string, prefixes ...string) Predicate {
	return func(id idn.Identity) bool {
		if id.Vendor().Key != vendor {
			return false
		}
		m := normalizeModel(id.Model)
		for _, p := range prefixes {
			if strings.HasPrefix(m, normalizeModel(p)) {
				return true
			}
		}
		return false
	}
}

// MatchModelPattern accepts identities from vendor whose model, upper-cased
// with spaces removed, matches pattern. Use it where a prefix would also
// catch an older series with a different command set.
func MatchModelPattern(vendor string, pattern *regexp.Regexp) Predicate {
	return func(id idn.Identity) bool {
		return id.Vendor().Key == vendor && pattern.MatchString(normalizeModel(id.Model))
	}
}

func normalizeModel(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, " ", ""))
}
