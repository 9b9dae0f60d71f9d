package ranges

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// equalTolerance is the relative distance under which a requested value is
// treated as an exact hit on a table entry. It absorbs float noise such as
// 0.1*3 != 0.3 without ever returning a value that is not in the table.
const equalTolerance = 1e-9

// Table is an ascending list of hardware-supported discrete setting values
// (timebase steps, V/div steps, range limits). A Table is immutable once
// built; the zero value is empty and not usable for snapping.
type Table struct {
	values []float64
}

// New validates that values is non-empty, finite and strictly ascending.
func New(values ...float64) (Table, error) {
	if len(values) == 0 {
		return Table{}, fmt.Errorf("ranges: table must not be empty")
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Table{}, fmt.Errorf("ranges: entry %d is not finite", i)
		}
		if i > 0 && v <= values[i-1] {
			return Table{}, fmt.Errorf("ranges: entry %d (%g) not above %g", i, v, values[i-1])
		}
	}
	return Table{values: append([]float64(nil), values...)}, nil
}

// MustNew is New for tables defined at package init.
func MustNew(values ...float64) Table {
	t, err := New(values...)
	if err != nil {
		panic(err)
	}
	return t
}

// Sequence125 builds the 1-2-5 ladder used by most scope front panels, from
// 1*10^minExp up to and including the largest step not above maxValue.
func Sequence125(minExp int, maxValue float64) Table {
	var values []float64
	for exp := minExp; ; exp++ {
		for _, m := range []int{1, 2, 5} {
			// Parse the decimal literal so 5e-9 is bit-identical to the
			// constant a caller would type.
			v, _ := strconv.ParseFloat(fmt.Sprintf("%de%d", m, exp), 64)
			if v > maxValue*(1+equalTolerance) {
				return MustNew(values...)
			}
			values = append(values, v)
		}
	}
}

// Len reports the number of entries.
func (t Table) Len() int { return len(t.values) }

// Values returns a copy of the entries.
func (t Table) Values() []float64 { return append([]float64(nil), t.values...) }

// Min returns the smallest entry.
func (t Table) Min() float64 { return t.values[0] }

// Max returns the largest entry.
func (t Table) Max() float64 { return t.values[len(t.values)-1] }

// Within returns the entries in [lo, hi], e.g. to cut a model's range out
// of a generic 1-2-5 ladder. It panics when nothing remains.
func (t Table) Within(lo, hi float64) Table {
	var values []float64
	for _, v := range t.values {
		if v >= lo*(1-equalTolerance) && v <= hi*(1+equalTolerance) {
			values = append(values, v)
		}
	}
	return MustNew(values...)
}

// Contains reports whether v is (within float tolerance) a table entry.
func (t Table) Contains(v float64) bool {
	i := sort.SearchFloat64s(t.values, v)
	if i < len(t.values) && closeTo(v, t.values[i]) {
		return true
	}
	return i > 0 && closeTo(v, t.values[i-1])
}

// Snap maps requested onto the table: an exact hit is returned unchanged,
// otherwise the smallest entry above requested is chosen so the instrument is
// never configured finer than asked. Values above the top entry saturate to
// Max. Snap panics on an empty Table.
func (t Table) Snap(requested float64) float64 {
	if len(t.values) == 0 {
		panic("ranges: snap on empty table")
	}
	if math.IsNaN(requested) {
		return t.Max()
	}
	i := sort.SearchFloat64s(t.values, requested)
	if i > 0 && closeTo(requested, t.values[i-1]) {
		return t.values[i-1]
	}
	if i >= len(t.values) {
		return t.Max()
	}
	return t.values[i]
}

// Snap is the free-function form of Table.Snap.
func Snap(requested float64, t Table) float64 {
	return t.Snap(requested)
}

// Clamp limits v to [lo, hi]. It is used for continuous settings such as a
// supply's output voltage where there is no discrete table.
func Clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v):
		return lo
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

func closeTo(a, b float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= scale*equalTolerance
}
