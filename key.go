package grouped

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-sif/grouped/errors"
)

// KeyKind identifies the shape of a Key
type KeyKind int

const (
	// ScalarKeyKind indicates a Key made of a single column value
	ScalarKeyKind KeyKind = iota
	// CompositeKeyKind indicates a Key made of multiple column values
	CompositeKeyKind
	// FunctionKeyKind indicates a Key produced by a GroupingFunction
	FunctionKeyKind
)

// A Key identifies one group within a GroupIndex. Every Key within a single
// grouped view has the same KeyKind.
type Key interface {
	Kind() KeyKind             // Kind returns the shape of this Key
	Components() []interface{} // Components returns the values making up this Key, in order
	Equal(other Key) bool      // Equal returns true iff other has the same shape and equal values
	Accept(visitor KeyVisitor) // Accept dispatches to the KeyVisitor method matching this Key's shape
	String() string
}

// KeyVisitor implements an operation once per Key shape
type KeyVisitor interface {
	VisitScalar(k ScalarKey)
	VisitComposite(k CompositeKey)
	VisitFunction(k FunctionKey)
}

// Lesser may be implemented by opaque key values produced by a GroupingFunction, to give them a total order
type Lesser interface {
	Less(other interface{}) bool
}

// ScalarKey is a Key derived from a single column
type ScalarKey struct{ Value interface{} }

// CompositeKey is a Key derived from several columns
type CompositeKey struct{ Parts []interface{} }

// FunctionKey is a Key produced by applying a GroupingFunction to a Row
type FunctionKey struct{ Value interface{} }

// NewCompositeKey builds a CompositeKey from column values
func NewCompositeKey(parts ...interface{}) CompositeKey {
	p := make([]interface{}, len(parts))
	copy(p, parts)
	return CompositeKey{Parts: p}
}

// Kind returns ScalarKeyKind
func (k ScalarKey) Kind() KeyKind { return ScalarKeyKind }

// Components returns the single value of this ScalarKey
func (k ScalarKey) Components() []interface{} { return []interface{}{k.Value} }

// Equal compares two Keys by value
func (k ScalarKey) Equal(other Key) bool { return keysEqual(k, other) }

// Accept calls visitor.VisitScalar
func (k ScalarKey) Accept(visitor KeyVisitor) { visitor.VisitScalar(k) }

func (k ScalarKey) String() string { return formatValue(k.Value) }

// Kind returns CompositeKeyKind
func (k CompositeKey) Kind() KeyKind { return CompositeKeyKind }

// Components returns a copy of the values of this CompositeKey
func (k CompositeKey) Components() []interface{} {
	p := make([]interface{}, len(k.Parts))
	copy(p, k.Parts)
	return p
}

// Equal compares two Keys by value
func (k CompositeKey) Equal(other Key) bool { return keysEqual(k, other) }

// Accept calls visitor.VisitComposite
func (k CompositeKey) Accept(visitor KeyVisitor) { visitor.VisitComposite(k) }

func (k CompositeKey) String() string {
	parts := make([]string, len(k.Parts))
	for i, p := range k.Parts {
		parts[i] = formatValue(p)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Kind returns FunctionKeyKind
func (k FunctionKey) Kind() KeyKind { return FunctionKeyKind }

// Components returns the single value of this FunctionKey
func (k FunctionKey) Components() []interface{} { return []interface{}{k.Value} }

// Equal compares two Keys by value
func (k FunctionKey) Equal(other Key) bool { return keysEqual(k, other) }

// Accept calls visitor.VisitFunction
func (k FunctionKey) Accept(visitor KeyVisitor) { visitor.VisitFunction(k) }

func (k FunctionKey) String() string { return formatValue(k.Value) }

func keysEqual(a Key, b Key) bool {
	if b == nil || a.Kind() != b.Kind() {
		return false
	}
	ac, bc := a.Components(), b.Components()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if !valuesEqual(ac[i], bc[i]) {
			return false
		}
	}
	return true
}

func valuesEqual(a interface{}, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if isFloat(ta.Kind()) {
		fa, fb := reflect.ValueOf(a).Float(), reflect.ValueOf(b).Float()
		// NaN groups with NaN
		return fa == fb || (math.IsNaN(fa) && math.IsNaN(fb))
	}
	if ta.Comparable() {
		if eq, ok := interfaceEqual(a, b); ok {
			return eq
		}
	}
	return reflect.DeepEqual(a, b)
}

// interfaceEqual compares a and b with ==, which panics for structs and arrays holding
// uncomparable values in interface fields
func interfaceEqual(a interface{}, b interface{}) (eq bool, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			eq, ok = false, false
		}
	}()
	return a == b, true
}

func formatValue(v interface{}) string {
	switch tv := v.(type) {
	case string:
		return fmt.Sprintf("%q", tv)
	case nil:
		return "nothing"
	default:
		return fmt.Sprintf("%v", tv)
	}
}

// CompareKeys returns -1, 0 or 1 depending on whether a sorts before, equal to or after b.
// Composite keys are compared lexicographically. Returns an errors.UnorderableError if
// a component has no total order.
func CompareKeys(a Key, b Key) (int, error) {
	ac, bc := a.Components(), b.Components()
	for i := 0; i < len(ac) && i < len(bc); i++ {
		c, err := compareValues(ac[i], bc[i])
		if err != nil {
			return 0, errors.UnorderableError{Key: a}
		}
		if c != 0 {
			return c, nil
		}
	}
	switch {
	case len(ac) < len(bc):
		return -1, nil
	case len(ac) > len(bc):
		return 1, nil
	}
	return 0, nil
}

// IsOrderable returns true iff every component of k has a total order
func IsOrderable(k Key) bool {
	for _, c := range k.Components() {
		if _, err := compareValues(c, c); err != nil {
			return false
		}
	}
	return true
}

func compareValues(a interface{}, b interface{}) (int, error) {
	if la, ok := a.(Lesser); ok {
		switch {
		case la.Less(b):
			return -1, nil
		case b != nil && reflect.TypeOf(a) == reflect.TypeOf(b) && b.(Lesser).Less(a):
			return 1, nil
		}
		return 0, nil
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		if !ok {
			return 0, fmt.Errorf("cannot compare %T with %T", a, b)
		}
		switch {
		case ta.Before(tb):
			return -1, nil
		case ta.After(tb):
			return 1, nil
		}
		return 0, nil
	}
	if a == nil || b == nil {
		return 0, fmt.Errorf("cannot order nil values")
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch {
	case isInt(ra.Kind()) && isInt(rb.Kind()):
		return compareOrdered(ra.Int() < rb.Int(), ra.Int() > rb.Int()), nil
	case isUint(ra.Kind()) && isUint(rb.Kind()):
		return compareOrdered(ra.Uint() < rb.Uint(), ra.Uint() > rb.Uint()), nil
	case isNumeric(ra.Kind()) && isNumeric(rb.Kind()):
		fa, fb := toFloat(ra), toFloat(rb)
		return compareOrdered(fa < fb, fa > fb), nil
	case ra.Kind() == reflect.String && rb.Kind() == reflect.String:
		return compareOrdered(ra.String() < rb.String(), ra.String() > rb.String()), nil
	case ra.Kind() == reflect.Bool && rb.Kind() == reflect.Bool:
		return compareOrdered(!ra.Bool() && rb.Bool(), ra.Bool() && !rb.Bool()), nil
	}
	return 0, fmt.Errorf("cannot compare %T with %T", a, b)
}

func compareOrdered(less bool, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func isNumeric(k reflect.Kind) bool {
	return isInt(k) || isUint(k) || isFloat(k)
}

func toFloat(v reflect.Value) float64 {
	switch {
	case isInt(v.Kind()):
		return float64(v.Int())
	case isUint(v.Kind()):
		return float64(v.Uint())
	default:
		return v.Float()
	}
}

// CoerceKey converts a caller-supplied key into the shape and component types of
// exemplar, which must be a Key already present in the target index. raw may be a Key
// of the same shape, a slice of component values or a bare value. Returns false if the
// conversion would change the key's value.
func CoerceKey(raw interface{}, exemplar Key) (Key, bool) {
	c := &keyCoercer{raw: raw}
	exemplar.Accept(c)
	return c.result, c.ok
}

// ShapeKey wraps raw in the shape of exemplar without converting any of its values, so that
// the result may be looked up exactly. A raw Key of a different shape is rejected.
func ShapeKey(raw interface{}, exemplar Key) (Key, bool) {
	c := &keyCoercer{raw: raw, exact: true}
	exemplar.Accept(c)
	return c.result, c.ok
}

type keyCoercer struct {
	raw    interface{}
	exact  bool
	result Key
	ok     bool
}

func (c *keyCoercer) convert(v interface{}, t reflect.Type) (interface{}, bool) {
	if c.exact {
		return v, true
	}
	return convertValue(v, t)
}

func (c *keyCoercer) VisitScalar(k ScalarKey) {
	var v interface{}
	switch raw := c.raw.(type) {
	case ScalarKey:
		v = raw.Value
	case Key:
		return
	default:
		parts, isSlice := sliceComponents(raw)
		if isSlice && len(parts) == 1 && !isSliceType(k.Value) {
			v = parts[0]
		} else {
			v = raw
		}
	}
	if cv, ok := c.convert(v, reflect.TypeOf(k.Value)); ok {
		c.result, c.ok = ScalarKey{Value: cv}, true
	}
}

func (c *keyCoercer) VisitComposite(k CompositeKey) {
	var parts []interface{}
	switch raw := c.raw.(type) {
	case CompositeKey:
		parts = raw.Parts
	case Key:
		return
	default:
		var isSlice bool
		if parts, isSlice = sliceComponents(raw); !isSlice {
			return
		}
	}
	if len(parts) != len(k.Parts) {
		return
	}
	converted := make([]interface{}, len(parts))
	for i := range parts {
		cv, ok := c.convert(parts[i], reflect.TypeOf(k.Parts[i]))
		if !ok {
			return
		}
		converted[i] = cv
	}
	c.result, c.ok = CompositeKey{Parts: converted}, true
}

func (c *keyCoercer) VisitFunction(k FunctionKey) {
	v := c.raw
	switch raw := c.raw.(type) {
	case FunctionKey:
		v = raw.Value
	case Key:
		return
	}
	if cv, ok := c.convert(v, reflect.TypeOf(k.Value)); ok {
		c.result, c.ok = FunctionKey{Value: cv}, true
	}
}

func isSliceType(v interface{}) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// sliceComponents unpacks slices and arrays of any element type into component values
func sliceComponents(raw interface{}) ([]interface{}, bool) {
	if parts, ok := raw.([]interface{}); ok {
		return parts, true
	}
	if !isSliceType(raw) {
		return nil, false
	}
	rv := reflect.ValueOf(raw)
	parts := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		parts[i] = rv.Index(i).Interface()
	}
	return parts, true
}

// convertValue converts v to type t without changing its value. A nil t stands for a nil
// component, which only nil matches.
func convertValue(v interface{}, t reflect.Type) (interface{}, bool) {
	if v == nil || t == nil {
		return nil, v == nil && t == nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type() == t {
		return v, true
	}
	if isNumeric(rv.Kind()) && isNumeric(t.Kind()) {
		cv := rv.Convert(t)
		if toFloat(cv) != toFloat(rv) || cv.Convert(rv.Type()).Interface() != v {
			return nil, false
		}
		return cv.Interface(), true
	}
	if rv.Kind() == t.Kind() && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t).Interface(), true
	}
	return nil, false
}

// DisplayKey renders a Key for presentation. Keys derived from columns are labelled
// with their column names.
func DisplayKey(columns []string, k Key) string {
	d := &keyDisplayer{columns: columns}
	k.Accept(d)
	return d.result
}

type keyDisplayer struct {
	columns []string
	result  string
}

func (d *keyDisplayer) VisitScalar(k ScalarKey) {
	if len(d.columns) == 1 {
		d.result = fmt.Sprintf("%s = %s", d.columns[0], formatValue(k.Value))
		return
	}
	d.result = formatValue(k.Value)
}

func (d *keyDisplayer) VisitComposite(k CompositeKey) {
	if len(d.columns) != len(k.Parts) {
		d.result = k.String()
		return
	}
	parts := make([]string, len(k.Parts))
	for i, p := range k.Parts {
		parts[i] = fmt.Sprintf("%s = %s", d.columns[i], formatValue(p))
	}
	d.result = "(" + strings.Join(parts, ", ") + ")"
}

func (d *keyDisplayer) VisitFunction(k FunctionKey) {
	d.result = formatValue(k.Value)
}
