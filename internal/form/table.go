// Package form holds the listing form's field table, the single source of
// truth the wizard renders from and validates against.
package form

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
)

// Kind is the canonical representation of a field value.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindBool
	KindEnum
)

// Value is a normalized field value.
type Value struct {
	Kind Kind
	Text string
	Num  float64
	Bool bool
}

// Text returns a free-text value.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// Flag returns a boolean value.
func Flag(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Enum returns an enumeration member value. Callers only pass members that
// already passed their enumeration's IsValid.
func Enum[T ~string](member T) Value { return Value{Kind: KindEnum, Text: string(member)} }

// Interface returns the value as a plain Go value for rendering.
func (v Value) Interface() any {
	switch v.Kind {
	case KindNumber:
		return v.Num
	case KindBool:
		return v.Bool
	default:
		return v.Text
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Text
	}
}

// MarshalJSON renders the bare value.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON reads a bare value. Enum members come back as text since
// the wire form does not distinguish them.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case float64:
		*v = Number(x)
	case bool:
		*v = Flag(x)
	case string:
		*v = Text(x)
	default:
		return eris.Errorf("form: cannot read %s as a field value", data)
	}
	return nil
}

// Origin says who wrote a field.
type Origin int

const (
	OriginDecode Origin = iota
	OriginUser
	OriginClear
)

// Listener observes every write to the table.
type Listener func(field string, v Value, origin Origin)

// Table maps logical field names to their current values. It is not safe
// for concurrent use; the owning draft serializes access.
type Table struct {
	values    map[string]Value
	dirty     map[string]bool
	listeners []Listener
}

// New returns an empty table.
func New() *Table {
	return &Table{
		values: make(map[string]Value),
		dirty:  make(map[string]bool),
	}
}

// OnChange registers fn to be called after every write.
func (t *Table) OnChange(fn Listener) {
	t.listeners = append(t.listeners, fn)
}

// Assign writes a provisional, decode-sourced value. It never validates and
// never marks the field dirty; a previous user edit of the field is
// superseded.
func (t *Table) Assign(field string, v Value) {
	t.values[field] = v
	delete(t.dirty, field)
	t.notify(field, v, OriginDecode)
}

// Set writes a user-entered value and marks the field dirty.
func (t *Table) Set(field string, v Value) {
	t.values[field] = v
	t.dirty[field] = true
	t.notify(field, v, OriginUser)
}

// Clear removes a field's value.
func (t *Table) Clear(field string) {
	if _, ok := t.values[field]; !ok {
		return
	}
	delete(t.values, field)
	delete(t.dirty, field)
	t.notify(field, Value{}, OriginClear)
}

// Get returns a field's value.
func (t *Table) Get(field string) (Value, bool) {
	v, ok := t.values[field]
	return v, ok
}

// Has reports whether a field holds a value.
func (t *Table) Has(field string) bool {
	_, ok := t.values[field]
	return ok
}

// Dirty reports whether the user has edited the field.
func (t *Table) Dirty(field string) bool {
	return t.dirty[field]
}

// Fields returns the populated field names in sorted order.
func (t *Table) Fields() []string {
	fields := make([]string, 0, len(t.values))
	for f := range t.values {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Snapshot returns a copy of all values.
func (t *Table) Snapshot() map[string]Value {
	out := make(map[string]Value, len(t.values))
	for f, v := range t.values {
		out[f] = v
	}
	return out
}

func (t *Table) notify(field string, v Value, origin Origin) {
	for _, fn := range t.listeners {
		fn(field, v, origin)
	}
}
