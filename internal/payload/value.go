package payload

import (
	"math"
	"strconv"
	"strings"
)

// Kind is the JSON shape of a raw provider value.
type Kind int

const (
	KindAbsent Kind = iota
	KindNull
	KindString
	KindNumber
	KindBool
	KindList
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Outcome is the result of reading a Value as a particular type.
type Outcome int

const (
	// OK means the value converted cleanly.
	OK Outcome = iota
	// Missing means the key was absent, null or an empty string.
	Missing
	// WrongType means a value was present but could not be read as the
	// requested type.
	WrongType
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Missing:
		return "missing"
	case WrongType:
		return "wrong_type"
	default:
		return "unknown"
	}
}

// Value is one raw provider value.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	list []string
}

// Kind returns the JSON shape of v.
func (v Value) Kind() Kind { return v.kind }

// Present reports whether v carries data: not absent, not null and not a
// blank string.
func (v Value) Present() bool {
	switch v.kind {
	case KindAbsent, KindNull:
		return false
	case KindString:
		return strings.TrimSpace(v.str) != ""
	default:
		return true
	}
}

// Text reads v as trimmed text. Numbers are formatted without trailing
// zeros; booleans, lists and objects are WrongType.
func (v Value) Text() (string, Outcome) {
	if !v.Present() {
		return "", Missing
	}
	switch v.kind {
	case KindString:
		return strings.TrimSpace(v.str), OK
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64), OK
	default:
		return "", WrongType
	}
}

// Number reads v as a finite float. Numeric strings are accepted with
// thousands separators ("7,260").
func (v Value) Number() (float64, Outcome) {
	if !v.Present() {
		return 0, Missing
	}
	var n float64
	switch v.kind {
	case KindNumber:
		n = v.num
	case KindString:
		s := strings.ReplaceAll(strings.TrimSpace(v.str), ",", "")
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, WrongType
		}
		n = parsed
	default:
		return 0, WrongType
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, WrongType
	}
	return n, OK
}

// Int reads v as a whole number.
func (v Value) Int() (int, Outcome) {
	n, out := v.Number()
	if out != OK {
		return 0, out
	}
	if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
		return 0, WrongType
	}
	return int(n), OK
}

var (
	truthy = map[string]bool{"true": true, "yes": true, "y": true, "standard": true, "std": true, "1": true}
	falsy  = map[string]bool{"false": true, "no": true, "n": true, "not applicable": true, "none": true, "0": true}
)

// Bool reads v as a flag. Strings like "Standard" and "Not Applicable"
// are how vPIC reports equipment, so they are accepted.
func (v Value) Bool() (bool, Outcome) {
	if !v.Present() {
		return false, Missing
	}
	switch v.kind {
	case KindBool:
		return v.b, OK
	case KindNumber:
		switch v.num {
		case 1:
			return true, OK
		case 0:
			return false, OK
		}
		return false, WrongType
	case KindString:
		s := strings.ToLower(strings.TrimSpace(v.str))
		if truthy[s] {
			return true, OK
		}
		if falsy[s] {
			return false, OK
		}
		return false, WrongType
	default:
		return false, WrongType
	}
}

// Strings reads v as a list of strings. A single string becomes a
// one-element list.
func (v Value) Strings() ([]string, Outcome) {
	if !v.Present() {
		return nil, Missing
	}
	switch v.kind {
	case KindList:
		return append([]string(nil), v.list...), OK
	case KindString:
		return []string{strings.TrimSpace(v.str)}, OK
	default:
		return nil, WrongType
	}
}
