// Package payload models the raw, loosely-typed attribute map returned by
// VIN-decode providers. Every key resolves to a Value whose Kind records
// the JSON shape, so callers can tell "absent" from "present but wrong
// type" instead of guessing with runtime assertions.
package payload

import (
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/fleetmarket/vinfill/internal/enum"
)

// Metadata keys written by the decode collaborator.
const (
	KeyDataSources     = "dataSources"
	KeyNHTSAConfidence = "nhtsaConfidence"
	KeyEPAAvailable    = "epaAvailable"
)

// Payload is an immutable RawDecodedPayload.
type Payload struct {
	raw    []byte
	values map[string]Value
}

// FromJSON parses a JSON object. Nested values are kept as lists (of
// their string forms) or opaque objects.
func FromJSON(data []byte) (Payload, error) {
	if !gjson.ValidBytes(data) {
		return Payload{}, eris.New("payload: invalid json")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Payload{}, eris.New("payload: top-level value must be an object")
	}

	p := Payload{
		raw:    append([]byte(nil), data...),
		values: make(map[string]Value),
	}
	root.ForEach(func(key, val gjson.Result) bool {
		p.values[key.String()] = fromResult(val)
		return true
	})
	return p, nil
}

// FromMap builds a Payload from an in-memory map by round-tripping it
// through JSON, so map and wire payloads read identically.
func FromMap(m map[string]any) (Payload, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return Payload{}, eris.Wrap(err, "payload: marshal map")
	}
	return FromJSON(data)
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return Value{kind: KindNull}
	case gjson.False, gjson.True:
		return Value{kind: KindBool, b: r.Bool()}
	case gjson.Number:
		return Value{kind: KindNumber, num: r.Float()}
	case gjson.String:
		return Value{kind: KindString, str: r.Str}
	case gjson.JSON:
		if r.IsArray() {
			var items []string
			for _, item := range r.Array() {
				items = append(items, item.String())
			}
			return Value{kind: KindList, list: items}
		}
		return Value{kind: KindObject}
	default:
		return Value{kind: KindAbsent}
	}
}

// Get returns the value stored under key, or an absent Value.
func (p Payload) Get(key string) Value {
	if v, ok := p.values[key]; ok {
		return v
	}
	return Value{kind: KindAbsent}
}

// Lookup resolves aliases in precedence order: the first key holding a
// present value wins, whatever its type. Later aliases are consulted only
// when every earlier key is missing. When nothing is present it returns
// the first key and an absent or empty value.
func (p Payload) Lookup(keys ...string) (string, Value) {
	for _, k := range keys {
		if v := p.Get(k); v.Present() {
			return k, v
		}
	}
	if len(keys) == 0 {
		return "", Value{kind: KindAbsent}
	}
	return keys[0], p.Get(keys[0])
}

// Keys returns the payload keys in sorted order.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys.
func (p Payload) Len() int { return len(p.values) }

// Raw returns the JSON the payload was built from.
func (p Payload) Raw() json.RawMessage {
	if p.raw == nil {
		return json.RawMessage("{}")
	}
	return append(json.RawMessage(nil), p.raw...)
}

// DataSources returns the provider names that contributed to the payload.
func (p Payload) DataSources() []string {
	sources, out := p.Get(KeyDataSources).Strings()
	if out != OK {
		return nil
	}
	return sources
}

// NHTSAConfidence returns the decode confidence grade, if reported.
func (p Payload) NHTSAConfidence() (enum.Confidence, bool) {
	s, out := p.Get(KeyNHTSAConfidence).Text()
	if out != OK {
		return "", false
	}
	return enum.NormalizeConfidence(s)
}

// EPAAvailable reports whether EPA fuel economy data was merged in.
func (p Payload) EPAAvailable() bool {
	b, out := p.Get(KeyEPAAvailable).Bool()
	return out == OK && b
}
