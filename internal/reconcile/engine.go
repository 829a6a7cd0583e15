// Package reconcile maps a decoded VIN payload onto the listing form: alias
// resolution, type conversion, enumeration normalization, derived fields
// and the provenance of everything it wrote.
package reconcile

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fleetmarket/vinfill/internal/derive"
	"github.com/fleetmarket/vinfill/internal/form"
	"github.com/fleetmarket/vinfill/internal/payload"
	"github.com/fleetmarket/vinfill/internal/wizard"
)

// Outcome is the result of one reconciliation pass.
type Outcome struct {
	Provenance  Provenance  `json:"provenance"`
	Summary     Summary     `json:"summary"`
	Skipped     []Skip      `json:"skipped,omitempty"`
	RestoreStep wizard.Step `json:"restore_step"`
}

// Engine reconciles payloads against a fixed field list.
type Engine struct {
	fields []FieldSpec
}

// NewEngine returns an engine over the standard decode fields.
func NewEngine() *Engine {
	return &Engine{fields: decodeFields}
}

// Apply walks the field list once. Each field whose first present raw key
// converts cleanly is assigned to t and recorded; anything absent,
// wrong-typed, out of range or unmapped leaves t untouched. The caller's
// step comes back unchanged as RestoreStep so it can undo incidental
// navigation caused by the writes.
func (e *Engine) Apply(p payload.Payload, t *form.Table, current wizard.Step) Outcome {
	prov := make(Provenance, len(e.fields))
	var skipped []Skip

	for _, spec := range e.fields {
		key, raw := p.Lookup(spec.Keys...)
		if !raw.Present() {
			continue
		}
		v, reason := convert(spec, raw)
		if reason != "" {
			skipped = append(skipped, Skip{Field: spec.Name, Key: key, Reason: reason})
			continue
		}
		t.Assign(spec.Name, v)
		prov[spec.Name] = struct{}{}
	}

	sum := Summary{
		AutoFilled:   prov.Len(),
		DataSources:  p.DataSources(),
		EPAAvailable: p.EPAAvailable(),
	}
	if c, ok := p.NHTSAConfidence(); ok {
		sum.Confidence = c
	}

	zap.L().Debug("reconcile: applied payload",
		zap.Int("filled", prov.Len()),
		zap.Int("skipped", len(skipped)),
		zap.Stringer("step", current),
	)

	return Outcome{
		Provenance:  prov,
		Summary:     sum,
		Skipped:     skipped,
		RestoreStep: current,
	}
}

// ErrUnknownField is returned by Coerce for names outside the form.
var ErrUnknownField = eris.New("reconcile: unknown field")

// ErrInvalidValue is returned by Coerce when a user value cannot be
// converted to the field's kind.
var ErrInvalidValue = eris.New("reconcile: invalid value")

// Coerce converts a dealer-entered value with the same rules decode uses.
// A nil or blank value reports ok=false, meaning the field should be
// cleared.
func Coerce(field string, raw any) (v form.Value, ok bool, err error) {
	spec, known := Spec(field)
	if !known {
		return form.Value{}, false, eris.Wrapf(ErrUnknownField, "coerce %q", field)
	}
	p, err := payload.FromMap(map[string]any{field: raw})
	if err != nil {
		return form.Value{}, false, eris.Wrapf(ErrInvalidValue, "coerce %q: %v", field, err)
	}
	val := p.Get(field)
	if !val.Present() {
		return form.Value{}, false, nil
	}
	// Dealers type the stored field, so the derived roof height is entered
	// as a category rather than inches.
	if spec.kind == kindRoofHeight {
		s, out := val.Text()
		if out != payload.OK {
			return form.Value{}, false, eris.Wrapf(ErrInvalidValue, "coerce %q: %s", field, ReasonWrongType)
		}
		cat, ok := derive.ParseRoofHeight(s)
		if !ok {
			return form.Value{}, false, eris.Wrapf(ErrInvalidValue, "coerce %q: %s", field, ReasonUnmapped)
		}
		return form.Enum(cat), true, nil
	}
	v, reason := convert(spec, val)
	if reason != "" {
		return form.Value{}, false, eris.Wrapf(ErrInvalidValue, "coerce %q: %s", field, reason)
	}
	return v, true, nil
}
