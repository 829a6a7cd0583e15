// Package wizard drives the multi-step listing form: the ordered steps,
// their validation, the step pointer and the guard that keeps background
// enrichment from moving it.
package wizard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/fleetmarket/vinfill/internal/enum"
	"github.com/fleetmarket/vinfill/internal/form"
)

// Step is a 0-indexed position in the listing wizard.
type Step int

const (
	StepVehicle Step = iota
	StepSpecifications
	StepFeatures
	StepPricing
	StepMedia
	StepReview
)

// StepCount is the fixed number of steps.
const StepCount = 6

var stepNames = [StepCount]string{"vehicle", "specifications", "features", "pricing", "media", "review"}

// Valid reports whether s is within [0, StepCount-1].
func (s Step) Valid() bool { return s >= 0 && s < StepCount }

func (s Step) String() string {
	if !s.Valid() {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// Steps returns every step in order.
func Steps() []Step {
	out := make([]Step, StepCount)
	for i := range out {
		out[i] = Step(i)
	}
	return out
}

// firstVINYear is the first model year with 17-character VINs.
const firstVINYear = 1981

// rule checks one constraint of a step against the table.
type rule func(t *form.Table) (field string, problem string)

type definition struct {
	required []string
	rules    []rule
}

var definitions = [StepCount]definition{
	StepVehicle: {
		required: []string{"year", "make", "model"},
		rules:    []rule{yearInRange},
	},
	StepSpecifications: {
		required: []string{"bodyStyle", "fuelType"},
		rules: []rule{
			enumMember("fuelType", func(s string) bool { return enum.FuelType(s).IsValid() }),
			enumMember("driveType", func(s string) bool { return enum.DriveType(s).IsValid() }),
			enumMember("rearWheels", func(s string) bool { return enum.RearWheels(s).IsValid() }),
			nonNegative("wheelbase", "gvwr", "payloadCapacity", "gawrFront", "gawrRear", "curbWeight", "towingCapacity", "fuelTankCapacity"),
		},
	},
	StepFeatures: {},
	StepPricing: {
		required: []string{"price"},
		rules:    []rule{positive("price")},
	},
	StepMedia:  {},
	StepReview: {},
}

// ValidationError lists the problems that keep a step from completing.
type ValidationError struct {
	Step     Step
	Problems map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Problems))
	for f := range e.Problems {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e.Problems[f])
	}
	return fmt.Sprintf("wizard: step %s invalid: %s", e.Step, strings.Join(parts, "; "))
}

// Validate checks a step's required fields and rules.
func Validate(s Step, t *form.Table) error {
	if !s.Valid() {
		return eris.Errorf("wizard: step %d out of range", int(s))
	}
	def := definitions[s]
	problems := make(map[string]string)
	for _, f := range def.required {
		if !t.Has(f) {
			problems[f] = "required"
		}
	}
	for _, r := range def.rules {
		if field, problem := r(t); problem != "" {
			if _, seen := problems[field]; !seen {
				problems[field] = problem
			}
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Step: s, Problems: problems}
}

func yearInRange(t *form.Table) (string, string) {
	v, ok := t.Get("year")
	if !ok {
		return "", ""
	}
	maxYear := time.Now().Year() + 2
	if v.Kind != form.KindNumber || v.Num < firstVINYear || v.Num > float64(maxYear) {
		return "year", fmt.Sprintf("must be between %d and %d", firstVINYear, maxYear)
	}
	return "", ""
}

func enumMember(field string, valid func(string) bool) rule {
	return func(t *form.Table) (string, string) {
		v, ok := t.Get(field)
		if !ok {
			return "", ""
		}
		if v.Kind != form.KindEnum || !valid(v.Text) {
			return field, "not a recognized value"
		}
		return "", ""
	}
}

func nonNegative(fields ...string) rule {
	return func(t *form.Table) (string, string) {
		for _, f := range fields {
			if v, ok := t.Get(f); ok && (v.Kind != form.KindNumber || v.Num < 0) {
				return f, "must be a non-negative number"
			}
		}
		return "", ""
	}
}

func positive(field string) rule {
	return func(t *form.Table) (string, string) {
		if v, ok := t.Get(field); ok && (v.Kind != form.KindNumber || v.Num <= 0) {
			return field, "must be greater than zero"
		}
		return "", ""
	}
}
