package reconcile

import (
	"encoding/json"
	"sort"

	"github.com/fleetmarket/vinfill/internal/enum"
)

// Provenance is the set of logical fields whose current value came from
// the latest decode. A decode replaces it wholesale.
type Provenance map[string]struct{}

// NewProvenance returns a set holding fields.
func NewProvenance(fields ...string) Provenance {
	p := make(Provenance, len(fields))
	for _, f := range fields {
		p[f] = struct{}{}
	}
	return p
}

// Has reports whether field was auto-filled.
func (p Provenance) Has(field string) bool {
	_, ok := p[field]
	return ok
}

// Len returns the number of auto-filled fields.
func (p Provenance) Len() int { return len(p) }

// Fields returns the auto-filled field names sorted.
func (p Provenance) Fields() []string {
	out := make([]string, 0, len(p))
	for f := range p {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (p Provenance) Clone() Provenance {
	out := make(Provenance, len(p))
	for f := range p {
		out[f] = struct{}{}
	}
	return out
}

// MarshalJSON renders the set as a sorted list.
func (p Provenance) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Fields())
}

// Summary backs the "N fields auto-filled" indicator.
type Summary struct {
	AutoFilled   int             `json:"auto_filled"`
	DataSources  []string        `json:"data_sources,omitempty"`
	Confidence   enum.Confidence `json:"confidence,omitempty"`
	EPAAvailable bool            `json:"epa_available"`
}

// IsZero reports whether there is nothing to display.
func (s Summary) IsZero() bool {
	return s.AutoFilled == 0 && len(s.DataSources) == 0 && s.Confidence == "" && !s.EPAAvailable
}

// Skip records a field that a payload mentioned but could not fill.
type Skip struct {
	Field  string `json:"field"`
	Key    string `json:"key"`
	Reason string `json:"reason"`
}
