// Package draft holds in-progress listings: the VIN, the form table, the
// wizard position and what the latest decode filled in.
package draft

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fleetmarket/vinfill/internal/decode"
	"github.com/fleetmarket/vinfill/internal/form"
	"github.com/fleetmarket/vinfill/internal/payload"
	"github.com/fleetmarket/vinfill/internal/reconcile"
	"github.com/fleetmarket/vinfill/internal/wizard"
)

// ErrStaleDecode is returned when a decode result arrives after the VIN
// changed or a newer decode started. The result is discarded.
var ErrStaleDecode = eris.New("draft: stale decode result")

// Ticket identifies one decode request. Only the ticket carrying the
// latest generation may apply its result.
type Ticket struct {
	Gen uint64 `json:"gen"`
	VIN string `json:"vin"`
}

// Draft is a single listing being created. Methods are safe for
// concurrent use.
type Draft struct {
	mu sync.Mutex

	id      string
	vin     string
	table   *form.Table
	ctrl    *wizard.Controller
	guard   wizard.Guard
	engine  *reconcile.Engine
	prov    reconcile.Provenance
	summary reconcile.Summary

	gen       uint64
	decoding  bool
	decodeErr string
	warnings  []string

	createdAt time.Time
	updatedAt time.Time
}

// New returns an empty draft positioned on the first step.
func New(id string, engine *reconcile.Engine) *Draft {
	tbl := form.New()
	now := time.Now().UTC()
	return &Draft{
		id:        id,
		table:     tbl,
		ctrl:      wizard.NewController(tbl),
		engine:    engine,
		prov:      reconcile.NewProvenance(),
		createdAt: now,
		updatedAt: now,
	}
}

// ID returns the draft identifier.
func (d *Draft) ID() string { return d.id }

// SetVIN records what the dealer typed. A VIN that is too short, or that
// differs from the previous one, drops the auto-fill state and invalidates
// any decode in flight. It reports whether a decode should start. The same
// VIN starts one again only after its last decode failed.
func (d *Draft) SetVIN(raw string) bool {
	vin := decode.NormalizeVIN(raw)

	d.mu.Lock()
	defer d.mu.Unlock()

	if vin == d.vin && len(vin) == decode.VINLength {
		return !d.decoding && d.decodeErr != ""
	}
	d.vin = vin
	d.resetEnrichment()
	d.touch()
	return decode.ValidateVIN(vin) == nil
}

func (d *Draft) resetEnrichment() {
	d.gen++
	d.prov = reconcile.NewProvenance()
	d.summary = reconcile.Summary{}
	d.decoding = false
	d.decodeErr = ""
	d.warnings = nil
}

// BeginDecode issues a ticket for the current VIN. Earlier tickets become
// stale.
func (d *Draft) BeginDecode() (Ticket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := decode.ValidateVIN(d.vin); err != nil {
		return Ticket{}, eris.Wrap(err, "draft: begin decode")
	}
	d.gen++
	d.decoding = true
	d.decodeErr = ""
	return Ticket{Gen: d.gen, VIN: d.vin}, nil
}

// ApplyDecode reconciles a decode result into the form. The wizard step
// seen before the pass is the step seen after it, whatever the writes
// triggered.
func (d *Draft) ApplyDecode(t Ticket, p payload.Payload) (reconcile.Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t.Gen != d.gen || t.VIN != d.vin {
		zap.L().Info("draft: discarding stale decode",
			zap.String("draft_id", d.id),
			zap.String("vin", t.VIN),
			zap.Uint64("ticket_gen", t.Gen),
			zap.Uint64("current_gen", d.gen),
		)
		return reconcile.Outcome{}, eris.Wrapf(ErrStaleDecode, "generation %d, current %d", t.Gen, d.gen)
	}

	d.guard.Enter(d.ctrl.Step())
	out := d.engine.Apply(p, d.table, d.ctrl.Step())
	d.ctrl.Flush()
	restored, err := d.guard.Settle(d.ctrl)
	if err != nil {
		return out, eris.Wrap(err, "draft: restore step")
	}
	if restored {
		zap.L().Debug("draft: restored wizard step after decode",
			zap.String("draft_id", d.id),
			zap.Stringer("step", out.RestoreStep),
		)
	}

	d.prov = out.Provenance
	d.summary = out.Summary
	d.decoding = false
	d.touch()
	return out, nil
}

// FailDecode records a provider failure for the current ticket. Failures
// of stale tickets are ignored.
func (d *Draft) FailDecode(t Ticket, cause error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t.Gen != d.gen {
		return
	}
	d.decoding = false
	if cause != nil {
		d.decodeErr = cause.Error()
	}
	d.touch()
}

// AddWarning attaches a non-fatal decode note such as a check digit
// mismatch.
func (d *Draft) AddWarning(t Ticket, msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t.Gen == d.gen {
		d.warnings = append(d.warnings, msg)
	}
}

// EditField applies a dealer edit. The field stops counting as
// auto-filled. A nil or blank value clears the field.
func (d *Draft) EditField(field string, raw any) error {
	v, ok, err := reconcile.Coerce(field, raw)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if ok {
		d.table.Set(field, v)
	} else {
		d.table.Clear(field)
	}
	if d.prov.Has(field) {
		delete(d.prov, field)
		d.summary.AutoFilled = d.prov.Len()
	}
	d.ctrl.Flush()
	d.touch()
	return nil
}

// Next validates the current step and advances.
func (d *Draft) Next() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.touch()
	return d.ctrl.Next()
}

// Back moves one step back.
func (d *Draft) Back() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ctrl.Back()
	d.touch()
}

// Goto jumps to a reachable step.
func (d *Draft) Goto(s wizard.Step) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.touch()
	return d.ctrl.Goto(s)
}

func (d *Draft) touch() { d.updatedAt = time.Now().UTC() }

// View is a point-in-time copy of a draft for rendering.
type View struct {
	ID         string                `json:"id"`
	VIN        string                `json:"vin"`
	Step       wizard.Step           `json:"step"`
	StepName   string                `json:"step_name"`
	Fields     map[string]form.Value `json:"fields"`
	ReadOnly   []string              `json:"read_only"`
	AutoFilled int                   `json:"auto_filled"`
	Summary    *reconcile.Summary    `json:"summary,omitempty"`
	Decoding   bool                  `json:"decoding"`
	DecodeErr  string                `json:"decode_error,omitempty"`
	Warnings   []string              `json:"warnings,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// State returns a view of the draft.
func (d *Draft) State() View {
	d.mu.Lock()
	defer d.mu.Unlock()

	v := View{
		ID:         d.id,
		VIN:        d.vin,
		Step:       d.ctrl.Step(),
		StepName:   d.ctrl.Step().String(),
		Fields:     d.table.Snapshot(),
		ReadOnly:   d.prov.Fields(),
		AutoFilled: d.prov.Len(),
		Decoding:   d.decoding,
		DecodeErr:  d.decodeErr,
		Warnings:   append([]string(nil), d.warnings...),
		CreatedAt:  d.createdAt,
		UpdatedAt:  d.updatedAt,
	}
	if !d.summary.IsZero() {
		s := d.summary
		s.DataSources = append([]string(nil), s.DataSources...)
		v.Summary = &s
	}
	return v
}

// Provenance returns a copy of the auto-filled set.
func (d *Draft) Provenance() reconcile.Provenance {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prov.Clone()
}
