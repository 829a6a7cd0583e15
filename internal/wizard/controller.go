package wizard

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fleetmarket/vinfill/internal/form"
)

// maxFlushRounds bounds Flush when effects keep re-queueing each other.
const maxFlushRounds = 1000

// ErrStepOutOfRange is returned when a step index is outside the wizard.
var ErrStepOutOfRange = eris.New("wizard: step out of range")

// ErrStepUnreachable is returned by Goto when an earlier step is incomplete.
var ErrStepUnreachable = eris.New("wizard: step not reachable")

// Effect is a deferred side effect of a form change.
type Effect func(c *Controller)

// Controller owns the wizard step pointer. Form writes schedule effects
// instead of acting immediately; Flush runs them once the writes settle.
type Controller struct {
	table        *form.Table
	step         Step
	queue        []Effect
	clampPending bool
}

// NewController binds a controller to a form table. Every table write
// defers a clamp that pulls the pointer back to the furthest step whose
// predecessors all validate.
func NewController(t *form.Table) *Controller {
	c := &Controller{table: t}
	t.OnChange(func(string, form.Value, form.Origin) {
		if c.clampPending {
			return
		}
		c.clampPending = true
		c.Defer(func(c *Controller) {
			c.clampPending = false
			c.clamp()
		})
	})
	return c
}

// Step returns the active step.
func (c *Controller) Step() Step { return c.step }

// Next validates the active step and advances past it.
func (c *Controller) Next() error {
	if err := Validate(c.step, c.table); err != nil {
		return err
	}
	if c.step < StepCount-1 {
		c.step++
	}
	return nil
}

// Back moves to the previous step. It never validates.
func (c *Controller) Back() {
	if c.step > 0 {
		c.step--
	}
}

// Goto jumps to s. Moving forward requires every step before s to
// validate; moving back is always allowed.
func (c *Controller) Goto(s Step) error {
	if !s.Valid() {
		return eris.Wrapf(ErrStepOutOfRange, "goto %d", int(s))
	}
	if s > c.step && s > c.Reachable() {
		return eris.Wrapf(ErrStepUnreachable, "goto %s", s)
	}
	c.step = s
	return nil
}

// ForceStep sets the pointer without validation.
func (c *Controller) ForceStep(s Step) error {
	if !s.Valid() {
		return eris.Wrapf(ErrStepOutOfRange, "force %d", int(s))
	}
	c.step = s
	return nil
}

// Reachable returns the furthest step the dealer may stand on: the first
// step that fails validation, or the last step when all pass.
func (c *Controller) Reachable() Step {
	for _, s := range Steps() {
		if Validate(s, c.table) != nil {
			return s
		}
	}
	return StepCount - 1
}

// Defer queues an effect to run on the next Flush.
func (c *Controller) Defer(fn Effect) {
	c.queue = append(c.queue, fn)
}

// Pending returns the number of queued effects.
func (c *Controller) Pending() int { return len(c.queue) }

// Flush runs queued effects, including ones queued while flushing, until
// the queue is empty.
func (c *Controller) Flush() {
	for rounds := 0; len(c.queue) > 0; rounds++ {
		if rounds >= maxFlushRounds {
			zap.L().Warn("wizard: dropping effects after flush limit",
				zap.Int("dropped", len(c.queue)),
			)
			c.queue = nil
			c.clampPending = false
			return
		}
		fn := c.queue[0]
		c.queue = c.queue[1:]
		fn(c)
	}
}

func (c *Controller) clamp() {
	if r := c.Reachable(); c.step > r {
		zap.L().Debug("wizard: clamping step",
			zap.Stringer("from", c.step),
			zap.Stringer("to", r),
		)
		c.step = r
	}
}
