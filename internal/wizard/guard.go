package wizard

// Stepper is the part of the controller the guard needs.
type Stepper interface {
	Step() Step
	ForceStep(s Step) error
}

type guardState int

const (
	guardIdle guardState = iota
	guardPendingRestore
)

// Guard keeps decode-triggered writes from changing the visible step.
// Enter snapshots the step before reconciliation; Settle, called once the
// writes and their deferred effects have flushed, puts it back.
type Guard struct {
	state    guardState
	snapshot Step
}

// Enter records the step to restore. A later Enter replaces the snapshot.
func (g *Guard) Enter(current Step) {
	g.snapshot = current
	g.state = guardPendingRestore
}

// Pending reports whether a restore is outstanding.
func (g *Guard) Pending() bool { return g.state == guardPendingRestore }

// Snapshot returns the recorded step.
func (g *Guard) Snapshot() Step { return g.snapshot }

// Settle restores the snapshot if the live step drifted and returns the
// guard to idle. It reports whether a restore happened; settling an idle
// guard does nothing.
func (g *Guard) Settle(s Stepper) (bool, error) {
	if g.state != guardPendingRestore {
		return false, nil
	}
	g.state = guardIdle
	if s.Step() == g.snapshot {
		return false, nil
	}
	if err := s.ForceStep(g.snapshot); err != nil {
		return false, err
	}
	return true, nil
}
