package npc

// Status is what a routine reports after a step.
type Status uint8

const (
	Continue Status = iota
	Done
)

// Routine is a multi-tick activity advanced by the simulation tick.
type Routine interface {
	Step(dt float64) Status
}

// Canceler is implemented by routines that must release something when
// they are replaced.
type Canceler interface {
	Cancel()
}

// Runner holds the single active routine of one actor. Starting a routine
// cancels the one before it, so two routines never drive the same mover.
type Runner struct {
	active Routine
}

// Start replaces the active routine with r.
func (rn *Runner) Start(r Routine) {
	rn.Stop()
	rn.active = r
}

// Stop cancels and clears the active routine.
func (rn *Runner) Stop() {
	if c, ok := rn.active.(Canceler); ok {
		c.Cancel()
	}
	rn.active = nil
}

// Active returns the running routine, or nil.
func (rn *Runner) Active() Routine { return rn.active }

// Step advances the active routine. A routine that finishes is cleared
// unless it started a successor during its own step.
func (rn *Runner) Step(dt float64) Status {
	cur := rn.active
	if cur == nil {
		return Done
	}
	st := cur.Step(dt)
	if st == Done && rn.active == cur {
		rn.active = nil
	}
	return st
}
