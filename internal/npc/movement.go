package npc

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/fullness/internal/geom"
	"github.com/talgya/fullness/internal/locomotion"
)

// Routines read their distances and speeds from settings on every step, so
// live tuning reaches NPCs that stay in one state.

// Wander strolls around an anchor: every delay seconds it picks a point
// within radius of the anchor and walks there. Points come from a noise
// walk seeded per NPC, so a given seed always wanders the same way.
type Wander struct {
	port     locomotion.Port
	anchor   geom.Vec3
	settings func() Settings
	noise    opensimplex.Noise

	wait float64
	walk float64 // position along the noise walk
}

// NewWander starts wandering immediately.
func NewWander(port locomotion.Port, anchor geom.Vec3, settings func() Settings, seed int64) *Wander {
	return &Wander{
		port:     port,
		anchor:   anchor,
		settings: settings,
		noise:    opensimplex.NewNormalized(seed),
	}
}

func (w *Wander) Step(dt float64) Status {
	st := w.settings()
	w.port.SetSpeed(st.Speeds.Wander)
	w.wait -= dt
	if w.wait > 0 {
		return Continue
	}
	w.wait = st.WanderDelay
	if p, ok := w.port.Sample(w.next(st.WanderRadius), st.WanderRadius); ok {
		w.port.MoveTo(p)
	}
	return Continue
}

// next is the following point of the noise walk, within radius of the
// anchor.
func (w *Wander) next(radius float64) geom.Vec3 {
	w.walk += 0.73
	angle := w.noise.Eval2(w.walk, 0) * 2 * math.Pi
	dist := math.Sqrt(w.noise.Eval2(0, w.walk)) * radius
	sin, cos := math.Sincos(angle)
	return w.anchor.Add(geom.V(cos*dist, 0, sin*dist))
}

// Seek follows a moving target and holds within stop distance of it.
// Approach waits after arriving before it follows again; Block does not.
// MoveTo is re-issued only when the target has moved more than the
// repath distance since the last command.
type Seek struct {
	port     locomotion.Port
	target   func() geom.Vec3
	settings func() Settings
	speed    func(Settings) float64
	waits    bool

	issued geom.Vec3
	moving bool
	hold   float64
}

// NewApproach seeks at approach speed and waits on arrival.
func NewApproach(port locomotion.Port, target func() geom.Vec3, settings func() Settings) *Seek {
	return &Seek{port: port, target: target, settings: settings, speed: approachSpeed, waits: true}
}

// NewBlock seeks at block speed and keeps pressing in.
func NewBlock(port locomotion.Port, target func() geom.Vec3, settings func() Settings) *Seek {
	return &Seek{port: port, target: target, settings: settings, speed: blockSpeed}
}

func approachSpeed(s Settings) float64 { return s.Speeds.Approach }
func blockSpeed(s Settings) float64    { return s.Speeds.Block }

func (sk *Seek) Step(dt float64) Status {
	st := sk.settings()
	sk.port.SetSpeed(sk.speed(st))
	if sk.hold > 0 {
		sk.hold -= dt
		return Continue
	}
	goal := sk.target()
	if sk.port.IsWithin(st.StopDistance, goal) {
		if sk.moving {
			sk.port.Stop()
			sk.moving = false
			if sk.waits {
				sk.hold = st.ApproachWait
			}
		}
		return Continue
	}
	if !sk.moving || sk.issued.FlatDist(goal) > st.RepathDistance {
		sk.port.MoveTo(goal)
		sk.issued = goal
		sk.moving = true
	}
	return Continue
}

// Commanded reports the last destination issued and whether the seeker is
// still travelling toward it.
func (sk *Seek) Commanded() (geom.Vec3, bool) { return sk.issued, sk.moving }

// fleeRotations are tried in order when the straight-away point is not
// reachable.
var fleeRotations = [...]float64{25, -25, 50, -50, 75, -75}

// FleeRoutine runs from a threat until it is at least the safe distance away.
//
// A transient flee finishes once safe. A persistent one stops and keeps
// watching, and runs again if the threat closes in.
type FleeRoutine struct {
	port       locomotion.Port
	threat     func() geom.Vec3
	settings   func() Settings
	persistent bool

	// OnSafe fires once each time the safe distance is reached.
	OnSafe func()

	issued geom.Vec3
	moving bool
	safeAt bool
}

// NewFlee flees from threat at flee speed.
func NewFlee(port locomotion.Port, threat func() geom.Vec3, settings func() Settings, persistent bool) *FleeRoutine {
	return &FleeRoutine{port: port, threat: threat, settings: settings, persistent: persistent}
}

func (f *FleeRoutine) Step(dt float64) Status {
	st := f.settings()
	f.port.SetSpeed(st.Speeds.Flee)
	pos, threat := f.port.Position(), f.threat()
	if pos.FlatDist(threat) >= st.SafeDistance {
		if !f.safeAt {
			f.safeAt = true
			f.halt()
			if f.OnSafe != nil {
				f.OnSafe()
			}
		}
		if f.persistent {
			return Continue
		}
		return Done
	}
	f.safeAt = false

	target, ok := f.pick(pos, threat, st.SafeDistance)
	if !ok {
		// Boxed in. Hold this tick and try again on the next.
		f.halt()
		return Continue
	}
	if !f.moving || f.issued.FlatDist(target) > st.RepathDistance {
		f.port.MoveTo(target)
		f.issued = target
		f.moving = true
	}
	return Continue
}

// pick returns the first reachable flee point: straight away from the
// threat, then rotated by each of fleeRotations.
func (f *FleeRoutine) pick(pos, threat geom.Vec3, safe float64) (geom.Vec3, bool) {
	dir := pos.Sub(threat).Flat().Normalize()
	if dir.IsZero() {
		dir = geom.V(1, 0, 0)
	}
	if p := pos.Add(dir.Scale(safe)); f.port.Reachable(p) {
		return p, true
	}
	for _, deg := range fleeRotations {
		if p := pos.Add(dir.RotateY(deg).Scale(safe)); f.port.Reachable(p) {
			return p, true
		}
	}
	return geom.Vec3{}, false
}

func (f *FleeRoutine) halt() {
	f.port.Stop()
	f.moving = false
}
