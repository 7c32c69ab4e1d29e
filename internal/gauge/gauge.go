// Package gauge implements the clamped fullness scalar carried by the player
// and by every NPC. A gauge eases its displayed value toward a target and
// notifies observers on every change and on arrival.
package gauge

import "sort"

// DefaultRate is the transition speed used when none is configured: a full
// transition takes 1/rate seconds.
const DefaultRate = 2.0

// Gauge is a fullness value in [-1, 1] with a single smoothed transition slot.
// It is not safe for concurrent use; the simulation ticks it from one goroutine.
type Gauge struct {
	current float64
	target  float64
	rate    float64 // transitions per second
	epsilon float64

	// In-flight transition. Replaced wholesale by SetTarget.
	active   bool
	start    float64
	progress float64 // 0..1

	nextID     int
	onChange   map[int]func(float64)
	onComplete map[int]func(float64)
}

// New creates a gauge resting at initial. A non-positive rate falls back to DefaultRate.
func New(initial, rate float64) *Gauge {
	if rate <= 0 {
		rate = DefaultRate
	}
	v := ClampUnit(initial)
	return &Gauge{
		current:    v,
		target:     v,
		rate:       rate,
		epsilon:    DefaultEpsilon,
		onChange:   make(map[int]func(float64)),
		onComplete: make(map[int]func(float64)),
	}
}

// Current returns the displayed value. The shader collaborator reads this.
func (g *Gauge) Current() float64 { return g.current }

// Target returns the value the gauge is easing toward.
func (g *Gauge) Target() float64 { return g.target }

// Percent returns Current mapped to [0, 100].
func (g *Gauge) Percent() float64 { return Percent(g.current) }

// Rate returns the transition speed.
func (g *Gauge) Rate() float64 { return g.rate }

// SetRate changes the transition speed for the current and future transitions.
func (g *Gauge) SetRate(rate float64) {
	if rate > 0 {
		g.rate = rate
	}
}

// InTransition reports whether a smoothed transition is running.
func (g *Gauge) InTransition() bool { return g.active }

// Full reports whether the displayed value sits at the ceiling.
func (g *Gauge) Full() bool { return g.current >= Ceil }

// Empty reports whether the displayed value sits at the floor.
func (g *Gauge) Empty() bool { return g.current <= Floor }

// Headroom is how far the gauge can still drop before hitting the floor.
func (g *Gauge) Headroom() float64 { return g.current - Floor }

// SetTarget clamps value and starts a transition toward it, replacing any
// transition already running. A target equal to the present one is a no-op.
func (g *Gauge) SetTarget(value float64) {
	value = ClampUnit(value)
	if Approximately(value, g.target, g.epsilon) {
		return
	}
	g.target = value
	g.start = g.current
	g.progress = 0
	g.active = true
}

// AddTarget is SetTarget(Target() + delta).
func (g *Gauge) AddTarget(delta float64) {
	g.SetTarget(g.target + delta)
}

// Tick advances the running transition by dt seconds.
func (g *Gauge) Tick(dt float64) {
	if !g.active || dt <= 0 {
		return
	}
	g.progress += dt * g.rate
	if g.progress >= 1 {
		g.finish()
		return
	}
	g.current = ClampUnit(Lerp(g.start, g.target, SmoothStep(0, 1, g.progress)))
	if Approximately(g.current, g.target, g.epsilon) {
		g.finish()
		return
	}
	g.emitChange()
}

func (g *Gauge) finish() {
	g.current = g.target
	g.active = false
	g.progress = 0
	g.emitChange()
	g.emitComplete()
}

// Drive sets the displayed value and target directly, cancelling any
// transition. The transfer protocol uses it to bypass smoothing.
func (g *Gauge) Drive(value float64) {
	value = ClampUnit(value)
	g.active = false
	g.progress = 0
	changed := value != g.current
	g.current = value
	g.target = value
	if changed {
		g.emitChange()
	}
}

// Nudge drives the gauge by delta and returns the delta actually applied
// after clamping.
func (g *Gauge) Nudge(delta float64) float64 {
	before := g.current
	g.Drive(before + delta)
	return g.current - before
}

// OnChange registers fn to observe every change of the displayed value.
// The returned func removes the observer.
func (g *Gauge) OnChange(fn func(current float64)) (unsubscribe func()) {
	return g.subscribe(g.onChange, fn)
}

// OnComplete registers fn to observe transitions arriving at their target.
func (g *Gauge) OnComplete(fn func(target float64)) (unsubscribe func()) {
	return g.subscribe(g.onComplete, fn)
}

func (g *Gauge) subscribe(set map[int]func(float64), fn func(float64)) func() {
	if fn == nil {
		return func() {}
	}
	id := g.nextID
	g.nextID++
	set[id] = fn
	return func() { delete(set, id) }
}

func (g *Gauge) emitChange()   { notify(g.onChange, g.current) }
func (g *Gauge) emitComplete() { notify(g.onComplete, g.target) }

// notify calls observers in subscription order over a copy, so an observer
// may unsubscribe itself.
func notify(set map[int]func(float64), v float64) {
	if len(set) == 0 {
		return
	}
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(float64), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, set[id])
	}
	for _, fn := range fns {
		fn(v)
	}
}
