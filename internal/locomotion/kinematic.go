package locomotion

import "github.com/talgya/fullness/internal/geom"

// Obstacle is a blocked disc on the ground plane.
type Obstacle struct {
	Center geom.Vec3 `json:"center" yaml:"center"`
	Radius float64   `json:"radius" yaml:"radius"`
}

// Area is the walkable region: a disc around the origin minus obstacles.
// A zero Radius means unbounded.
type Area struct {
	Radius    float64    `json:"radius" yaml:"radius"`
	Obstacles []Obstacle `json:"obstacles,omitempty" yaml:"obstacles"`
}

// Walkable reports whether p lies inside the area and outside every obstacle.
func (a *Area) Walkable(p geom.Vec3) bool {
	if a == nil {
		return true
	}
	if a.Radius > 0 && p.Flat().Len() > a.Radius {
		return false
	}
	for _, o := range a.Obstacles {
		if p.FlatDist(o.Center) < o.Radius {
			return false
		}
	}
	return true
}

// Kinematic moves in a straight line toward its destination at Speed. It
// stands in for a nav-mesh agent when the simulation runs headless.
type Kinematic struct {
	pos     geom.Vec3
	dest    geom.Vec3
	hasDest bool
	stopped bool
	speed   float64
	area    *Area

	// Arrival tolerance.
	Tolerance float64
}

// NewKinematic places a mover at pos inside area (nil for unbounded).
func NewKinematic(pos geom.Vec3, speed float64, area *Area) *Kinematic {
	return &Kinematic{
		pos:       pos,
		speed:     speed,
		area:      area,
		stopped:   true,
		Tolerance: 0.05,
	}
}

func (k *Kinematic) Position() geom.Vec3 { return k.pos }

// Teleport moves the mover without travelling. Used when restoring state.
func (k *Kinematic) Teleport(p geom.Vec3) {
	k.pos = p
	k.hasDest = false
	k.stopped = true
}

// Destination returns the active destination, if any.
func (k *Kinematic) Destination() (geom.Vec3, bool) { return k.dest, k.hasDest }

// MoveTo sets a destination. Unreachable destinations are ignored, like a
// failed SetDestination on a nav agent.
func (k *Kinematic) MoveTo(p geom.Vec3) {
	if !k.Reachable(p) {
		return
	}
	k.dest = p
	k.hasDest = true
	k.stopped = false
}

func (k *Kinematic) Stop() { k.stopped = true }
func (k *Kinematic) Stopped() bool { return k.stopped }
func (k *Kinematic) Speed() float64 { return k.speed }

func (k *Kinematic) SetSpeed(speed float64) {
	if speed < 0 {
		speed = 0
	}
	k.speed = speed
}

func (k *Kinematic) IsWithin(distance float64, p geom.Vec3) bool {
	return k.pos.Dist(p) <= distance
}

func (k *Kinematic) Reachable(p geom.Vec3) bool { return k.area.Walkable(p) }

// Sample walks from p back toward the mover in eight steps and returns the
// first walkable point that is still within radius of p.
func (k *Kinematic) Sample(p geom.Vec3, radius float64) (geom.Vec3, bool) {
	if k.Reachable(p) {
		return p, true
	}
	back := k.pos.Sub(p)
	for i := 1; i <= 8; i++ {
		c := p.Add(back.Scale(float64(i) / 8))
		if c.Dist(p) > radius {
			break
		}
		if k.Reachable(c) {
			return c, true
		}
	}
	return geom.Vec3{}, false
}

// Moving reports whether the mover is travelling this tick.
func (k *Kinematic) Moving() bool { return k.hasDest && !k.stopped }

// Step advances the mover by dt seconds and returns the distance travelled.
func (k *Kinematic) Step(dt float64) float64 {
	if !k.Moving() || dt <= 0 || k.speed <= 0 {
		return 0
	}
	to := k.dest.Sub(k.pos)
	dist := to.Len()
	if dist <= k.Tolerance {
		k.pos = k.dest
		k.hasDest = false
		return dist
	}
	step := k.speed * dt
	if step >= dist {
		k.pos = k.dest
		k.hasDest = false
		return dist
	}
	k.pos = k.pos.Add(to.Scale(step / dist))
	return step
}
