package main

import (
	"log/slog"
	"math/rand"

	"github.com/talgya/fullness/internal/engine"
	"github.com/talgya/fullness/internal/geom"
)

// autoPilot stands in for the movement and input collaborators: it walks
// the player toward a random actor and presses the primary action about
// once a second while something is in range.
type autoPilot struct {
	rng        *rand.Rand
	pressEvery uint64
	target     string
}

func newAutoPilot(seed int64, tickRate int) *autoPilot {
	if seed == 0 {
		seed = rand.Int63()
	}
	return &autoPilot{rng: rand.New(rand.NewSource(seed + 17)), pressEvery: uint64(max(tickRate, 1))}
}

func (p *autoPilot) drive(sim *engine.Simulation, tick uint64) {
	mover := sim.Player.Mover()
	if _, alive := sim.Actor(p.target); !alive || !mover.Moving() {
		p.pick(sim)
	}
	if a, ok := sim.Actor(p.target); ok {
		mover.MoveTo(a.Position())
	}
	if tick%p.pressEvery == 0 && len(sim.Player.InRange()) > 0 {
		sim.PressPrimary()
	}
}

func (p *autoPilot) pick(sim *engine.Simulation) {
	actors := sim.Actors()
	if len(actors) == 0 {
		// Nothing left; wander around the origin.
		p.target = ""
		sim.Player.Mover().MoveTo(geom.V(p.rng.Float64()*20-10, 0, p.rng.Float64()*20-10))
		return
	}
	a := actors[p.rng.Intn(len(actors))]
	if a.ID() != p.target {
		slog.Debug("autopilot target", "actor", a.ID())
	}
	p.target = a.ID()
}
