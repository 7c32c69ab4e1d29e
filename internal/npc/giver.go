package npc

import (
	"log/slog"

	"github.com/talgya/fullness/internal/gauge"
	"github.com/talgya/fullness/internal/geom"
	"github.com/talgya/fullness/internal/locomotion"
	"github.com/talgya/fullness/internal/transfer"
)

// Gifter runs the giver's transfer. *transfer.Protocol implements it.
type Gifter interface {
	Gift(source, sink transfer.Endpoint, duration float64) (*transfer.Transfer, error)
	Busy(source, sink string) bool
}

// GiverHooks observe a giver. Nil hooks are skipped.
type GiverHooks struct {
	StateChanged func(g *Giver, from, to State)
	// Consumed fires once when the gift completes.
	Consumed func(*Giver)
	// Terminated fires once when the giver removes itself.
	Terminated func(*Giver)
}

// GiverOptions configure a Giver.
type GiverOptions struct {
	ID       string
	Gauge    *gauge.Gauge
	Port     locomotion.Port
	Player   PlayerView
	Gifter   Gifter
	Settings func() Settings
	Hooks    GiverHooks
	Seed     int64
}

// Giver is a transient NPC that pours its whole gauge into the player once
// and then runs off and disappears.
//
//	WanderSlow -> Approach (player in range; exit goes back to wandering)
//	Approach -> GiverActive (within stop distance; runs to completion)
//	GiverActive -> Flee (gift done; Consumed fires)
//	Flee -> Terminated (safe distance reached)
type Giver struct {
	id       string
	gauge    *gauge.Gauge
	port     locomotion.Port
	player   PlayerView
	gifter   Gifter
	settings func() Settings
	hooks    GiverHooks
	seed     int64
	spawn    geom.Vec3
	log      *slog.Logger

	state   State
	inRange bool
	gift    *transfer.Transfer
	runner  Runner
}

// NewGiver builds a giver wandering around its current position.
func NewGiver(o GiverOptions) (*Giver, error) {
	if o.Port == nil {
		return nil, ErrNoLocomotion
	}
	if o.Gauge == nil {
		o.Gauge = gauge.New(gauge.Ceil, gauge.DefaultRate)
	}
	if o.Settings == nil {
		o.Settings = defaultSettings
	}
	g := &Giver{
		id:       o.ID,
		gauge:    o.Gauge,
		port:     o.Port,
		player:   o.Player,
		gifter:   o.Gifter,
		settings: o.Settings,
		hooks:    o.Hooks,
		seed:     o.Seed,
		spawn:    o.Port.Position(),
		log:      slog.With("giver", o.ID),
		state:    Idle,
	}
	g.transition(WanderSlow)
	return g, nil
}

func (g *Giver) ID() string          { return g.id }
func (g *Giver) State() State        { return g.state }
func (g *Giver) Gauge() *gauge.Gauge { return g.gauge }
func (g *Giver) Position() geom.Vec3 { return g.port.Position() }
func (g *Giver) Destroyed() bool     { return g.state == Terminated }

// Consumed reports whether the gift has been given.
func (g *Giver) Consumed() bool { return g.state == Flee || g.state == Terminated }

// Endpoint is the giver's side of the gift.
func (g *Giver) Endpoint() transfer.Endpoint {
	return transfer.Endpoint{ID: g.id, Gauge: g.gauge}
}

// Gift returns the running gift, if any.
func (g *Giver) Gift() *transfer.Transfer { return g.gift }

// PlayerEntered starts or restarts the approach.
func (g *Giver) PlayerEntered() {
	g.inRange = true
	if g.state == WanderSlow {
		g.transition(Approach)
	}
}

// PlayerExited interrupts an approach. Once the gift has started the giver
// ignores range.
func (g *Giver) PlayerExited() {
	g.inRange = false
	if g.state == Approach {
		g.transition(WanderSlow)
	}
}

// Tick advances the sequence. The caller steps transfers first, so a gift
// finishing this tick is seen here.
func (g *Giver) Tick(dt float64) {
	switch g.state {
	case Terminated:
		return
	case Approach:
		if g.port.IsWithin(g.settings().StopDistance, g.player.Position()) {
			g.startGift()
		}
	case GiverActive:
		if !g.gifter.Busy(g.id, g.player.Endpoint().ID) {
			g.consume()
		}
	}
	g.runner.Step(dt)
}

// Destroy removes the giver immediately.
func (g *Giver) Destroy() { g.terminate() }

func (g *Giver) startGift() {
	t, err := g.gifter.Gift(g.Endpoint(), g.player.Endpoint(), g.settings().GiverDuration)
	if err != nil {
		g.log.Debug("gift not started", "err", err)
		return
	}
	g.gift = t
	g.transition(GiverActive)
}

func (g *Giver) consume() {
	g.log.Info("giver consumed", "transfer", g.gift.ID)
	g.transition(Flee)
	if g.hooks.Consumed != nil {
		g.hooks.Consumed(g)
	}
}

func (g *Giver) terminate() {
	if g.state == Terminated {
		return
	}
	g.transition(Terminated)
	if g.hooks.Terminated != nil {
		g.hooks.Terminated(g)
	}
}

func (g *Giver) transition(s State) {
	from := g.state
	g.state = s
	g.runner.Stop()
	g.port.Stop()
	switch s {
	case WanderSlow:
		g.runner.Start(NewWander(g.port, g.spawn, g.settings, g.seed))
	case Approach:
		// Approach speed without the approach wait.
		g.runner.Start(&Seek{port: g.port, target: g.player.Position, settings: g.settings, speed: approachSpeed})
	case Flee:
		f := NewFlee(g.port, g.player.Position, g.settings, false)
		f.OnSafe = g.terminate
		g.runner.Start(f)
	}
	if from != s && g.hooks.StateChanged != nil {
		g.hooks.StateChanged(g, from, s)
	}
}
