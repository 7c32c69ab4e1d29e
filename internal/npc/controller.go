package npc

import (
	"errors"
	"log/slog"

	"github.com/talgya/fullness/internal/config"
	"github.com/talgya/fullness/internal/gauge"
	"github.com/talgya/fullness/internal/geom"
	"github.com/talgya/fullness/internal/locomotion"
	"github.com/talgya/fullness/internal/transfer"
)

// ErrNoLocomotion is returned when an NPC is built without a mover. The
// caller disables that NPC and carries on.
var ErrNoLocomotion = errors.New("npc: no locomotion port")

func defaultSettings() Settings { return SettingsFrom(config.Default()) }

// PlayerView is what an NPC can see of the player.
type PlayerView interface {
	Position() geom.Vec3
	Endpoint() transfer.Endpoint
}

// Hooks let the simulation observe a controller. Nil hooks are skipped.
type Hooks struct {
	Register     func(*Controller)
	Unregister   func(*Controller)
	StateChanged func(c *Controller, from, to State)
	Destroyed    func(*Controller)
}

// Options configure a Controller.
type Options struct {
	ID       string
	Gauge    *gauge.Gauge
	Port     locomotion.Port
	Player   PlayerView
	Settings func() Settings
	Hooks    Hooks
	Seed     int64
}

// Controller is the behaviour state machine of one regular NPC.
//
// Transitions happen only when the recomputed state differs from the held
// one, so repeated evaluation with an unchanged player percentage never
// re-issues a movement command.
type Controller struct {
	id       string
	gauge    *gauge.Gauge
	port     locomotion.Port
	player   PlayerView
	settings func() Settings
	hooks    Hooks
	seed     int64
	log      *slog.Logger

	state      State
	inRange    bool
	persistent bool // set once the NPC fills up; flee outlasts range exit
	destroyed  bool
	runner     Runner
	unsubs     []func()
}

// New builds a controller in Idle and registers it.
func New(o Options) (*Controller, error) {
	if o.Port == nil {
		return nil, ErrNoLocomotion
	}
	if o.Gauge == nil {
		o.Gauge = gauge.New(gauge.Floor, gauge.DefaultRate)
	}
	if o.Settings == nil {
		o.Settings = defaultSettings
	}
	c := &Controller{
		id:       o.ID,
		gauge:    o.Gauge,
		port:     o.Port,
		player:   o.Player,
		settings: o.Settings,
		hooks:    o.Hooks,
		seed:     o.Seed,
		log:      slog.With("npc", o.ID),
		state:    Idle,
	}
	c.unsubs = append(c.unsubs, c.gauge.OnChange(c.ownChanged))
	if c.hooks.Register != nil {
		c.hooks.Register(c)
	}
	return c, nil
}

func (c *Controller) ID() string          { return c.id }
func (c *Controller) State() State        { return c.state }
func (c *Controller) Gauge() *gauge.Gauge { return c.gauge }
func (c *Controller) InRange() bool       { return c.inRange }
func (c *Controller) Persistent() bool    { return c.persistent }
func (c *Controller) Destroyed() bool     { return c.destroyed }
func (c *Controller) Position() geom.Vec3 { return c.port.Position() }

// Endpoint is the NPC's side of a transfer.
func (c *Controller) Endpoint() transfer.Endpoint {
	return transfer.Endpoint{ID: c.id, Gauge: c.gauge}
}

// Restore puts a controller back into a saved state.
func (c *Controller) Restore(s State, persistent bool) {
	c.persistent = persistent
	if s == Terminated {
		c.Destroy()
		return
	}
	c.transition(s)
}

// PlayerEntered is called when the player comes into detection range.
func (c *Controller) PlayerEntered() {
	if c.destroyed {
		return
	}
	c.inRange = true
	c.Evaluate()
}

// PlayerExited is called when the player leaves detection range. The NPC
// goes idle unless it is fleeing because it filled up.
func (c *Controller) PlayerExited() {
	if c.destroyed {
		return
	}
	c.inRange = false
	if c.state == Flee && c.persistent {
		return
	}
	c.set(Idle)
}

// Evaluate reclassifies the NPC. Out of range only a full gauge can move
// it, into Flee.
func (c *Controller) Evaluate() {
	if c.destroyed {
		return
	}
	own := c.gauge.Current()
	if !c.inRange && own < gauge.Ceil {
		return
	}
	player := c.player.Endpoint().Gauge.Current()
	c.set(Classify(own, player, c.settings().Breakpoints, c.state))
}

// Tick re-evaluates and then advances the active routine. The caller ticks
// gauges first, so the evaluation sees this tick's values.
func (c *Controller) Tick(dt float64) {
	if c.destroyed {
		return
	}
	c.Evaluate()
	c.runner.Step(dt)
}

// Broadcast commands. They force a state regardless of classification.
func (c *Controller) WanderSlow() { c.command(WanderSlow) }
func (c *Controller) Approach()   { c.command(Approach) }
func (c *Controller) Block()      { c.command(Block) }
func (c *Controller) Flee()       { c.command(Flee) }

// StopMovement halts the NPC and idles it.
func (c *Controller) StopMovement() { c.command(Idle) }

func (c *Controller) command(s State) {
	if c.destroyed {
		return
	}
	c.set(s)
}

// Destroy terminates the NPC. It is idempotent.
func (c *Controller) Destroy() {
	if c.destroyed {
		return
	}
	c.transition(Terminated)
	c.destroyed = true
	for _, u := range c.unsubs {
		u()
	}
	c.unsubs = nil
	if c.hooks.Destroyed != nil {
		c.hooks.Destroyed(c)
	}
}

func (c *Controller) ownChanged(v float64) {
	if c.destroyed || v < gauge.Ceil || c.persistent {
		return
	}
	c.persistent = true
	c.log.Debug("npc full, fleeing for good")
	c.set(Flee)
}

// set applies s if it differs from the held state.
func (c *Controller) set(s State) {
	if s == c.state {
		return
	}
	c.transition(s)
}

func (c *Controller) transition(s State) {
	from := c.state
	c.state = s

	c.runner.Stop()
	c.port.Stop()
	switch s {
	case WanderSlow:
		c.runner.Start(NewWander(c.port, c.port.Position(), c.settings, c.seed))
	case Approach:
		c.runner.Start(NewApproach(c.port, c.player.Position, c.settings))
	case Block:
		c.runner.Start(NewBlock(c.port, c.player.Position, c.settings))
	case Flee:
		f := NewFlee(c.port, c.player.Position, c.settings, true)
		f.OnSafe = func() { c.log.Debug("npc reached safe distance") }
		c.runner.Start(f)
	}

	if s.Registered() {
		if c.hooks.Register != nil {
			c.hooks.Register(c)
		}
	} else if c.hooks.Unregister != nil {
		c.hooks.Unregister(c)
	}
	if from != s {
		c.log.Debug("npc state", "from", from, "to", s)
		if c.hooks.StateChanged != nil {
			c.hooks.StateChanged(c, from, s)
		}
	}
}
