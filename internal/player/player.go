// Package player holds the player actor: its gauge and position, the NPCs
// currently in detection range, the audio and animation cues driven by its
// fullness, transfer gating on the primary action and the speed boost.
package player

import (
	"github.com/talgya/fullness/internal/config"
	"github.com/talgya/fullness/internal/gauge"
	"github.com/talgya/fullness/internal/geom"
	"github.com/talgya/fullness/internal/locomotion"
	"github.com/talgya/fullness/internal/transfer"
)

// AudioPort plays the background theme.
type AudioPort interface {
	PlayTheme(clip string, volume, pitch float64)
}

// AnimationPort receives the player's movement speed and whether it is low
// on resource, once per tick.
type AnimationPort interface {
	Animate(speed float64, lowResource bool)
}

// SpeedSink accepts a movement speed multiplier.
type SpeedSink interface {
	SetSpeedModifier(m float64)
}

// Sink is an actor the player can transfer to.
type Sink interface {
	Endpoint() transfer.Endpoint
	Position() geom.Vec3
}

// Options configure a Player.
type Options struct {
	ID        string
	Gauge     *gauge.Gauge
	Mover     *locomotion.Kinematic
	Audio     AudioPort
	Animation AnimationPort
	Themes    []config.Theme
	// LowResourcePercent is the fullness percentage under which the
	// animation is told the player is low.
	LowResourcePercent float64
}

// Player is the single player actor.
type Player struct {
	id        string
	gauge     *gauge.Gauge
	mover     *locomotion.Kinematic
	audio     AudioPort
	animation AnimationPort
	themes    []config.Theme
	low       float64
	baseSpeed float64
	modifier  float64
	watcher   *gauge.BandWatcher

	inRange []Sink
}

// New builds a player. The theme for the initial fullness plays right away.
func New(o Options) *Player {
	if o.Gauge == nil {
		o.Gauge = gauge.New(0, gauge.DefaultRate)
	}
	if o.Mover == nil {
		o.Mover = locomotion.NewKinematic(geom.Vec3{}, 0, nil)
	}
	p := &Player{
		id:        o.ID,
		gauge:     o.Gauge,
		mover:     o.Mover,
		audio:     o.Audio,
		animation: o.Animation,
		themes:    o.Themes,
		low:       o.LowResourcePercent,
		baseSpeed: o.Mover.Speed(),
		modifier:  1,
	}
	edges := make(gauge.Bands, len(p.themes))
	for i, t := range p.themes {
		edges[i] = t.Above
	}
	p.watcher = gauge.WatchBands(p.gauge, edges, p.bandChanged)
	return p
}

func (p *Player) ID() string                   { return p.id }
func (p *Player) Gauge() *gauge.Gauge          { return p.gauge }
func (p *Player) Mover() *locomotion.Kinematic { return p.mover }
func (p *Player) Position() geom.Vec3          { return p.mover.Position() }
func (p *Player) Band() int                    { return p.watcher.Band() }

// Endpoint is the player's side of a transfer.
func (p *Player) Endpoint() transfer.Endpoint {
	return transfer.Endpoint{ID: p.id, Gauge: p.gauge}
}

// SetSpeedModifier scales the mover's base speed.
func (p *Player) SetSpeedModifier(m float64) {
	p.modifier = max(0, m)
	p.mover.SetSpeed(p.baseSpeed * p.modifier)
}

func (p *Player) SpeedModifier() float64 { return p.modifier }

// SetBaseSpeed changes the unboosted speed.
func (p *Player) SetBaseSpeed(s float64) {
	p.baseSpeed = max(0, s)
	p.mover.SetSpeed(p.baseSpeed * p.modifier)
}

// Enter adds s to the detection set. Adding twice is a no-op.
func (p *Player) Enter(s Sink) {
	id := s.Endpoint().ID
	for _, cur := range p.inRange {
		if cur.Endpoint().ID == id {
			return
		}
	}
	p.inRange = append(p.inRange, s)
}

// Exit removes the sink with id from the detection set.
func (p *Player) Exit(id string) {
	for i, cur := range p.inRange {
		if cur.Endpoint().ID == id {
			p.inRange = append(p.inRange[:i], p.inRange[i+1:]...)
			return
		}
	}
}

// InRange returns the sinks currently in detection range.
func (p *Player) InRange() []Sink {
	return append([]Sink(nil), p.inRange...)
}

// Closest returns the nearest in-range sink that is not yet full.
func (p *Player) Closest() (Sink, bool) {
	var best Sink
	bestDist := 0.0
	pos := p.Position()
	for _, s := range p.inRange {
		if s.Endpoint().Gauge.Current() >= gauge.Ceil {
			continue
		}
		if d := pos.Dist(s.Position()); best == nil || d < bestDist {
			best, bestDist = s, d
		}
	}
	return best, best != nil
}

// Tick reports movement to the animation port.
func (p *Player) Tick(dt float64) {
	if p.animation == nil {
		return
	}
	speed := 0.0
	if p.mover.Moving() {
		speed = p.mover.Speed()
	}
	p.animation.Animate(speed, p.gauge.Percent() < p.low)
}

// Close detaches the player from its gauge.
func (p *Player) Close() { p.watcher.Close() }

func (p *Player) bandChanged(band int, _ float64) {
	if p.audio == nil || band >= len(p.themes) {
		return
	}
	t := p.themes[band]
	pitch := t.Pitch
	if pitch <= 0 {
		pitch = 1
	}
	p.audio.PlayTheme(t.Clip, t.Volume, pitch)
}
