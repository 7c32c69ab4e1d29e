// Actor spawning: builds NPCs and givers, wires their hooks into the
// simulation, and lays out the demo scene.
package engine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/fullness/internal/events"
	"github.com/talgya/fullness/internal/gauge"
	"github.com/talgya/fullness/internal/geom"
	"github.com/talgya/fullness/internal/locomotion"
	"github.com/talgya/fullness/internal/npc"
)

// SceneConfig controls the demo scene.
type SceneConfig struct {
	NPCs   int     // regular NPCs on a ring around the player
	Givers int     // givers placed just outside detection range
	Radius float64 // ring radius; defaults to the detection range
}

// SpawnScene populates an empty simulation.
func (s *Simulation) SpawnScene(cfg SceneConfig) {
	radius := cfg.Radius
	if radius <= 0 {
		radius = s.tun.DetectionRange
	}
	origin := s.Player.Position()
	for i := 0; i < cfg.NPCs; i++ {
		angle := 2 * math.Pi * (float64(i) + s.rng.Float64()*0.5) / float64(max(cfg.NPCs, 1))
		dist := radius * (0.4 + 0.8*s.rng.Float64())
		pos := origin.Add(geom.V(math.Cos(angle)*dist, 0, math.Sin(angle)*dist))
		fullness := -0.5 + 0.8*s.rng.Float64()
		s.SpawnNPC(pos, fullness)
	}
	for i := 0; i < cfg.Givers; i++ {
		angle := s.rng.Float64() * 2 * math.Pi
		dist := s.tun.DetectionRange * 1.2
		s.SpawnGiver(origin.Add(geom.V(math.Cos(angle)*dist, 0, math.Sin(angle)*dist)))
	}
	slog.Info("scene spawned", "npcs", cfg.NPCs, "givers", cfg.Givers, "locked", s.locked())
}

// SpawnNPC adds a regular NPC at pos with the given fullness.
func (s *Simulation) SpawnNPC(pos geom.Vec3, fullness float64) (string, error) {
	id := s.newID("npc")
	mover := locomotion.NewKinematic(pos, s.tun.Speeds.Wander, s.Area)
	return id, s.AddNPC(id, gauge.New(fullness, s.tun.GaugeRate), mover)
}

// SpawnGiver adds a giver at pos.
func (s *Simulation) SpawnGiver(pos geom.Vec3) (string, error) {
	id := s.newID("giver")
	mover := locomotion.NewKinematic(pos, s.tun.Speeds.Wander, s.Area)
	return id, s.AddGiver(id, gauge.New(gauge.Ceil, s.tun.GaugeRate), mover)
}

// AddNPC wires a regular NPC. A missing mover disables only that NPC.
func (s *Simulation) AddNPC(id string, g *gauge.Gauge, mover *locomotion.Kinematic) error {
	var port locomotion.Port
	if mover != nil {
		port = mover
	}
	c, err := npc.New(npc.Options{
		ID:       id,
		Gauge:    g,
		Port:     port,
		Player:   s.Player,
		Settings: s.npcSettings,
		Hooks: npc.Hooks{
			Register:     func(c *npc.Controller) { s.Registry.Register(c) },
			Unregister:   func(c *npc.Controller) { s.Registry.Unregister(c) },
			StateChanged: func(c *npc.Controller, from, to npc.State) { s.stateChanged(c.ID(), KindNPC, from, to) },
		},
		Seed: s.rng.Int63(),
	})
	if err != nil {
		s.disable(id, err)
		return err
	}
	s.add(&slot{actor: c, kind: KindNPC, mover: mover})
	return nil
}

// AddGiver wires a giver. A missing mover disables only that giver.
func (s *Simulation) AddGiver(id string, g *gauge.Gauge, mover *locomotion.Kinematic) error {
	var port locomotion.Port
	if mover != nil {
		port = mover
	}
	gv, err := npc.NewGiver(npc.GiverOptions{
		ID:       id,
		Gauge:    g,
		Port:     port,
		Player:   s.Player,
		Gifter:   s.Transfers,
		Settings: s.npcSettings,
		Hooks: npc.GiverHooks{
			StateChanged: func(g *npc.Giver, from, to npc.State) { s.stateChanged(g.ID(), KindGiver, from, to) },
			Consumed:     s.giverConsumed,
		},
		Seed: s.rng.Int63(),
	})
	if err != nil {
		s.disable(id, err)
		return err
	}
	s.add(&slot{actor: gv, kind: KindGiver, mover: mover})
	return nil
}

// Actor looks up a live actor.
func (s *Simulation) Actor(id string) (Actor, bool) {
	sl, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return sl.actor, true
}

// Actors returns every live actor in spawn order.
func (s *Simulation) Actors() []Actor {
	out := make([]Actor, 0, len(s.actors))
	for _, sl := range s.actors {
		out = append(out, sl.actor)
	}
	return out
}

func (s *Simulation) add(sl *slot) {
	s.actors = append(s.actors, sl)
	s.index[sl.actor.ID()] = sl
}

func (s *Simulation) newID(prefix string) string {
	for {
		id := fmt.Sprintf("%s-%d", prefix, s.nextID)
		s.nextID++
		if _, taken := s.index[id]; !taken {
			return id
		}
	}
}

func (s *Simulation) disable(id string, err error) {
	s.Stats.ActorsDisabled++
	slog.Error("actor disabled", "actor", id, "err", err)
	s.publish(events.Event{Type: events.ActorDisabled, Actor: id, Payload: map[string]any{"reason": err.Error()}})
}

func (s *Simulation) stateChanged(id, kind string, from, to npc.State) {
	s.publish(events.Event{Type: events.NPCState, Actor: id,
		Payload: map[string]any{"kind": kind, "from": from.String(), "to": to.String()}})
}

func (s *Simulation) giverConsumed(g *npc.Giver) {
	s.Stats.GiversConsumed++
	payload := map[string]any{}
	if t := g.Gift(); t != nil {
		payload["transfer"] = t.ID
	}
	s.publish(events.Event{Type: events.GiverConsumed, Actor: g.ID(), Target: PlayerID, Payload: payload})
	if !s.tun.Giver.SkipBoost {
		s.Boost.Activate()
	}
	if !s.locked() {
		slog.Info("transfers unlocked", "giver", g.ID())
	}
}
