// Population management: registry broadcasts, detection range and removal
// of destroyed actors.
package engine

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/talgya/fullness/internal/events"
	"github.com/talgya/fullness/internal/npc"
)

// Broadcast command names accepted by Broadcast.
const (
	CommandWander   = "wander"
	CommandApproach = "approach"
	CommandBlock    = "block"
	CommandFlee     = "flee"
	CommandStop     = "stop"
)

// Commands lists every broadcast command name.
var Commands = []string{CommandWander, CommandApproach, CommandBlock, CommandFlee, CommandStop}

// ValidCommand reports whether name is a broadcast command.
func ValidCommand(name string) bool { return slices.Contains(Commands, name) }

// MakeAllWanderSlow sends every registered NPC wandering.
func (s *Simulation) MakeAllWanderSlow() int {
	return s.Registry.Broadcast((*npc.Controller).WanderSlow)
}

// MakeAllApproachPlayer sends every registered NPC toward the player.
func (s *Simulation) MakeAllApproachPlayer() int {
	return s.Registry.Broadcast((*npc.Controller).Approach)
}

// MakeAllBlockPlayer makes every registered NPC intercept the player.
func (s *Simulation) MakeAllBlockPlayer() int {
	return s.Registry.Broadcast((*npc.Controller).Block)
}

// MakeAllRunAway makes every registered NPC flee. Each one leaves the
// registry as it goes.
func (s *Simulation) MakeAllRunAway() int {
	return s.Registry.Broadcast((*npc.Controller).Flee)
}

// StopAll idles every registered NPC.
func (s *Simulation) StopAll() int {
	return s.Registry.Broadcast((*npc.Controller).StopMovement)
}

// Broadcast runs the named command and returns how many NPCs received it.
func (s *Simulation) Broadcast(command string) (int, error) {
	var n int
	switch command {
	case CommandWander:
		n = s.MakeAllWanderSlow()
	case CommandApproach:
		n = s.MakeAllApproachPlayer()
	case CommandBlock:
		n = s.MakeAllBlockPlayer()
	case CommandFlee:
		n = s.MakeAllRunAway()
	case CommandStop:
		n = s.StopAll()
	default:
		return 0, fmt.Errorf("unknown broadcast %q", command)
	}
	slog.Info("broadcast", "command", command, "npcs", n)
	return n, nil
}

// Destroy removes the actor with id at the end of the current tick.
func (s *Simulation) Destroy(id string) bool {
	sl, ok := s.index[id]
	if !ok {
		return false
	}
	sl.actor.Destroy()
	return true
}

// updateProximity turns detection-range changes into enter and exit calls.
// Givers are never transfer targets for the player.
func (s *Simulation) updateProximity() {
	r := s.tun.DetectionRange
	pp := s.Player.Position()
	for _, sl := range s.actors {
		if sl.actor.Destroyed() {
			continue
		}
		in := pp.Dist(sl.actor.Position()) <= r
		if in == sl.inRange {
			continue
		}
		sl.inRange = in
		id := sl.actor.ID()
		if in {
			if sl.kind == KindNPC {
				s.Player.Enter(sl.actor)
			}
			sl.actor.PlayerEntered()
		} else {
			s.Player.Exit(id)
			sl.actor.PlayerExited()
		}
	}
}

// reap drops destroyed actors. Their in-flight transfers, gifts included,
// are discarded where they stand.
func (s *Simulation) reap() {
	kept := s.actors[:0]
	for _, sl := range s.actors {
		if !sl.actor.Destroyed() {
			kept = append(kept, sl)
			continue
		}
		id := sl.actor.ID()
		cancelled := s.Transfers.Drop(id)
		if c, ok := sl.actor.(*npc.Controller); ok {
			s.Registry.Unregister(c)
		}
		s.Player.Exit(id)
		delete(s.index, id)
		s.Stats.ActorsDestroyed++
		slog.Info("actor removed", "actor", id, "kind", sl.kind, "cancelled_transfers", cancelled)
		s.publish(events.Event{Type: events.NPCDestroyed, Actor: id,
			Payload: map[string]any{"kind": sl.kind, "cancelled_transfers": cancelled}})
	}
	for i := len(kept); i < len(s.actors); i++ {
		s.actors[i] = nil
	}
	s.actors = kept
}
