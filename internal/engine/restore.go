package engine

import (
	"log/slog"

	"github.com/talgya/fullness/internal/gauge"
	"github.com/talgya/fullness/internal/locomotion"
	"github.com/talgya/fullness/internal/npc"
)

// Restore rebuilds a saved scene into an empty simulation. Consumed givers
// are not brought back; in-flight transfers are lost.
func (s *Simulation) Restore(tick uint64, p PlayerView, actors []ActorView) {
	s.tick.Store(tick)
	s.Player.Mover().Teleport(p.Position)
	s.Player.Gauge().Drive(p.Fullness)

	restored := 0
	for _, a := range actors {
		if a.ID == "" || a.ID == PlayerID {
			continue
		}
		if _, taken := s.index[a.ID]; taken {
			continue
		}
		mover := locomotion.NewKinematic(a.Position, s.tun.Speeds.Wander, s.Area)
		g := gauge.New(a.Fullness, s.tun.GaugeRate)
		switch a.Kind {
		case KindGiver:
			if a.Consumed {
				continue
			}
			if err := s.AddGiver(a.ID, g, mover); err != nil {
				continue
			}
		default:
			if err := s.AddNPC(a.ID, g, mover); err != nil {
				continue
			}
			st, ok := npc.ParseState(a.State)
			if !ok {
				slog.Warn("unknown saved state", "actor", a.ID, "state", a.State)
				st = npc.Idle
			}
			s.index[a.ID].actor.(*npc.Controller).Restore(st, a.Persistent)
		}
		restored++
	}
	slog.Info("scene restored", "tick", tick, "actors", restored, "player_fullness", p.Fullness)
	s.publishSnapshot()
}
