package engine

import (
	"github.com/talgya/fullness/internal/geom"
	"github.com/talgya/fullness/internal/transfer"
)

// Actor kinds.
const (
	KindNPC   = "npc"
	KindGiver = "giver"
)

// Snapshot is a read-only view of the simulation after a tick. It is safe
// to share between goroutines.
type Snapshot struct {
	Tick       uint64         `json:"tick"`
	SimTime    string         `json:"sim_time"`
	Player     PlayerView     `json:"player"`
	Actors     []ActorView    `json:"actors"`
	Transfers  []TransferView `json:"transfers"`
	Locked     bool           `json:"transfers_locked"`
	Registered int            `json:"registered"`
	Stats      Stats          `json:"stats"`
}

// PlayerView is the player part of a snapshot.
type PlayerView struct {
	ID          string     `json:"id"`
	Fullness    float64    `json:"fullness"`
	Percent     float64    `json:"percent"`
	Position    geom.Vec3  `json:"position"`
	Band        int        `json:"band"`
	Boosted     bool       `json:"boosted"`
	Speed       float64    `json:"speed"`
	LowResource bool       `json:"low_resource"`
	InRange     []string   `json:"in_range"`
	Destination *geom.Vec3 `json:"destination,omitempty"`
}

// ActorView is one NPC or giver.
type ActorView struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	State      string    `json:"state"`
	Fullness   float64   `json:"fullness"`
	Position   geom.Vec3 `json:"position"`
	InRange    bool      `json:"in_range"`
	Persistent bool      `json:"persistent,omitempty"`
	Consumed   bool      `json:"consumed,omitempty"`
}

// TransferView is one in-flight transfer.
type TransferView struct {
	ID       string        `json:"id"`
	Kind     string        `json:"kind"`
	Source   string        `json:"source"`
	Sink     string        `json:"sink"`
	Progress float64       `json:"progress"`
	Plan     transfer.Plan `json:"plan"`
}

// Stats are running counters since the simulation started.
type Stats struct {
	TransfersStarted   int `json:"transfers_started"`
	TransfersCompleted int `json:"transfers_completed"`
	TransfersCancelled int `json:"transfers_cancelled"`
	TransfersDropped   int `json:"transfers_dropped"`
	GiversConsumed     int `json:"givers_consumed"`
	ActorsDestroyed    int `json:"actors_destroyed"`
	ActorsDisabled     int `json:"actors_disabled"`
}

// Actor returns the view of the actor with id.
func (s *Snapshot) Actor(id string) (ActorView, bool) {
	for _, a := range s.Actors {
		if a.ID == id {
			return a, true
		}
	}
	return ActorView{}, false
}
