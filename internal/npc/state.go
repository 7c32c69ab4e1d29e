// Package npc drives non-player actors: the behaviour state machine that
// reacts to the player's fullness, the multi-tick movement routines it
// starts, and the one-shot giver sequence.
package npc

import (
	"math"

	"github.com/talgya/fullness/internal/config"
	"github.com/talgya/fullness/internal/gauge"
)

// State is the behaviour an NPC is currently running.
type State uint8

const (
	Idle State = iota
	WanderSlow
	Approach
	Block
	Flee
	GiverActive
	Terminated
)

var stateNames = [...]string{
	Idle:        "idle",
	WanderSlow:  "wander_slow",
	Approach:    "approach",
	Block:       "block",
	Flee:        "flee",
	GiverActive: "giver_active",
	Terminated:  "terminated",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// ParseState is the inverse of String.
func ParseState(name string) (State, bool) {
	for i, n := range stateNames {
		if n == name {
			return State(i), true
		}
	}
	return Idle, false
}

// Registered reports whether an NPC in s belongs to the population
// registry and so receives broadcasts.
func (s State) Registered() bool {
	switch s {
	case Idle, WanderSlow, Approach, Block:
		return true
	}
	return false
}

// Breakpoints are the lower edges, in percent of the player's fullness, of
// the wander, approach and block bands.
type Breakpoints struct {
	Wander   float64
	Approach float64
	Block    float64
}

// Classify picks the state for an NPC with fullness own facing a player
// with fullness player, given the NPC is currently in current.
//
// A full NPC always flees. Otherwise the player's percentage selects a
// band; a player at the floor scares every NPC off. A percentage between
// the floor and the block band matches nothing and keeps current.
func Classify(own, player float64, bp Breakpoints, current State) State {
	if own >= gauge.Ceil {
		return Flee
	}
	if math.IsNaN(player) {
		return current
	}
	if player <= gauge.Floor {
		return Flee
	}
	p := gauge.Percent(player)
	switch {
	case p >= bp.Wander:
		return WanderSlow
	case p >= bp.Approach:
		return Approach
	case p >= bp.Block:
		return Block
	}
	return current
}

// Settings is the slice of the tunables an NPC reads.
type Settings struct {
	Breakpoints    Breakpoints
	Speeds         config.Speeds
	SafeDistance   float64
	StopDistance   float64
	WanderRadius   float64
	WanderDelay    float64
	RepathDistance float64
	ApproachWait   float64
	GiverDuration  float64
}

// SettingsFrom extracts NPC settings from the tunables.
func SettingsFrom(t config.Tunables) Settings {
	b := t.Behavior
	return Settings{
		Breakpoints: Breakpoints{
			Wander:   b.WanderAbove,
			Approach: b.ApproachAbove,
			Block:    b.BlockAbove,
		},
		Speeds:         t.Speeds,
		SafeDistance:   b.SafeDistance,
		StopDistance:   b.StopDistance,
		WanderRadius:   b.WanderRadius,
		WanderDelay:    b.WanderDelay,
		RepathDistance: b.RepathDistance,
		ApproachWait:   b.ApproachWait,
		GiverDuration:  t.Giver.Duration,
	}
}
