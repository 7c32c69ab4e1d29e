// Package config holds the simulation tunables: defaults, the YAML tuning
// file, and the live copy that can be changed while the simulation runs.
package config

import "time"

// Tunables is every externally settable parameter.
type Tunables struct {
	TickRateHz     int     `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	ReportEvery    int     `yaml:"report_every_ticks" json:"report_every_ticks"`
	GaugeRate      float64 `yaml:"gauge_transition_rate" json:"gauge_transition_rate"`
	Seed           int64   `yaml:"seed" json:"seed"`
	DetectionRange float64 `yaml:"detection_range" json:"detection_range"`

	// UngatedTransfers opens the player transfer before any giver is consumed.
	UngatedTransfers bool `yaml:"ungated_transfers" json:"ungated_transfers"`

	Transfer Transfer `yaml:"transfer" json:"transfer"`
	Behavior Behavior `yaml:"behavior" json:"behavior"`
	Speeds   Speeds   `yaml:"speeds" json:"speeds"`
	Giver    Giver    `yaml:"giver" json:"giver"`
	Boost    Boost    `yaml:"boost" json:"boost"`

	Animation Animation `yaml:"animation" json:"animation"`

	// Themes are the player music cues, highest band first.
	Themes []Theme `yaml:"player_themes" json:"player_themes"`
}

// Transfer parameterises the player → NPC protocol.
type Transfer struct {
	Amount         float64 `yaml:"amount" json:"amount"`
	Multiplier     float64 `yaml:"multiplier" json:"multiplier"`
	ReturnFraction float64 `yaml:"return_fraction" json:"return_fraction"`
	Duration       float64 `yaml:"duration" json:"duration"` // seconds
}

// Behavior holds the NPC percentage breakpoints and distances.
type Behavior struct {
	// Percent breakpoints of player fullness: wander at or above WanderAbove,
	// approach at or above ApproachAbove, block at or above BlockAbove.
	WanderAbove   float64 `yaml:"wander_above" json:"wander_above"`
	ApproachAbove float64 `yaml:"approach_above" json:"approach_above"`
	BlockAbove    float64 `yaml:"block_above" json:"block_above"`

	SafeDistance   float64 `yaml:"safe_distance" json:"safe_distance"`
	StopDistance   float64 `yaml:"stop_distance" json:"stop_distance"`
	WanderRadius   float64 `yaml:"wander_radius" json:"wander_radius"`
	RepathDistance float64 `yaml:"repath_distance" json:"repath_distance"`

	// Seconds.
	WanderDelay  float64 `yaml:"wander_delay" json:"wander_delay"`
	ApproachWait float64 `yaml:"approach_wait" json:"approach_wait"`
}

// Speeds are per-behaviour locomotion speeds.
type Speeds struct {
	Wander   float64 `yaml:"wander" json:"wander"`
	Approach float64 `yaml:"approach" json:"approach"`
	Block    float64 `yaml:"block" json:"block"`
	Flee     float64 `yaml:"flee" json:"flee"`
}

// Giver parameterises the one-shot giver sequence.
type Giver struct {
	Duration  float64 `yaml:"duration" json:"duration"` // seconds
	SkipBoost bool    `yaml:"skip_boost" json:"skip_boost"`
}

// Boost is the temporary player speed boost.
type Boost struct {
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
	Duration   float64 `yaml:"duration" json:"duration"` // seconds
}

// Animation feeds the animation collaborator.
type Animation struct {
	LowResourcePercent float64 `yaml:"low_resource_percent" json:"low_resource_percent"`
}

// Theme is a music cue for one band of player fullness: at or above Above
// percent, play Clip.
type Theme struct {
	Above  float64 `yaml:"above" json:"above"`
	Clip   string  `yaml:"clip" json:"clip"`
	Volume float64 `yaml:"volume" json:"volume"`
	Pitch  float64 `yaml:"pitch" json:"pitch"`
}

// Default returns the tunables the demo scene ships with.
func Default() Tunables {
	t := Tunables{}
	t.applyDefaults()
	return t
}

// TickInterval returns the wall-clock duration of one tick.
func (t Tunables) TickInterval() time.Duration {
	if t.TickRateHz <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(t.TickRateHz)
}

// TickSeconds returns the simulated length of one tick.
func (t Tunables) TickSeconds() float64 {
	return t.TickInterval().Seconds()
}

func (t *Tunables) applyDefaults() {
	if t.TickRateHz <= 0 {
		t.TickRateHz = 30
	}
	if t.ReportEvery <= 0 {
		t.ReportEvery = t.TickRateHz
	}
	if t.GaugeRate <= 0 {
		t.GaugeRate = 2
	}
	if t.DetectionRange <= 0 {
		t.DetectionRange = 10
	}

	if t.Transfer.Amount <= 0 {
		t.Transfer.Amount = 0.1
	}
	if t.Transfer.Multiplier <= 0 {
		t.Transfer.Multiplier = 5
	}
	if t.Transfer.ReturnFraction <= 0 {
		t.Transfer.ReturnFraction = 0.05
	}
	if t.Transfer.Duration <= 0 {
		t.Transfer.Duration = 1
	}

	b := &t.Behavior
	if b.WanderAbove <= 0 {
		b.WanderAbove = 75
	}
	if b.ApproachAbove <= 0 {
		b.ApproachAbove = 25
	}
	if b.BlockAbove <= 0 {
		b.BlockAbove = 1
	}
	if b.SafeDistance <= 0 {
		b.SafeDistance = 6
	}
	if b.StopDistance <= 0 {
		b.StopDistance = 2
	}
	if b.WanderRadius <= 0 {
		b.WanderRadius = 5
	}
	if b.WanderDelay <= 0 {
		b.WanderDelay = 3
	}
	if b.ApproachWait <= 0 {
		b.ApproachWait = 2
	}
	if b.RepathDistance <= 0 {
		b.RepathDistance = 0.5
	}

	s := &t.Speeds
	if s.Wander <= 0 {
		s.Wander = 1.5
	}
	if s.Approach <= 0 {
		s.Approach = 4
	}
	if s.Block <= 0 {
		s.Block = 2
	}
	if s.Flee <= 0 {
		s.Flee = 5
	}

	if t.Giver.Duration <= 0 {
		t.Giver.Duration = 2
	}
	if t.Boost.Multiplier <= 0 {
		t.Boost.Multiplier = 2
	}
	if t.Boost.Duration <= 0 {
		t.Boost.Duration = 5
	}
	if t.Animation.LowResourcePercent <= 0 {
		t.Animation.LowResourcePercent = 25
	}
	if t.Themes == nil {
		t.Themes = []Theme{
			{Above: 75, Clip: "Main1", Volume: 1, Pitch: 1},
			{Above: 50, Clip: "Main1", Volume: 0.8, Pitch: 0.8},
			{Above: 25, Clip: "Main2", Volume: 1, Pitch: 1},
			{Above: 0, Clip: "Main3", Volume: 1, Pitch: 1},
		}
	}
	for i := range t.Themes {
		if t.Themes[i].Pitch <= 0 {
			t.Themes[i].Pitch = 1
		}
	}
}
