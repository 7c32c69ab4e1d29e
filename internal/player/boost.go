package player

import "log/slog"

// SpeedBoost multiplies the player's speed for a while. Activating it
// again while it runs is ignored.
type SpeedBoost struct {
	sink       SpeedSink
	multiplier float64
	duration   float64

	remaining float64
	active    bool

	OnStart func()
	OnEnd   func()
}

// NewSpeedBoost builds a boost. A nil sink makes the boost a timer only.
func NewSpeedBoost(sink SpeedSink, multiplier, duration float64) *SpeedBoost {
	return &SpeedBoost{sink: sink, multiplier: multiplier, duration: duration}
}

// SetParams changes the boost for later activations. A running boost takes
// the new multiplier at once and keeps its remaining time.
func (b *SpeedBoost) SetParams(multiplier, duration float64) {
	b.duration = duration
	if b.multiplier == multiplier {
		return
	}
	b.multiplier = multiplier
	if b.active && b.sink != nil {
		b.sink.SetSpeedModifier(multiplier)
	}
}

func (b *SpeedBoost) Active() bool       { return b.active }
func (b *SpeedBoost) Remaining() float64 { return b.remaining }

// Activate starts the boost and reports whether it did.
func (b *SpeedBoost) Activate() bool {
	if b.active {
		slog.Debug("boost already active", "remaining", b.remaining)
		return false
	}
	b.active = true
	b.remaining = b.duration
	if b.sink != nil {
		b.sink.SetSpeedModifier(b.multiplier)
	}
	slog.Info("boost started", "multiplier", b.multiplier, "duration", b.duration)
	if b.OnStart != nil {
		b.OnStart()
	}
	return true
}

// Tick counts the boost down and restores normal speed when it runs out.
func (b *SpeedBoost) Tick(dt float64) {
	if !b.active {
		return
	}
	b.remaining -= dt
	if b.remaining > 0 {
		return
	}
	b.active = false
	b.remaining = 0
	if b.sink != nil {
		b.sink.SetSpeedModifier(1)
	}
	slog.Info("boost ended")
	if b.OnEnd != nil {
		b.OnEnd()
	}
}
