package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// MinTransferDuration keeps the transfer interpolation well defined.
const MinTransferDuration = 0.01

// Live is the runtime copy of the tunables. Readers get a value copy, so a
// change never tears a tick that is already running; it applies from the
// next read.
type Live struct {
	mu  sync.RWMutex
	cur Tunables
	ver uint64
}

// NewLive wraps t after filling defaults.
func NewLive(t Tunables) *Live {
	t.applyDefaults()
	sortThemes(t.Themes)
	return &Live{cur: t}
}

// Get returns a copy of the current tunables.
func (l *Live) Get() Tunables {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t := l.cur
	t.Themes = append([]Theme(nil), l.cur.Themes...)
	return t
}

// Version increments on every change.
func (l *Live) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ver
}

// Update applies fn to the tunables and re-clamps runtime parameters.
func (l *Live) Update(fn func(t *Tunables)) Tunables {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&l.cur)
	clampRuntime(&l.cur)
	l.ver++
	return l.cur
}

// SetTransferAmount sets how much the player offers per transfer (≥ 0).
func (l *Live) SetTransferAmount(v float64) {
	l.Update(func(t *Tunables) { t.Transfer.Amount = v })
}

// SetMultiplier sets the NPC yield multiplier (≥ 0).
func (l *Live) SetMultiplier(v float64) {
	l.Update(func(t *Tunables) { t.Transfer.Multiplier = v })
}

// SetReturnFraction sets the player return fraction, clamped to [0, 1].
func (l *Live) SetReturnFraction(v float64) {
	l.Update(func(t *Tunables) { t.Transfer.ReturnFraction = v })
}

// SetTransferDuration sets the transfer duration (≥ MinTransferDuration).
func (l *Live) SetTransferDuration(v float64) {
	l.Update(func(t *Tunables) { t.Transfer.Duration = v })
}

// SetTransferParameters sets all four transfer parameters at once.
func (l *Live) SetTransferParameters(amount, multiplier, returnFraction, duration float64) {
	l.Update(func(t *Tunables) {
		t.Transfer = Transfer{
			Amount:         amount,
			Multiplier:     multiplier,
			ReturnFraction: returnFraction,
			Duration:       duration,
		}
	})
}

// PatchJSON merges a partial JSON document into the tunables. Fields absent
// from raw keep their values. The patch and the merged result must both pass
// the tuning schema; nothing is applied otherwise.
func (l *Live) PatchJSON(raw []byte) (Tunables, error) {
	if err := Validate(raw); err != nil {
		return Tunables{}, err
	}
	next := l.Get()
	if err := json.Unmarshal(raw, &next); err != nil {
		return Tunables{}, fmt.Errorf("decode patch: %w", err)
	}
	if err := ValidateTunables(next); err != nil {
		return Tunables{}, err
	}
	b := next.Behavior
	if !(b.WanderAbove >= b.ApproachAbove && b.ApproachAbove >= b.BlockAbove) {
		return Tunables{}, fmt.Errorf("breakpoints must descend: %v/%v/%v",
			b.WanderAbove, b.ApproachAbove, b.BlockAbove)
	}
	applied := l.Update(func(t *Tunables) { *t = next })
	slog.Info("tunables patched", "version", l.Version())
	return applied, nil
}

func clampRuntime(t *Tunables) {
	tr := &t.Transfer
	tr.Amount = max(0, tr.Amount)
	tr.Multiplier = max(0, tr.Multiplier)
	tr.ReturnFraction = min(1, max(0, tr.ReturnFraction))
	tr.Duration = max(MinTransferDuration, tr.Duration)

	b := &t.Behavior
	b.WanderAbove = min(100, max(0, b.WanderAbove))
	b.ApproachAbove = min(100, max(0, b.ApproachAbove))
	b.BlockAbove = min(100, max(0, b.BlockAbove))
	b.SafeDistance = max(0, b.SafeDistance)
	b.StopDistance = max(0, b.StopDistance)
	b.WanderRadius = max(0, b.WanderRadius)

	t.Giver.Duration = max(MinTransferDuration, t.Giver.Duration)
	sortThemes(t.Themes)
}
