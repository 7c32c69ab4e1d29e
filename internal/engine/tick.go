// Package engine provides the tick-based simulation loop and the
// simulation that it drives.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Engine drives the simulation forward at a fixed tick interval.
type Engine struct {
	Interval    time.Duration // Sim time per tick; wall time is Interval/Speed
	ReportEvery uint64        // Ticks between OnReport calls (0 disables)

	// Callbacks populated during setup.
	OnTick   func(tick uint64, dt float64) // Every tick
	OnReport func(tick uint64)             // Every ReportEvery ticks

	mu      sync.Mutex
	tick    uint64
	speed   float64
	running bool
	cancel  context.CancelFunc
}

// NewEngine creates an engine ticking every interval at real-time speed.
func NewEngine(interval time.Duration) *Engine {
	if interval <= 0 {
		interval = time.Second / 30
	}
	return &Engine{
		Interval: interval,
		speed:    1.0,
	}
}

// Tick returns the last tick run.
func (e *Engine) Tick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// SetTick resumes the counter, used when restoring from the database.
func (e *Engine) SetTick(t uint64) {
	e.mu.Lock()
	e.tick = t
	e.mu.Unlock()
}

// Speed is the wall-clock multiplier: 1 is real time, 0 pauses.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

func (e *Engine) SetSpeed(s float64) {
	e.mu.Lock()
	e.speed = max(0, s)
	e.mu.Unlock()
	slog.Info("engine speed set", "speed", s)
}

// Running reports whether Run is looping.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run starts the simulation loop. Blocks until ctx is done or Stop is
// called.
func (e *Engine) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.running = true
	e.cancel = cancel
	e.mu.Unlock()
	defer func() {
		cancel()
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	slog.Info("simulation engine started", "tick", e.Tick(), "speed", e.Speed(), "interval", e.Interval)

	for {
		speed := e.Speed()
		if speed <= 0 {
			// Paused: sleep briefly and check again.
			if !sleep(ctx, 100*time.Millisecond) {
				break
			}
			continue
		}

		start := time.Now()
		e.Step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if !sleep(ctx, target-elapsed) {
			break
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Tick())
}

// Stop halts the loop started by Run.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// Step advances the simulation by one tick.
func (e *Engine) Step() {
	e.mu.Lock()
	e.tick++
	tick := e.tick
	e.mu.Unlock()

	if e.OnTick != nil {
		e.OnTick(tick, e.Interval.Seconds())
	}
	if e.ReportEvery > 0 && tick%e.ReportEvery == 0 && e.OnReport != nil {
		e.OnReport(tick)
	}
}

// sleep waits d or until ctx is done, reporting false in the latter case.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// SimTime renders a tick as elapsed sim time, e.g. "2m03.4s".
func SimTime(tick uint64, interval time.Duration) string {
	d := time.Duration(tick) * interval
	m := int(d / time.Minute)
	s := (d % time.Minute).Seconds()
	return fmt.Sprintf("%dm%04.1fs", m, s)
}
