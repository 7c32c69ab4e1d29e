// Simulation ties together the player, NPCs, givers and transfers and runs
// them each tick.
package engine

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talgya/fullness/internal/config"
	"github.com/talgya/fullness/internal/events"
	"github.com/talgya/fullness/internal/gauge"
	"github.com/talgya/fullness/internal/geom"
	"github.com/talgya/fullness/internal/locomotion"
	"github.com/talgya/fullness/internal/npc"
	"github.com/talgya/fullness/internal/player"
	"github.com/talgya/fullness/internal/population"
	"github.com/talgya/fullness/internal/transfer"
)

// PlayerID is the actor ID of the player.
const PlayerID = "player"

// maxRecentEvents bounds the RecentEvents buffer.
const maxRecentEvents = 1000

// Actor is what the simulation needs from an NPC or a giver.
type Actor interface {
	ID() string
	State() npc.State
	Gauge() *gauge.Gauge
	Position() geom.Vec3
	Endpoint() transfer.Endpoint
	PlayerEntered()
	PlayerExited()
	Tick(dt float64)
	Destroy()
	Destroyed() bool
}

type slot struct {
	actor   Actor
	kind    string
	mover   *locomotion.Kinematic
	inRange bool
}

// Options configure a Simulation.
type Options struct {
	Live           *config.Live
	Area           *locomotion.Area
	Interval       time.Duration
	Seed           int64
	PlayerStart    geom.Vec3
	PlayerSpeed    float64
	PlayerFullness float64
	// Audio receives theme changes. Nil publishes them as player.band
	// events only.
	Audio player.AudioPort
}

// Simulation holds the complete scene state and wires systems together.
// Everything except Enqueue, Snapshot, RecentEvents and CurrentTick runs on
// the tick goroutine.
type Simulation struct {
	Live       *config.Live
	Bus        *events.Bus
	Registry   *population.Registry[*npc.Controller]
	Transfers  *transfer.Protocol
	Player     *player.Player
	Interactor *player.Interactor
	Boost      *player.SpeedBoost
	Area       *locomotion.Area

	Stats Stats

	interval time.Duration
	tick     atomic.Uint64
	tun      config.Tunables
	settings npc.Settings
	version  uint64
	loaded   bool
	rng      *rand.Rand
	nextID   int
	actors   []*slot
	index    map[string]*slot
	audio    player.AudioPort
	anim     struct {
		speed float64
		low   bool
	}
	unsubs []func()

	mu      sync.Mutex
	mailbox []func(*Simulation)
	recent  []events.Event // oldest first
	snap    atomic.Pointer[Snapshot]
}

// NewSimulation builds an empty scene holding only the player.
func NewSimulation(o Options) *Simulation {
	if o.Live == nil {
		o.Live = config.NewLive(config.Default())
	}
	if o.Interval <= 0 {
		o.Interval = o.Live.Get().TickInterval()
	}
	if o.Seed == 0 {
		o.Seed = rand.Int63()
	}
	s := &Simulation{
		Live:     o.Live,
		Registry: population.NewRegistry[*npc.Controller](),
		Area:     o.Area,
		interval: o.Interval,
		rng:      rand.New(rand.NewSource(o.Seed)),
		nextID:   1,
		index:    make(map[string]*slot),
		audio:    o.Audio,
	}
	s.Bus = events.NewBus(s.CurrentTick)
	s.unsubs = append(s.unsubs, s.Bus.SubscribeAll(s.record))
	s.refresh()

	s.Transfers = transfer.NewProtocol(s.transferParams, transfer.Hooks{
		Started:   s.transferStarted,
		Completed: s.transferCompleted,
		Cancelled: s.transferCancelled,
	})
	s.Transfers.SetLock(s.locked)

	tun := s.tun
	s.Player = player.New(player.Options{
		ID:                 PlayerID,
		Gauge:              gauge.New(o.PlayerFullness, tun.GaugeRate),
		Mover:              locomotion.NewKinematic(o.PlayerStart, o.PlayerSpeed, o.Area),
		Audio:              themeRelay{s},
		Animation:          s,
		Themes:             tun.Themes,
		LowResourcePercent: tun.Animation.LowResourcePercent,
	})
	s.Interactor = player.NewInteractor(s.Player, s.Transfers, s.transferAmount, s.Bus)
	s.Interactor.Rejected = s.transferRejected
	s.Boost = player.NewSpeedBoost(s.Player, tun.Boost.Multiplier, tun.Boost.Duration)
	s.Boost.OnStart = func() { s.publish(events.Event{Type: events.BoostStarted, Actor: PlayerID}) }
	s.Boost.OnEnd = func() { s.publish(events.Event{Type: events.BoostEnded, Actor: PlayerID}) }

	s.publishSnapshot()
	return s
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 { return s.tick.Load() }

// Interval is the sim time of one tick.
func (s *Simulation) Interval() time.Duration { return s.interval }

// Tunables returns the tunables in force for the current tick.
func (s *Simulation) Tunables() config.Tunables { return s.tun }

// Enqueue schedules fn to run on the tick goroutine at the start of the
// next tick. Safe for concurrent use.
func (s *Simulation) Enqueue(fn func(*Simulation)) {
	s.mu.Lock()
	s.mailbox = append(s.mailbox, fn)
	s.mu.Unlock()
}

// Snapshot returns the view published after the last tick. Safe for
// concurrent use.
func (s *Simulation) Snapshot() *Snapshot { return s.snap.Load() }

// PressPrimary feeds one primary-action press into the input bus.
func (s *Simulation) PressPrimary() {
	s.publish(events.Event{Type: events.InputPrimary, Actor: PlayerID})
}

// Step runs one tick. Gauges move before anything reads them, so every
// state machine sees this tick's values.
func (s *Simulation) Step(tick uint64, dt float64) {
	s.tick.Store(tick)
	s.drain()
	s.refresh()

	s.Transfers.Step(dt)
	s.Player.Gauge().Tick(dt)
	for _, sl := range s.actors {
		sl.actor.Gauge().Tick(dt)
	}
	s.Player.Tick(dt)
	s.Boost.Tick(dt)

	s.updateProximity()
	for _, sl := range s.actors {
		sl.actor.Tick(dt)
	}

	s.Player.Mover().Step(dt)
	for _, sl := range s.actors {
		sl.mover.Step(dt)
	}

	s.reap()
	s.publishSnapshot()
}

// Report logs the parameters in force and the running counters.
func (s *Simulation) Report(tick uint64) {
	tr := s.tun.Transfer
	slog.Info("parameter report",
		"tick", tick,
		"time", SimTime(tick, s.interval),
		"transfer_amount", tr.Amount,
		"multiplier", tr.Multiplier,
		"return_fraction", tr.ReturnFraction,
		"transfer_duration", tr.Duration,
		"player_fullness", s.Player.Gauge().Current(),
		"actors", len(s.actors),
		"registered", s.Registry.Len(),
		"locked", s.locked(),
		"active_transfers", len(s.Transfers.Active()),
		"completed", s.Stats.TransfersCompleted,
	)
}

// Close detaches every subscription. The simulation must not be stepped
// afterwards.
func (s *Simulation) Close() {
	for _, sl := range s.actors {
		sl.actor.Destroy()
	}
	s.reap()
	s.Interactor.Close()
	s.Player.Close()
	for _, u := range s.unsubs {
		u()
	}
	s.unsubs = nil
	s.Registry.Clear()
}

// Animate records what the animation layer would be told.
func (s *Simulation) Animate(speed float64, low bool) {
	s.anim.speed, s.anim.low = speed, low
}

func (s *Simulation) drain() {
	s.mu.Lock()
	q := s.mailbox
	s.mailbox = nil
	s.mu.Unlock()
	for _, fn := range q {
		fn(s)
	}
}

// refresh picks up tunable changes made since the last tick.
func (s *Simulation) refresh() {
	v := s.Live.Version()
	if s.loaded && v == s.version {
		return
	}
	s.loaded = true
	s.version = v
	s.tun = s.Live.Get()
	s.settings = npc.SettingsFrom(s.tun)
	if s.Player != nil {
		s.Player.Gauge().SetRate(s.tun.GaugeRate)
	}
	for _, sl := range s.actors {
		sl.actor.Gauge().SetRate(s.tun.GaugeRate)
	}
	if s.Boost != nil {
		s.Boost.SetParams(s.tun.Boost.Multiplier, s.tun.Boost.Duration)
	}
}

func (s *Simulation) npcSettings() npc.Settings { return s.settings }

func (s *Simulation) transferAmount() float64 { return s.tun.Transfer.Amount }

func (s *Simulation) transferParams() transfer.Params {
	t := s.tun.Transfer
	return transfer.Params{Multiplier: t.Multiplier, ReturnFraction: t.ReturnFraction, Duration: t.Duration}
}

// locked gates standard transfers while a giver has not been consumed.
func (s *Simulation) locked() bool {
	if s.tun.UngatedTransfers {
		return false
	}
	for _, sl := range s.actors {
		if g, ok := sl.actor.(*npc.Giver); ok && !g.Consumed() {
			return true
		}
	}
	return false
}

func (s *Simulation) publish(e events.Event) {
	s.Bus.Publish(context.Background(), e)
}

func (s *Simulation) record(_ context.Context, e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, e)
	if len(s.recent) > maxRecentEvents {
		s.recent = append(s.recent[:0], s.recent[len(s.recent)-maxRecentEvents:]...)
	}
}

// RecentEvents returns up to limit of the latest events, oldest first.
// Safe for concurrent use.
func (s *Simulation) RecentEvents(limit int) []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := 0
	if limit > 0 && len(s.recent) > limit {
		start = len(s.recent) - limit
	}
	return append([]events.Event(nil), s.recent[start:]...)
}

func (s *Simulation) transferStarted(t *transfer.Transfer) {
	s.Stats.TransfersStarted++
	s.publish(events.Event{Type: events.TransferStarted, Actor: t.Source.ID, Target: t.Sink.ID,
		Payload: map[string]any{"id": t.ID, "kind": t.Kind.String(), "actual": t.Plan.Actual,
			"source_target": t.Plan.SourceTarget, "sink_target": t.Plan.SinkTarget, "duration": t.Duration}})
}

func (s *Simulation) transferCompleted(t *transfer.Transfer) {
	s.Stats.TransfersCompleted++
	s.publish(events.Event{Type: events.TransferCompleted, Actor: t.Source.ID, Target: t.Sink.ID,
		Payload: transferPayload(t)})
}

func (s *Simulation) transferCancelled(t *transfer.Transfer) {
	s.Stats.TransfersCancelled++
	s.publish(events.Event{Type: events.TransferCancelled, Actor: t.Source.ID, Target: t.Sink.ID,
		Payload: transferPayload(t)})
}

func (s *Simulation) transferRejected(target string, err error) {
	s.Stats.TransfersDropped++
	s.publish(events.Event{Type: events.TransferDropped, Actor: PlayerID, Target: target,
		Payload: map[string]any{"reason": err.Error()}})
}

func transferPayload(t *transfer.Transfer) map[string]any {
	return map[string]any{
		"id":              t.ID,
		"kind":            t.Kind.String(),
		"requested":       t.Plan.Requested,
		"actual":          t.Plan.Actual,
		"multiplier":      t.Plan.Multiplier,
		"credit":          t.Plan.Credit,
		"progress":        t.Progress(),
		"source_fullness": t.Source.Gauge.Current(),
		"sink_fullness":   t.Sink.Gauge.Current(),
	}
}

// themeRelay publishes theme changes and forwards them to the configured
// audio port.
type themeRelay struct{ s *Simulation }

func (r themeRelay) PlayTheme(clip string, volume, pitch float64) {
	if r.s.audio != nil {
		r.s.audio.PlayTheme(clip, volume, pitch)
	}
	r.s.publish(events.Event{Type: events.PlayerBand, Actor: PlayerID,
		Payload: map[string]any{"clip": clip, "volume": volume, "pitch": pitch}})
}

func (s *Simulation) publishSnapshot() {
	tick := s.CurrentTick()
	p := s.Player
	pv := PlayerView{
		ID:          PlayerID,
		Fullness:    p.Gauge().Current(),
		Percent:     p.Gauge().Percent(),
		Position:    p.Position(),
		Band:        p.Band(),
		Boosted:     s.Boost.Active(),
		Speed:       s.anim.speed,
		LowResource: s.anim.low,
	}
	for _, sk := range p.InRange() {
		pv.InRange = append(pv.InRange, sk.Endpoint().ID)
	}
	if d, ok := p.Mover().Destination(); ok {
		pv.Destination = &d
	}

	snap := &Snapshot{
		Tick:       tick,
		SimTime:    SimTime(tick, s.interval),
		Player:     pv,
		Actors:     make([]ActorView, 0, len(s.actors)),
		Locked:     s.locked(),
		Registered: s.Registry.Len(),
		Stats:      s.Stats,
	}
	for _, sl := range s.actors {
		snap.Actors = append(snap.Actors, viewOf(sl))
	}
	for _, t := range s.Transfers.Active() {
		snap.Transfers = append(snap.Transfers, TransferView{
			ID:       t.ID,
			Kind:     t.Kind.String(),
			Source:   t.Source.ID,
			Sink:     t.Sink.ID,
			Progress: t.Progress(),
			Plan:     t.Plan,
		})
	}
	s.snap.Store(snap)
}

func viewOf(sl *slot) ActorView {
	a := sl.actor
	v := ActorView{
		ID:       a.ID(),
		Kind:     sl.kind,
		State:    a.State().String(),
		Fullness: a.Gauge().Current(),
		Position: a.Position(),
		InRange:  sl.inRange,
	}
	switch x := a.(type) {
	case *npc.Controller:
		v.Persistent = x.Persistent()
	case *npc.Giver:
		v.Consumed = x.Consumed()
	}
	return v
}
