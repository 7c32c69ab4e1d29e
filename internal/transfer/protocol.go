package transfer

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/talgya/fullness/internal/gauge"
)

// Gating failures. Callers treat all of them as silent no-ops.
var (
	ErrInFlight   = errors.New("transfer: pair already in flight")
	ErrSinkFull   = errors.New("transfer: sink is full")
	ErrNoHeadroom = errors.New("transfer: source has no headroom")
	ErrLocked     = errors.New("transfer: transfers are locked")
)

// Endpoint is one side of a transfer.
type Endpoint struct {
	ID    string
	Gauge *gauge.Gauge
}

// Params are read from the live tunables each time a transfer is admitted.
type Params struct {
	Multiplier     float64
	ReturnFraction float64
	Duration       float64
}

// Kind distinguishes player transfers from giver gifts.
type Kind uint8

const (
	KindStandard Kind = iota
	KindGift
)

func (k Kind) String() string {
	if k == KindGift {
		return "gift"
	}
	return "standard"
}

// endSlack absorbs float drift from summing per-tick dt.
const endSlack = 1e-9

// Transfer is one in-flight transfer. Fields are read-only outside the
// package.
type Transfer struct {
	ID       string
	Kind     Kind
	Source   Endpoint
	Sink     Endpoint
	Plan     Plan
	Duration float64
	Elapsed  float64
	Pinned   bool // pinned transfers ignore Cancel

	applied float64 // interpolation parameter already written to the gauges
}

// Progress is elapsed/duration in [0, 1].
func (t *Transfer) Progress() float64 {
	if t.Elapsed >= t.Duration-endSlack {
		return 1
	}
	return gauge.Clamp01(t.Elapsed / t.Duration)
}

// step writes this tick's share of the interpolation and reports whether
// the transfer reached its end.
func (t *Transfer) step(dt float64) bool {
	t.Elapsed += dt
	p := t.Progress()
	share := p - t.applied
	t.applied = p
	t.Source.Gauge.Nudge(share * (t.Plan.SourceTarget - t.Plan.SourceStart))
	t.Sink.Gauge.Nudge(share * (t.Plan.SinkTarget - t.Plan.SinkStart))
	return p >= 1
}

// Hooks observe the transfer lifecycle. Nil hooks are skipped.
type Hooks struct {
	Started   func(*Transfer)
	Completed func(*Transfer)
	Cancelled func(*Transfer)
}

type pair struct{ source, sink string }

// Protocol owns every in-flight transfer. It is advanced by the simulation
// tick and is not safe for concurrent use.
type Protocol struct {
	params func() Params
	hooks  Hooks
	locked func() bool

	slots  map[pair]*Transfer
	active []*Transfer // start order
}

// NewProtocol creates a protocol reading its parameters from params.
func NewProtocol(params func() Params, hooks Hooks) *Protocol {
	return &Protocol{
		params: params,
		hooks:  hooks,
		slots:  make(map[pair]*Transfer),
	}
}

// SetLock installs the gate consulted by Request. A nil gate unlocks.
func (p *Protocol) SetLock(locked func() bool) { p.locked = locked }

// Locked reports whether standard transfers are currently gated.
func (p *Protocol) Locked() bool { return p.locked != nil && p.locked() }

// Busy reports whether a transfer is in flight for the pair.
func (p *Protocol) Busy(source, sink string) bool {
	_, ok := p.slots[pair{source, sink}]
	return ok
}

// Active returns the in-flight transfers in start order.
func (p *Protocol) Active() []*Transfer {
	return append([]*Transfer(nil), p.active...)
}

// Reserved is the draw that in-flight transfers have committed against
// sourceID but not yet written to its gauge.
func (p *Protocol) Reserved(sourceID string) float64 {
	r := 0.0
	for _, t := range p.active {
		if t.Source.ID == sourceID {
			r += (1 - t.applied) * (t.Plan.SourceStart - t.Plan.SourceTarget)
		}
	}
	return max(0, r)
}

// Request admits a standard transfer of up to amount from source to sink.
func (p *Protocol) Request(source, sink Endpoint, amount float64) (*Transfer, error) {
	if p.Locked() {
		return nil, ErrLocked
	}
	if p.Busy(source.ID, sink.ID) {
		return nil, ErrInFlight
	}
	if sink.Gauge.Full() {
		return nil, ErrSinkFull
	}
	avail := source.Gauge.Headroom() - p.Reserved(source.ID)
	if avail <= endSlack {
		return nil, ErrNoHeadroom
	}
	prm := p.params()
	plan := Compute(source.Gauge.Current(), sink.Gauge.Current(), min(amount, avail), prm.Multiplier, prm.ReturnFraction)
	plan.Requested = max(0, amount)
	return p.start(KindStandard, source, sink, plan, prm.Duration, false), nil
}

// Gift starts the giver's transfer: sink is driven to the ceiling and
// source to the floor over duration seconds. Gifts are pinned and return
// nothing.
func (p *Protocol) Gift(source, sink Endpoint, duration float64) (*Transfer, error) {
	if p.Busy(source.ID, sink.ID) {
		return nil, ErrInFlight
	}
	plan := ComputeGift(source.Gauge.Current(), sink.Gauge.Current())
	return p.start(KindGift, source, sink, plan, duration, true), nil
}

func (p *Protocol) start(kind Kind, source, sink Endpoint, plan Plan, duration float64, pinned bool) *Transfer {
	t := &Transfer{
		ID:       uuid.NewString(),
		Kind:     kind,
		Source:   source,
		Sink:     sink,
		Plan:     plan,
		Duration: max(duration, 1e-3),
		Pinned:   pinned,
	}
	p.slots[pair{source.ID, sink.ID}] = t
	p.active = append(p.active, t)
	slog.Debug("transfer started", "id", t.ID, "kind", kind, "source", source.ID, "sink", sink.ID,
		"actual", plan.Actual, "duration", t.Duration)
	if p.hooks.Started != nil {
		p.hooks.Started(t)
	}
	return t
}

// Step advances every active transfer by dt seconds in start order.
func (p *Protocol) Step(dt float64) {
	if len(p.active) == 0 {
		return
	}
	for _, t := range append([]*Transfer(nil), p.active...) {
		if p.slots[pair{t.Source.ID, t.Sink.ID}] != t {
			continue // cancelled by an earlier hook this tick
		}
		if !t.step(dt) {
			continue
		}
		if t.Plan.Credit > 0 {
			t.Source.Gauge.Nudge(t.Plan.Credit)
		}
		p.remove(t)
		if p.hooks.Completed != nil {
			p.hooks.Completed(t)
		}
	}
}

// Cancel discards every unpinned transfer touching actorID. Values already
// written stay where they are. It returns the number discarded.
func (p *Protocol) Cancel(actorID string) int { return p.discard(actorID, false) }

// Drop discards every transfer touching actorID, pinned ones included. It is
// used once the actor itself is gone.
func (p *Protocol) Drop(actorID string) int { return p.discard(actorID, true) }

func (p *Protocol) discard(actorID string, pinned bool) int {
	n := 0
	for _, t := range append([]*Transfer(nil), p.active...) {
		if (t.Pinned && !pinned) || (t.Source.ID != actorID && t.Sink.ID != actorID) {
			continue
		}
		p.remove(t)
		n++
		slog.Debug("transfer cancelled", "id", t.ID, "actor", actorID, "progress", t.Progress())
		if p.hooks.Cancelled != nil {
			p.hooks.Cancelled(t)
		}
	}
	return n
}

func (p *Protocol) remove(t *Transfer) {
	delete(p.slots, pair{t.Source.ID, t.Sink.ID})
	for i, a := range p.active {
		if a == t {
			p.active = append(p.active[:i], p.active[i+1:]...)
			break
		}
	}
}
