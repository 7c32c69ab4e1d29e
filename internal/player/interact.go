package player

import (
	"context"
	"errors"
	"log/slog"

	"github.com/talgya/fullness/internal/events"
	"github.com/talgya/fullness/internal/gauge"
	"github.com/talgya/fullness/internal/transfer"
)

// ErrNoTarget means no in-range sink can take a transfer.
var ErrNoTarget = errors.New("player: no eligible target")

// Requester admits transfers. *transfer.Protocol implements it.
type Requester interface {
	Request(source, sink transfer.Endpoint, amount float64) (*transfer.Transfer, error)
}

// Interactor turns primary-action presses into transfers from the player
// to the closest eligible NPC.
type Interactor struct {
	player    *Player
	transfers Requester
	amount    func() float64
	unsub     func()

	// Rejected, when set, is told about every press that did not start a
	// transfer. target is empty when no sink was eligible.
	Rejected func(target string, err error)
}

// NewInteractor subscribes to input.primary on bus. A nil bus leaves the
// caller to invoke Press directly.
func NewInteractor(p *Player, r Requester, amount func() float64, bus *events.Bus) *Interactor {
	in := &Interactor{player: p, transfers: r, amount: amount}
	if bus != nil {
		in.unsub = bus.Subscribe(events.InputPrimary, func(context.Context, events.Event) {
			in.Press()
		})
	}
	return in
}

// Press handles one primary action. Gating failures come back as errors
// for the caller's information; none of them is fatal.
func (in *Interactor) Press() (*transfer.Transfer, error) {
	target, ok := in.player.Closest()
	if !ok {
		return nil, in.reject("", ErrNoTarget)
	}
	id := target.Endpoint().ID
	if in.player.Gauge().Current() <= gauge.Floor {
		return nil, in.reject(id, transfer.ErrNoHeadroom)
	}
	t, err := in.transfers.Request(in.player.Endpoint(), target.Endpoint(), in.amount())
	if err != nil {
		return nil, in.reject(id, err)
	}
	return t, nil
}

func (in *Interactor) reject(target string, err error) error {
	slog.Debug("primary ignored", "target", target, "reason", err)
	if in.Rejected != nil {
		in.Rejected(target, err)
	}
	return err
}

// Close unsubscribes from the bus.
func (in *Interactor) Close() {
	if in.unsub != nil {
		in.unsub()
	}
}
