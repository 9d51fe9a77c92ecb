// Package client implements the prediction side of the synchronization
// scheme: a verified state that only ever contains server-confirmed
// actions, and an assumed state that additionally carries the local
// player's unconfirmed inputs a few ticks ahead of the server.
package client

import (
	"errors"
	"sync/atomic"

	"bomberhans/internal/eventlog"
	"bomberhans/internal/game"
	"bomberhans/internal/protocol"
)

// DefaultLead is how many ticks local actions are scheduled ahead of the
// verified state, roughly one round trip at 60 Hz.
const DefaultLead game.Tick = 5

// ErrDesync is returned when the verified state's checksum disagrees with
// the server's. The only recovery is rejoining the game.
var ErrDesync = errors.New("client: verified state diverged from server")

// Predictor reconciles server deltas with local input. One goroutine calls
// SetLocalAction, ApplyDelta and Step; any goroutine may read Assumed.
type Predictor struct {
	verified *game.GameState
	assumed  atomic.Pointer[game.GameState]

	// pending holds unconfirmed local actions in schedule order.
	pending []eventlog.Entry
	player  game.PlayerID
	lead    game.Tick
}

// NewPredictor starts predicting from the initial game state. A lead of
// zero falls back to DefaultLead.
func NewPredictor(start *game.GameState, local game.PlayerID, lead game.Tick) *Predictor {
	if lead == 0 {
		lead = DefaultLead
	}
	p := &Predictor{
		verified: start.Clone(),
		player:   local,
		lead:     lead,
	}
	p.assumed.Store(start.Clone())
	return p
}

// Assumed returns the current speculative state. The returned state is
// never mutated; every update installs a fresh clone.
func (p *Predictor) Assumed() *game.GameState {
	return p.assumed.Load()
}

// VerifiedTick returns the tick of the last server-confirmed state, the
// value to acknowledge in outgoing updates.
func (p *Predictor) VerifiedTick() game.Tick {
	return p.verified.Tick
}

// Pending returns how many local actions await server confirmation.
func (p *Predictor) Pending() int { return len(p.pending) }

// SetLocalAction schedules a local input ahead of the verified state and
// reports the tick to stamp on the outgoing update. A repeat of the action
// already in effect returns false and sends nothing.
func (p *Predictor) SetLocalAction(a game.Action) (game.Tick, bool) {
	if p.effectiveAction() == a {
		return 0, false
	}
	tick := p.verified.Tick + p.lead
	if n := len(p.pending); n > 0 && p.pending[n-1].Tick > tick {
		tick = p.pending[n-1].Tick
	}
	p.pending = append(p.pending, eventlog.Entry{Tick: tick, Player: p.player, Action: a})
	return tick, true
}

// effectiveAction is the local player's action once every pending input has
// landed.
func (p *Predictor) effectiveAction() game.Action {
	if n := len(p.pending); n > 0 {
		return p.pending[n-1].Action
	}
	return p.verified.Players[p.player].Action
}

// ApplyDelta folds a server delta into the verified state and rebuilds the
// assumed state on top of it. Stale and overlapping deltas are harmless:
// entries the verified state already passed are dropped before replay.
func (p *Predictor) ApplyDelta(d protocol.Delta) error {
	if d.Tick < p.verified.Tick {
		return nil
	}
	entries := d.Entries
	for len(entries) > 0 && entries[0].Tick < p.verified.Tick {
		entries = entries[1:]
	}
	eventlog.Replay(p.verified, entries, d.Tick)
	if d.Checksum != 0 && p.verified.Checksum() != d.Checksum {
		return ErrDesync
	}

	// Confirmed inputs are in the verified state now; drop them.
	confirmed := 0
	for confirmed < len(p.pending) && p.pending[confirmed].Tick < p.verified.Tick {
		confirmed++
	}
	p.pending = append(p.pending[:0], p.pending[confirmed:]...)

	p.rebuild(p.Assumed().Tick)
	return nil
}

// Step advances the assumed state one tick, applying pending local actions
// scheduled for it. Called at the render clock's rate.
func (p *Predictor) Step() {
	p.rebuildFrom(p.Assumed(), p.Assumed().Tick+1)
}

// rebuild reconstructs the assumed state from the verified one: clone,
// re-apply every pending action at its tick, advance to the target. The
// result replaces the old assumed state atomically.
func (p *Predictor) rebuild(target game.Tick) {
	p.rebuildFrom(p.verified, target)
}

func (p *Predictor) rebuildFrom(base *game.GameState, target game.Tick) {
	if floor := p.verified.Tick + p.lead; target < floor {
		target = floor
	}
	a := base.Clone()
	for a.Tick < target {
		for _, e := range p.pending {
			if e.Tick <= a.Tick {
				a.SetPlayerAction(e.Player, e.Action)
			}
		}
		a.Advance()
	}
	p.assumed.Store(a)
}
