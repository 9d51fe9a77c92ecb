package server

import (
	"fmt"

	"github.com/google/uuid"

	"bomberhans/internal/eventlog"
	"bomberhans/internal/game"
	"bomberhans/internal/protocol"
)

// match is one running game: the canonical state, its action log, and the
// sessions driving it. Owned by the hub goroutine; the slice index into
// sessions is the player id.
type match struct {
	id       uuid.UUID
	state    *game.GameState
	log      *eventlog.Log
	sessions []*session // nil entries are disconnected players
	future   []eventlog.Entry
	policy   WinPolicy
}

func newMatch(l *lobby, policy WinPolicy) (*match, error) {
	names := make([]string, len(l.members))
	for i, m := range l.members {
		names[i] = m.name
	}
	state, err := game.NewGameState(l.settings, names)
	if err != nil {
		return nil, fmt.Errorf("start game: %w", err)
	}
	m := &match{
		id:       uuid.New(),
		state:    state,
		log:      eventlog.New(),
		sessions: append([]*session(nil), l.members...),
		policy:   policy,
	}
	for i, s := range m.sessions {
		s.match = m
		s.player = game.PlayerID(i)
		s.lastAckedTick = 0
	}
	return m, nil
}

// applyUpdate handles one GameUpdate from a session. Future-dated actions
// are buffered for their tick; anything at or before the present is applied
// now and logged at the current tick, never rejected for lateness.
func (m *match) applyUpdate(s *session, upd protocol.GameUpdate) {
	if upd.LastServerTick > s.lastAckedTick {
		s.lastAckedTick = upd.LastServerTick
	}
	entry := eventlog.Entry{Tick: upd.ActionTick, Player: s.player, Action: upd.Action}
	if entry.Tick > m.state.Tick {
		m.future = append(m.future, entry)
		return
	}
	m.apply(entry)
}

// apply sets the action on the canonical state and logs it if it changed
// anything. The log records the tick the action actually landed on.
func (m *match) apply(e eventlog.Entry) {
	if m.state.SetPlayerAction(e.Player, e.Action) {
		m.log.Append(eventlog.Entry{Tick: m.state.Tick, Player: e.Player, Action: e.Action})
	}
}

// tick applies every buffered action that is due and advances one step.
func (m *match) tick() {
	keep := m.future[:0]
	for _, e := range m.future {
		if e.Tick <= m.state.Tick {
			m.apply(e)
		} else {
			keep = append(keep, e)
		}
	}
	m.future = keep
	m.state.Advance()
}

// delta builds the catch-up payload for one session.
func (m *match) delta(s *session) protocol.Delta {
	return protocol.Delta{
		Tick:     m.state.Tick,
		Checksum: m.state.Checksum(),
		Entries:  m.log.Since(s.lastAckedTick),
	}
}

func (m *match) connected() int {
	n := 0
	for _, s := range m.sessions {
		if s != nil {
			n++
		}
	}
	return n
}

// drop disconnects a session from the match. The player's avatar stops in
// place; the stop is logged like any other action so replays stay faithful.
func (m *match) drop(s *session) {
	for i, other := range m.sessions {
		if other == s {
			m.sessions[i] = nil
			m.apply(eventlog.Entry{Tick: m.state.Tick, Player: s.player, Action: game.Idle()})
			break
		}
	}
	s.match = nil
}

// result snapshots the finished match for persistence.
func (m *match) result(winner game.PlayerID) MatchResult {
	players := make([]PlayerResult, len(m.state.Players))
	for i := range m.state.Players {
		p := &m.state.Players[i]
		players[i] = PlayerResult{
			Name:   p.Name,
			Kills:  p.Kills,
			Deaths: p.Deaths,
			Winner: p.ID == winner,
		}
	}
	return MatchResult{
		ID:       m.id,
		GameName: m.state.Settings.GameName,
		Ticks:    m.state.Tick,
		Checksum: m.state.Checksum(),
		Settings: m.state.Settings,
		Players:  players,
		Log:      m.log.Entries(),
	}
}
