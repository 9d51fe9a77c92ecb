package server

import (
	"github.com/google/uuid"

	"bomberhans/internal/game"
	"bomberhans/internal/protocol"
)

// lobby is a game being assembled: a host, guests, and the settings the
// host is free to tune until start. Owned by the hub goroutine.
type lobby struct {
	id       uuid.UUID
	settings game.Settings
	host     *session
	members  []*session // host first, then guests in join order
	ready    map[*session]bool
}

func newLobby(host *session, settings game.Settings) *lobby {
	return &lobby{
		id:       uuid.New(),
		settings: settings,
		host:     host,
		members:  []*session{host},
		ready:    map[*session]bool{host: true},
	}
}

func (l *lobby) contains(s *session) bool {
	for _, m := range l.members {
		if m == s {
			return true
		}
	}
	return false
}

func (l *lobby) full() bool {
	return len(l.members) >= l.settings.Players
}

func (l *lobby) add(s *session) {
	if l.contains(s) {
		return
	}
	l.members = append(l.members, s)
	l.ready[s] = false
}

func (l *lobby) remove(s *session) {
	for i, m := range l.members {
		if m == s {
			l.members = append(l.members[:i], l.members[i+1:]...)
			break
		}
	}
	delete(l.ready, s)
}

// allReady reports whether every guest has flagged ready. The host's intent
// is the start command itself.
func (l *lobby) allReady() bool {
	for _, m := range l.members {
		if m != l.host && !l.ready[m] {
			return false
		}
	}
	return true
}

// state builds the lobby view pushed to every member.
func (l *lobby) state() protocol.LobbyState {
	players := make([]protocol.LobbyPlayer, 0, len(l.members))
	for _, m := range l.members {
		players = append(players, protocol.LobbyPlayer{
			Name:  m.name,
			Ready: l.ready[m],
			Host:  m == l.host,
		})
	}
	return protocol.LobbyState{ID: l.id, Settings: l.settings, Players: players}
}

// info is the one-line listing entry shown to clients browsing lobbies.
func (l *lobby) info() protocol.LobbyInfo {
	return protocol.LobbyInfo{ID: l.id, Name: l.settings.GameName, Players: len(l.members)}
}
