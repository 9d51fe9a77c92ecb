// Package eventlog holds the ordered record of applied player actions for
// one game. The log plus the game settings is the complete description of a
// match: replaying it against a fresh state reproduces every intermediate
// state bit for bit.
package eventlog

import (
	"errors"
	"sort"

	"bomberhans/internal/game"
)

// ErrOutOfOrder is returned when an append would break the nondecreasing
// tick order.
var ErrOutOfOrder = errors.New("eventlog: entry tick precedes log tail")

// Entry records that a player's action changed at the given tick, before
// that tick's advance ran.
type Entry struct {
	Tick   game.Tick     `msgpack:"t"`
	Player game.PlayerID `msgpack:"p"`
	Action game.Action   `msgpack:"a"`
}

// Log is the append-only action history of one game. It is owned by the
// goroutine that owns the corresponding GameState and is not synchronized.
type Log struct {
	entries []Entry
}

// New returns an empty log.
func New() *Log {
	return &Log{entries: make([]Entry, 0, 256)}
}

// Append records an entry. Entries must arrive in nondecreasing tick order;
// anything older than the tail is refused with ErrOutOfOrder.
func (l *Log) Append(e Entry) error {
	if n := len(l.entries); n > 0 && e.Tick < l.entries[n-1].Tick {
		return ErrOutOfOrder
	}
	l.entries = append(l.entries, e)
	return nil
}

// Len returns the number of recorded entries.
func (l *Log) Len() int { return len(l.entries) }

// LastTick returns the tick of the newest entry, or zero for an empty log.
func (l *Log) LastTick() game.Tick {
	if len(l.entries) == 0 {
		return 0
	}
	return l.entries[len(l.entries)-1].Tick
}

// Since returns a copy of every entry scheduled at or after the given tick.
// A client whose verified state sits at tick T needs exactly Since(T) to
// catch up.
func (l *Log) Since(tick game.Tick) []Entry {
	i := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].Tick >= tick
	})
	if i == len(l.entries) {
		return nil
	}
	out := make([]Entry, len(l.entries)-i)
	copy(out, l.entries[i:])
	return out
}

// Entries returns a copy of the whole log, oldest first.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Step applies the prefix of entries scheduled at or before the state's
// current tick, advances the state one tick and returns the remaining
// entries. Entries whose tick already passed are applied before the next
// advance rather than dropped.
func Step(g *game.GameState, entries []Entry) []Entry {
	for len(entries) > 0 && entries[0].Tick <= g.Tick {
		g.SetPlayerAction(entries[0].Player, entries[0].Action)
		entries = entries[1:]
	}
	g.Advance()
	return entries
}

// Replay advances the state up to the target tick, applying each entry at
// its recorded tick.
func Replay(g *game.GameState, entries []Entry, target game.Tick) {
	for g.Tick < target {
		entries = Step(g, entries)
	}
}
