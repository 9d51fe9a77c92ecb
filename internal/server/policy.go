package server

import (
	"github.com/google/uuid"

	"bomberhans/internal/eventlog"
	"bomberhans/internal/game"
)

// WinPolicy decides when a running game is over. It is evaluated by the hub
// after every tick, outside the simulation itself.
type WinPolicy interface {
	// Evaluate returns the winner and true once the game should end.
	Evaluate(g *game.GameState, connected int) (game.PlayerID, bool)
}

// ScoreCap ends the game when a player reaches Kills kills, or when all but
// one player have disconnected. A Kills value of zero disables the cap.
type ScoreCap struct {
	Kills int
}

// Evaluate implements WinPolicy.
func (p ScoreCap) Evaluate(g *game.GameState, connected int) (game.PlayerID, bool) {
	if connected == 0 || (connected == 1 && len(g.Players) > 1) {
		return bestPlayer(g), true
	}
	if p.Kills <= 0 {
		return 0, false
	}
	for i := range g.Players {
		if g.Players[i].Kills >= p.Kills {
			return bestPlayer(g), true
		}
	}
	return 0, false
}

// bestPlayer ranks by kills, then fewest deaths, then lowest id.
func bestPlayer(g *game.GameState) game.PlayerID {
	best := game.PlayerID(0)
	for i := 1; i < len(g.Players); i++ {
		b, c := &g.Players[best], &g.Players[i]
		if c.Kills > b.Kills || (c.Kills == b.Kills && c.Deaths < b.Deaths) {
			best = game.PlayerID(i)
		}
	}
	return best
}

// PlayerResult is one player's line in a finished match.
type PlayerResult struct {
	Name   string
	Kills  int
	Deaths int
	Winner bool
}

// MatchResult is everything worth keeping about a finished match, including
// the full action log so the match can be re-simulated later.
type MatchResult struct {
	ID       uuid.UUID
	GameName string
	Ticks    game.Tick
	Checksum uint64
	Settings game.Settings
	Players  []PlayerResult
	Log      []eventlog.Entry
}

// Recorder persists finished matches. Implementations must tolerate being
// called from the hub goroutine; slow writers should buffer internally.
type Recorder interface {
	RecordMatch(result MatchResult) error
}
