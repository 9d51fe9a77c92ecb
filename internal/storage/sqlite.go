// Package storage persists finished matches to SQLite. The full action log
// is archived alongside the result, so any match can be re-simulated and
// checked against its recorded checksum later.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite" // pure Go driver, no CGO

	"bomberhans/internal/eventlog"
	"bomberhans/internal/game"
	"bomberhans/internal/server"
)

// Store wraps the SQLite database. It implements server.Recorder.
type Store struct {
	db *sql.DB
}

// MatchSummary is one row of the match listing.
type MatchSummary struct {
	ID        uuid.UUID
	GameName  string
	Ticks     game.Tick
	Players   int
	CreatedAt time.Time
}

// Open creates or opens the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: create directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: connect: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			game_name TEXT NOT NULL,
			ticks INTEGER NOT NULL,
			checksum INTEGER NOT NULL,
			settings TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS match_players (
			match_id TEXT NOT NULL REFERENCES matches(id),
			player_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			kills INTEGER NOT NULL,
			deaths INTEGER NOT NULL,
			winner INTEGER NOT NULL,
			PRIMARY KEY (match_id, player_id)
		);

		CREATE TABLE IF NOT EXISTS event_log (
			match_id TEXT NOT NULL REFERENCES matches(id),
			seq INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			player INTEGER NOT NULL,
			walking INTEGER NOT NULL,
			direction INTEGER NOT NULL,
			placing INTEGER NOT NULL,
			PRIMARY KEY (match_id, seq)
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordMatch writes the result, the roster and the full action log in one
// transaction.
func (s *Store) RecordMatch(result server.MatchResult) error {
	settings, err := yaml.Marshal(result.Settings)
	if err != nil {
		return fmt.Errorf("storage: marshal settings: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO matches (id, game_name, ticks, checksum, settings) VALUES (?, ?, ?, ?, ?)`,
		result.ID.String(), result.GameName, int64(result.Ticks), int64(result.Checksum), string(settings),
	)
	if err != nil {
		return fmt.Errorf("storage: insert match: %w", err)
	}

	for i, p := range result.Players {
		_, err = tx.Exec(
			`INSERT INTO match_players (match_id, player_id, name, kills, deaths, winner) VALUES (?, ?, ?, ?, ?, ?)`,
			result.ID.String(), i, p.Name, p.Kills, p.Deaths, boolInt(p.Winner),
		)
		if err != nil {
			return fmt.Errorf("storage: insert player %d: %w", i, err)
		}
	}

	for seq, e := range result.Log {
		_, err = tx.Exec(
			`INSERT INTO event_log (match_id, seq, tick, player, walking, direction, placing) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			result.ID.String(), seq, int64(e.Tick), int(e.Player),
			boolInt(e.Action.Walking), int(e.Action.Direction), boolInt(e.Action.Placing),
		)
		if err != nil {
			return fmt.Errorf("storage: insert log entry %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

// LoadMatch reads a match back, including its archived action log.
func (s *Store) LoadMatch(id uuid.UUID) (server.MatchResult, error) {
	var result server.MatchResult
	var ticks, checksum int64
	var settings string

	row := s.db.QueryRow(`SELECT game_name, ticks, checksum, settings FROM matches WHERE id = ?`, id.String())
	if err := row.Scan(&result.GameName, &ticks, &checksum, &settings); err != nil {
		return server.MatchResult{}, fmt.Errorf("storage: load match %s: %w", id, err)
	}
	result.ID = id
	result.Ticks = game.Tick(ticks)
	result.Checksum = uint64(checksum)
	if err := yaml.Unmarshal([]byte(settings), &result.Settings); err != nil {
		return server.MatchResult{}, fmt.Errorf("storage: parse settings: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT name, kills, deaths, winner FROM match_players WHERE match_id = ? ORDER BY player_id`,
		id.String(),
	)
	if err != nil {
		return server.MatchResult{}, fmt.Errorf("storage: load players: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p server.PlayerResult
		var winner int
		if err := rows.Scan(&p.Name, &p.Kills, &p.Deaths, &winner); err != nil {
			return server.MatchResult{}, fmt.Errorf("storage: scan player: %w", err)
		}
		p.Winner = winner != 0
		result.Players = append(result.Players, p)
	}
	if err := rows.Err(); err != nil {
		return server.MatchResult{}, fmt.Errorf("storage: players: %w", err)
	}

	logRows, err := s.db.Query(
		`SELECT tick, player, walking, direction, placing FROM event_log WHERE match_id = ? ORDER BY seq`,
		id.String(),
	)
	if err != nil {
		return server.MatchResult{}, fmt.Errorf("storage: load log: %w", err)
	}
	defer logRows.Close()
	for logRows.Next() {
		var tick, player, walking, direction, placing int64
		if err := logRows.Scan(&tick, &player, &walking, &direction, &placing); err != nil {
			return server.MatchResult{}, fmt.Errorf("storage: scan log entry: %w", err)
		}
		result.Log = append(result.Log, eventlog.Entry{
			Tick:   game.Tick(tick),
			Player: game.PlayerID(player),
			Action: game.Action{
				Walking:   walking != 0,
				Direction: game.Direction(direction),
				Placing:   placing != 0,
			},
		})
	}
	if err := logRows.Err(); err != nil {
		return server.MatchResult{}, fmt.Errorf("storage: log: %w", err)
	}

	return result, nil
}

// ListMatches returns the newest matches first, at most limit rows.
func (s *Store) ListMatches(limit int) ([]MatchSummary, error) {
	rows, err := s.db.Query(`
		SELECT m.id, m.game_name, m.ticks, m.created_at,
		       (SELECT COUNT(*) FROM match_players p WHERE p.match_id = m.id)
		FROM matches m ORDER BY m.created_at DESC, m.id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list matches: %w", err)
	}
	defer rows.Close()

	var out []MatchSummary
	for rows.Next() {
		var sum MatchSummary
		var id string
		var ticks int64
		if err := rows.Scan(&id, &sum.GameName, &ticks, &sum.CreatedAt, &sum.Players); err != nil {
			return nil, fmt.Errorf("storage: scan match: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("storage: match id %q: %w", id, err)
		}
		sum.ID = parsed
		sum.Ticks = game.Tick(ticks)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
