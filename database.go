package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database holding match history and host settings.
type DB struct {
	conn *sql.DB
}

// MatchRow is one concluded match.
type MatchRow struct {
	ID        int64
	SessionID string
	Winner    string
	Ticks     uint64
	Duration  float64 // seconds
	CreatedAt time.Time
}

// WinCount is one line of the local leaderboard.
type WinCount struct {
	Combatant string `json:"combatant"`
	Wins      int    `json:"wins"`
	Kills     int    `json:"kills"`
	Matches   int    `json:"matches"`
}

// OpenDB opens (or creates) the database at path.
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer keeps WAL happy under the recorder and the HTTP handlers.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		winner TEXT NOT NULL DEFAULT '',
		ticks INTEGER NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS match_combatants (
		match_id INTEGER NOT NULL REFERENCES matches(id),
		combatant TEXT NOT NULL,
		slot INTEGER NOT NULL DEFAULT 0,
		hp INTEGER NOT NULL DEFAULT 0,
		kills INTEGER NOT NULL DEFAULT 0,
		survived INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (match_id, combatant)
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_match_combatants_combatant ON match_combatants(combatant);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// GetSetting returns the stored value for key, or "" when unset.
func (db *DB) GetSetting(key string) string {
	var v string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if err != nil {
		return ""
	}
	return v
}

func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// RecordMatches writes a batch of results in one transaction.
func (db *DB) RecordMatches(ctx context.Context, results []MatchResult) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	matchStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO matches (session_id, winner, ticks, duration, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare match: %w", err)
	}
	defer matchStmt.Close()

	partStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO match_combatants (match_id, combatant, slot, hp, kills, survived) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare combatant: %w", err)
	}
	defer partStmt.Close()

	for _, r := range results {
		res, err := matchStmt.ExecContext(ctx, r.SessionID, r.Winner, r.Ticks, r.Duration().Seconds(), r.EndedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert match: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for _, p := range r.Participants {
			if _, err := partStmt.ExecContext(ctx, id, p.ID, p.Slot, p.HP, p.Kills, p.Survived); err != nil {
				return fmt.Errorf("insert combatant %s: %w", p.ID, err)
			}
		}
	}
	return tx.Commit()
}

// RecentMatches returns the latest matches, newest first.
func (db *DB) RecentMatches(ctx context.Context, limit int) ([]MatchRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, session_id, winner, ticks, duration, created_at
		FROM matches
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []MatchRow
	for rows.Next() {
		var m MatchRow
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Winner, &m.Ticks, &m.Duration, &m.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// WinCounts aggregates wins and kills per combatant identity.
func (db *DB) WinCounts(ctx context.Context, limit int) ([]WinCount, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT mc.combatant,
			SUM(CASE WHEN m.winner = mc.combatant THEN 1 ELSE 0 END) AS wins,
			SUM(mc.kills),
			COUNT(*)
		FROM match_combatants mc
		JOIN matches m ON m.id = mc.match_id
		GROUP BY mc.combatant
		ORDER BY wins DESC, SUM(mc.kills) DESC, mc.combatant
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WinCount
	for rows.Next() {
		var w WinCount
		if err := rows.Scan(&w.Combatant, &w.Wins, &w.Kills, &w.Matches); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}
