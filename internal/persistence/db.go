// Package persistence provides the SQLite audit log. Every processed day is
// archived with its requests, allocations and event log so a run's economy
// can be audited after the fact. The engine never reads this back; the
// simulation itself stays in memory.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/shelter/internal/shelter"
)

// DB wraps a SQLite connection for audit archiving.
type DB struct {
	conn  *sqlx.DB
	runID string
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		agents_json TEXT NOT NULL,
		total_resources INTEGER NOT NULL,
		survival_cost INTEGER NOT NULL,
		token_budget INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS days (
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		allocation_method TEXT NOT NULL,
		remaining_resources INTEGER NOT NULL,
		tokens_consumed INTEGER NOT NULL,
		global_tokens_consumed INTEGER NOT NULL,
		requests_json TEXT NOT NULL,
		allocations_json TEXT NOT NULL,
		eliminated_json TEXT NOT NULL,
		PRIMARY KEY (run_id, day)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		type TEXT NOT NULL,
		actor TEXT NOT NULL,
		content TEXT NOT NULL,
		details_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_events_run_day ON events(run_id, day);
	CREATE INDEX IF NOT EXISTS idx_days_run ON days(run_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// BeginRun records a new simulation run and makes it the target of
// subsequent SaveDay calls. Returns the run id.
func (db *DB) BeginRun(agents []string, totalResources, survivalCost, tokenBudget int) (string, error) {
	runID := uuid.NewString()
	agentsJSON, _ := json.Marshal(agents)

	_, err := db.conn.Exec(
		`INSERT INTO runs (id, started_at, agents_json, total_resources, survival_cost, token_budget)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339), string(agentsJSON),
		totalResources, survivalCost, tokenBudget,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	db.runID = runID
	slog.Info("audit run started", "run_id", runID, "agents", len(agents))
	return runID, nil
}

// RunID returns the current run id, empty before BeginRun.
func (db *DB) RunID() string {
	return db.runID
}

// SaveDay archives one day summary and its events in a single transaction.
func (db *DB) SaveDay(summary shelter.DaySummary) error {
	if db.runID == "" {
		return fmt.Errorf("no active run")
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	requestsJSON, _ := json.Marshal(summary.ResourceRequests)
	allocationsJSON, _ := json.Marshal(summary.Allocations)
	eliminatedJSON, _ := json.Marshal(summary.Eliminated)

	_, err = tx.Exec(
		`INSERT OR REPLACE INTO days
		 (run_id, day, allocation_method, remaining_resources, tokens_consumed,
		  global_tokens_consumed, requests_json, allocations_json, eliminated_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		db.runID, summary.Day, summary.AllocationMethod, summary.RemainingResources,
		summary.TokensConsumed, summary.GlobalTokensConsumed,
		string(requestsJSON), string(allocationsJSON), string(eliminatedJSON),
	)
	if err != nil {
		return fmt.Errorf("insert day %d: %w", summary.Day, err)
	}

	for _, e := range summary.Events {
		var detailsJSON []byte
		if e.Details != nil {
			detailsJSON, _ = json.Marshal(e.Details)
		}
		_, err := tx.Exec(
			"INSERT INTO events (run_id, day, type, actor, content, details_json) VALUES (?, ?, ?, ?, ?, ?)",
			db.runID, e.Day, e.Type, e.Actor, e.Content, string(detailsJSON),
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	return tx.Commit()
}

// ArchivedEvent is one event row read back for auditing.
type ArchivedEvent struct {
	Day     int    `db:"day" json:"day"`
	Type    string `db:"type" json:"type"`
	Actor   string `db:"actor" json:"actor"`
	Content string `db:"content" json:"content"`
}

// RecentEvents returns the most recent N archived events of the current run.
func (db *DB) RecentEvents(limit int) ([]ArchivedEvent, error) {
	var events []ArchivedEvent
	err := db.conn.Select(&events,
		"SELECT day, type, actor, content FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		db.runID, limit,
	)
	return events, err
}
