package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/alienxp03/botdebate/internal/core"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Turns are written from the step goroutine while the API reads.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &SQLiteStorage{
		db:   db,
		path: dbPath,
	}, nil
}

// Initialize creates the database schema.
func (s *SQLiteStorage) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS debates (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		bot_a TEXT NOT NULL,
		bot_b TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'idle',
		agreement_reached INTEGER NOT NULL DEFAULT 0,
		coherence_score REAL NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		completed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		debate_id TEXT NOT NULL,
		number INTEGER NOT NULL,
		speaker TEXT NOT NULL,
		content TEXT NOT NULL,
		relevance REAL NOT NULL DEFAULT 0,
		coherence REAL NOT NULL DEFAULT 0,
		duplicate INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (debate_id) REFERENCES debates(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_turns_debate_id ON turns(debate_id, number);
	CREATE INDEX IF NOT EXISTS idx_debates_status ON debates(status);
	CREATE INDEX IF NOT EXISTS idx_debates_created_at ON debates(created_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// CreateDebate creates a new debate.
func (s *SQLiteStorage) CreateDebate(debate *core.Debate) error {
	query := `
	INSERT INTO debates (id, topic, bot_a, bot_b, status, agreement_reached, coherence_score, created_at, updated_at, completed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		debate.ID,
		debate.Topic,
		debate.BotA,
		debate.BotB,
		debate.Status,
		debate.AgreementReached,
		debate.CoherenceScore,
		debate.CreatedAt,
		debate.UpdatedAt,
		debate.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert debate: %w", err)
	}
	return nil
}

// GetDebate retrieves a debate by ID. It returns nil without error when the
// debate does not exist.
func (s *SQLiteStorage) GetDebate(id string) (*core.Debate, error) {
	query := `
	SELECT id, topic, bot_a, bot_b, status, agreement_reached, coherence_score, created_at, updated_at, completed_at
	FROM debates
	WHERE id = ?
	`

	var debate core.Debate
	var completedAt sql.NullTime

	err := s.db.QueryRow(query, id).Scan(
		&debate.ID,
		&debate.Topic,
		&debate.BotA,
		&debate.BotB,
		&debate.Status,
		&debate.AgreementReached,
		&debate.CoherenceScore,
		&debate.CreatedAt,
		&debate.UpdatedAt,
		&completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get debate: %w", err)
	}

	if completedAt.Valid {
		debate.CompletedAt = &completedAt.Time
	}
	return &debate, nil
}

// UpdateDebate updates an existing debate.
func (s *SQLiteStorage) UpdateDebate(debate *core.Debate) error {
	if debate.UpdatedAt.IsZero() {
		debate.UpdatedAt = time.Now()
	}

	query := `
	UPDATE debates
	SET topic = ?, status = ?, agreement_reached = ?, coherence_score = ?, updated_at = ?, completed_at = ?
	WHERE id = ?
	`

	res, err := s.db.Exec(query,
		debate.Topic,
		debate.Status,
		debate.AgreementReached,
		debate.CoherenceScore,
		debate.UpdatedAt,
		debate.CompletedAt,
		debate.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update debate: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update debate %s: not found", debate.ID)
	}
	return nil
}

// DeleteDebate deletes a debate and its turns.
func (s *SQLiteStorage) DeleteDebate(id string) error {
	if _, err := s.db.Exec("DELETE FROM debates WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete debate: %w", err)
	}
	return nil
}

// ListDebates returns debate summaries, newest first.
func (s *SQLiteStorage) ListDebates(limit, offset int) ([]*core.DebateSummary, error) {
	query := `
	SELECT d.id, d.topic, d.status, d.created_at,
		   (SELECT COUNT(*) FROM turns WHERE debate_id = d.id) AS turn_count
	FROM debates d
	ORDER BY d.created_at DESC
	LIMIT ? OFFSET ?
	`

	rows, err := s.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list debates: %w", err)
	}
	defer rows.Close()

	var summaries []*core.DebateSummary
	for rows.Next() {
		var summary core.DebateSummary
		if err := rows.Scan(
			&summary.ID,
			&summary.Topic,
			&summary.Status,
			&summary.CreatedAt,
			&summary.TurnCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan debate summary: %w", err)
		}
		summaries = append(summaries, &summary)
	}
	return summaries, rows.Err()
}

// AddTurn adds a turn to a debate.
func (s *SQLiteStorage) AddTurn(turn *core.Turn) error {
	query := `
	INSERT INTO turns (id, debate_id, number, speaker, content, relevance, coherence, duplicate, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		turn.ID,
		turn.DebateID,
		turn.Number,
		turn.Speaker,
		turn.Content,
		turn.Relevance,
		turn.Coherence,
		turn.Duplicate,
		turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

const turnColumns = `id, debate_id, number, speaker, content, relevance, coherence, duplicate, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTurn(row rowScanner) (*core.Turn, error) {
	var turn core.Turn
	err := row.Scan(
		&turn.ID,
		&turn.DebateID,
		&turn.Number,
		&turn.Speaker,
		&turn.Content,
		&turn.Relevance,
		&turn.Coherence,
		&turn.Duplicate,
		&turn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &turn, nil
}

// GetTurns returns all turns for a debate in order.
func (s *SQLiteStorage) GetTurns(debateID string) ([]*core.Turn, error) {
	rows, err := s.db.Query(`SELECT `+turnColumns+` FROM turns WHERE debate_id = ? ORDER BY number ASC`, debateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get turns: %w", err)
	}
	defer rows.Close()

	var turns []*core.Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// GetLatestTurn returns the most recent turn for a debate, or nil.
func (s *SQLiteStorage) GetLatestTurn(debateID string) (*core.Turn, error) {
	row := s.db.QueryRow(`SELECT `+turnColumns+` FROM turns WHERE debate_id = ? ORDER BY number DESC LIMIT 1`, debateID)
	turn, err := scanTurn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest turn: %w", err)
	}
	return turn, nil
}

// DeleteTurns removes every turn of a debate.
func (s *SQLiteStorage) DeleteTurns(debateID string) error {
	if _, err := s.db.Exec("DELETE FROM turns WHERE debate_id = ?", debateID); err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}
	return nil
}
