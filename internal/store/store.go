// Package store provides SQLite-backed persistence for users and finished
// generation runs. The pipeline itself runs off the in-memory registry;
// this layer is the durable record behind it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ngenesis/ngenesis/internal/domain"
	_ "modernc.org/sqlite"
)

// Store wraps the SQLite connection
type Store struct {
	db *sql.DB
}

// New opens the database at the given path and runs migrations
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// User is a persisted account. Password holds the bcrypt hash and is never
// serialized.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Password  string `json:"-"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
}

// CreateUser inserts an account with an already-hashed password
func (s *Store) CreateUser(ctx context.Context, email, passwordHash, name string) (*User, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, password, name) VALUES (?, ?, ?)`,
		email, passwordHash, name)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, id)
}

// GetUserByEmail returns the account for an email, or nil if unknown
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password, COALESCE(name, ''), created_at FROM users WHERE email = ?`, email))
}

// GetUserByID returns the account by primary key, or nil if unknown
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password, COALESCE(name, ''), created_at FROM users WHERE id = ?`, id))
}

// TouchLastLogin records a successful login
func (s *Store) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// RecordRun persists a terminal run: the agent row, its authored files and
// its full timeline. Reruns of the same ID replace the agent row.
func (s *Store) RecordRun(ctx context.Context, run *domain.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO agents (id, user_intent, target_url, status, icon_url, code_quality_score, monitoring_active, scout_id, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			icon_url = excluded.icon_url,
			code_quality_score = excluded.code_quality_score,
			monitoring_active = excluded.monitoring_active,
			scout_id = excluded.scout_id,
			error = excluded.error,
			updated_at = CURRENT_TIMESTAMP
	`,
		run.ID,
		run.Context.UserIntent,
		run.Context.TargetURL,
		string(run.Status),
		run.IconURL,
		run.QualityScore,
		run.MonitoringActive,
		run.ScoutID,
		run.Error,
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM agent_files WHERE agent_id = ?`, run.ID); err != nil {
		return err
	}
	for _, a := range run.Artifacts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO agent_files (agent_id, filename, content, language) VALUES (?, ?, ?, ?)`,
			run.ID, a.Filename, a.Content, a.Language); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM agent_timeline WHERE agent_id = ?`, run.ID); err != nil {
		return err
	}
	for _, ev := range run.Timeline {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO agent_timeline (agent_id, event_name, status, details, timestamp) VALUES (?, ?, ?, ?, ?)`,
			run.ID, ev.EventName, string(ev.Status), ev.Details,
			ev.Timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// AgentRecord is the persisted projection of a finished run
type AgentRecord struct {
	ID               string `json:"agent_id"`
	UserIntent       string `json:"user_intent"`
	TargetURL        string `json:"target_url"`
	Status           string `json:"status"`
	IconURL          string `json:"icon_url,omitempty"`
	QualityScore     int    `json:"code_quality_score,omitempty"`
	MonitoringActive bool   `json:"monitoring_active"`
	ScoutID          string `json:"scout_id,omitempty"`
	Error            string `json:"error,omitempty"`
	CreatedAt        string `json:"created_at"`
}

// GetAgent returns the persisted agent row, or nil if unknown
func (s *Store) GetAgent(ctx context.Context, id string) (*AgentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(user_intent, ''), COALESCE(target_url, ''), status,
		       COALESCE(icon_url, ''), COALESCE(code_quality_score, 0),
		       monitoring_active, COALESCE(scout_id, ''), COALESCE(error, ''), created_at
		FROM agents WHERE id = ?`, id)

	var a AgentRecord
	err := row.Scan(&a.ID, &a.UserIntent, &a.TargetURL, &a.Status, &a.IconURL,
		&a.QualityScore, &a.MonitoringActive, &a.ScoutID, &a.Error, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAgents returns persisted agents, newest first
func (s *Store) ListAgents(ctx context.Context) ([]AgentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(user_intent, ''), COALESCE(target_url, ''), status,
		       COALESCE(icon_url, ''), COALESCE(code_quality_score, 0),
		       monitoring_active, COALESCE(scout_id, ''), COALESCE(error, ''), created_at
		FROM agents ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AgentRecord
	for rows.Next() {
		var a AgentRecord
		if err := rows.Scan(&a.ID, &a.UserIntent, &a.TargetURL, &a.Status, &a.IconURL,
			&a.QualityScore, &a.MonitoringActive, &a.ScoutID, &a.Error, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAgentFiles returns the persisted artifacts for an agent
func (s *Store) GetAgentFiles(ctx context.Context, agentID string) ([]domain.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT filename, COALESCE(content, ''), COALESCE(language, '')
		FROM agent_files WHERE agent_id = ? ORDER BY id`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Artifact
	for rows.Next() {
		var a domain.Artifact
		if err := rows.Scan(&a.Filename, &a.Content, &a.Language); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAgentTimeline returns the persisted timeline, oldest first
func (s *Store) GetAgentTimeline(ctx context.Context, agentID string) ([]domain.TimelineEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_name, COALESCE(status, ''), COALESCE(details, ''), timestamp
		FROM agent_timeline WHERE agent_id = ? ORDER BY id`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TimelineEvent
	for rows.Next() {
		var ev domain.TimelineEvent
		var status, ts string
		if err := rows.Scan(&ev.EventName, &status, &ev.Details, &ts); err != nil {
			return nil, err
		}
		ev.Status = domain.EventStatus(status)
		ev.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// SaveResult records one ad-hoc execution of a generated agent
func (s *Store) SaveResult(ctx context.Context, agentID, runID string, results map[string]any, elapsed time.Duration) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_results (agent_id, run_id, results, execution_time_ms) VALUES (?, ?, ?, ?)`,
		agentID, runID, string(payload), elapsed.Milliseconds())
	return err
}

// ExecutionResult is one persisted ad-hoc run of a generated agent
type ExecutionResult struct {
	RunID           string         `json:"run_id"`
	Results         map[string]any `json:"results"`
	ExecutionTimeMS int64          `json:"execution_time_ms"`
	CreatedAt       string         `json:"created_at"`
}

// GetResults returns persisted executions for an agent, newest first
func (s *Store) GetResults(ctx context.Context, agentID string) ([]ExecutionResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, COALESCE(results, '{}'), COALESCE(execution_time_ms, 0), created_at
		FROM agent_results WHERE agent_id = ? ORDER BY created_at DESC`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExecutionResult
	for rows.Next() {
		var r ExecutionResult
		var raw string
		if err := rows.Scan(&r.RunID, &raw, &r.ExecutionTimeMS, &r.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &r.Results); err != nil {
			r.Results = map[string]any{"raw": raw}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
