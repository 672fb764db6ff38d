package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Store persists task outcomes and agent status rows.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Task statuses.
const (
	TaskRunning = "running"
	TaskDone    = "done"
	TaskFailed  = "failed"
	TaskBlocked = "blocked"
)

// Agent statuses mirror the handler lifecycle.
const (
	AgentIdle      = "IDLE"
	AgentThinking  = "THINKING"
	AgentExecuting = "EXECUTING"
	AgentWaiting   = "WAITING"
	AgentError     = "ERROR"
)

// TaskRecord is one submitted task's stored outcome.
type TaskRecord struct {
	ID          string
	Request     string
	Role        string
	ProjectID   *string
	ResourceID  *string
	Status      string
	ResultCount int
	Error       *string
	CreatedAt   string
	FinishedAt  *string
}

// CreateTask inserts the running task row.
func (s *Store) CreateTask(ctx context.Context, id, request, role string, projectID, resourceID *string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `INSERT INTO tasks(id, request, role, project_id, resource_id, status, result_count, created_at)
		VALUES(?, ?, ?, ?, ?, ?, 0, ?)`, id, request, role, projectID, resourceID, TaskRunning, now)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// FinishTask records the terminal status of a task.
func (s *Store) FinishTask(ctx context.Context, id, status string, resultCount int, taskErr *string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET status=?, result_count=?, error=?, finished_at=? WHERE id=?`,
		status, resultCount, taskErr, now, id)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s not found", id)
	}
	return nil
}

// ListTasks returns the most recent tasks, newest first.
func (s *Store) ListTasks(ctx context.Context, limit int) ([]TaskRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, request, role, project_id, resource_id, status, result_count, error, created_at, finished_at
		FROM tasks ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()
	var out []TaskRecord
	for rows.Next() {
		var t TaskRecord
		var projectID, resourceID, taskErr, finishedAt sql.NullString
		if err := rows.Scan(&t.ID, &t.Request, &t.Role, &projectID, &resourceID, &t.Status, &t.ResultCount, &taskErr, &t.CreatedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.ProjectID = nullable(projectID)
		t.ResourceID = nullable(resourceID)
		t.Error = nullable(taskErr)
		t.FinishedAt = nullable(finishedAt)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

// AgentRecord is a role handler's externally visible state.
type AgentRecord struct {
	Role         string
	Status       string
	Capabilities []string
	UpdatedAt    string
}

// UpsertAgent registers a role handler and its capability list.
func (s *Store) UpsertAgent(ctx context.Context, role string, capabilities []string) error {
	if capabilities == nil {
		capabilities = []string{}
	}
	capsJSON, err := json.Marshal(capabilities)
	if err != nil {
		return fmt.Errorf("marshal capabilities: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `INSERT INTO agents(role, status, capabilities_json, updated_at) VALUES(?, ?, ?, ?)
		ON CONFLICT(role) DO UPDATE SET capabilities_json=excluded.capabilities_json, updated_at=excluded.updated_at`,
		role, AgentIdle, string(capsJSON), now)
	if err != nil {
		return fmt.Errorf("upsert agent: %w", err)
	}
	return nil
}

// SetAgentStatus updates an agent's status field in place.
func (s *Store) SetAgentStatus(ctx context.Context, role, status string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `UPDATE agents SET status=?, updated_at=? WHERE role=?`, status, now, role)
	if err != nil {
		return fmt.Errorf("update agent status: %w", err)
	}
	return nil
}

// ListAgents returns all registered agents in role order.
func (s *Store) ListAgents(ctx context.Context) ([]AgentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role, status, capabilities_json, updated_at FROM agents ORDER BY role`)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer rows.Close()
	var out []AgentRecord
	for rows.Next() {
		var a AgentRecord
		var capsJSON string
		if err := rows.Scan(&a.Role, &a.Status, &capsJSON, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		if err := json.Unmarshal([]byte(capsJSON), &a.Capabilities); err != nil {
			return nil, fmt.Errorf("parse capabilities: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return out, nil
}

func nullable(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
