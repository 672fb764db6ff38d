// Package memory implements the bounded memory subsystem: short-lived notes,
// durable lessons and a rolling per-project digest feeding back into planning.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Memory types.
const (
	TypeShortTerm = "SHORT_TERM"
	TypeLesson    = "LESSON"
)

// Entry is one stored note.
type Entry struct {
	ID         string
	Role       string
	Content    string
	Type       string
	Importance int
	ProjectID  *string
	TaskID     *string
	CreatedAt  time.Time
}

// ProjectSummary is the single rolling digest row for a project.
type ProjectSummary struct {
	ProjectID string
	Content   string
	TaskCount int
	UpdatedAt time.Time
}

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store provides memory persistence over sqlite.
type Store struct {
	db *sql.DB
}

// NewStore creates a memory store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert stores a note and returns its id.
func (s *Store) Insert(ctx context.Context, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO memories(id, role, content, type, importance, project_id, task_id, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Role, e.Content, e.Type, e.Importance, e.ProjectID, e.TaskID, e.CreatedAt.Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("insert memory: %w", err)
	}
	return e.ID, nil
}

// RecentShortTerm returns up to limit SHORT_TERM notes for (role, project),
// most important first, most recent first within equal importance.
func (s *Store) RecentShortTerm(ctx context.Context, role string, projectID *string, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, role, content, type, importance, project_id, task_id, created_at
		FROM memories WHERE role=? AND type=? AND project_id IS ?
		ORDER BY importance DESC, created_at DESC LIMIT ?`,
		role, TypeShortTerm, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("query short-term memories: %w", err)
	}
	return scanEntries(rows)
}

// Lessons returns all LESSON notes for a role, most important first.
func (s *Store) Lessons(ctx context.Context, role string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, role, content, type, importance, project_id, task_id, created_at
		FROM memories WHERE role=? AND type=? ORDER BY importance DESC, created_at DESC`,
		role, TypeLesson)
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	return scanEntries(rows)
}

// Prune deletes SHORT_TERM notes for (role, project) beyond the keep most
// recent ones. Racing with a concurrent writer over-keeps at worst; the
// next prune corrects it.
func (s *Store) Prune(ctx context.Context, role string, projectID *string, keep int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE role=? AND type=? AND project_id IS ?
		AND id NOT IN (
			SELECT id FROM memories WHERE role=? AND type=? AND project_id IS ?
			ORDER BY created_at DESC LIMIT ?
		)`,
		role, TypeShortTerm, projectID, role, TypeShortTerm, projectID, keep)
	if err != nil {
		return fmt.Errorf("prune memories: %w", err)
	}
	return nil
}

// Promote converts a SHORT_TERM note into a permanent LESSON.
func (s *Store) Promote(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET type=? WHERE id=? AND type=?`, TypeLesson, id, TypeShortTerm)
	if err != nil {
		return fmt.Errorf("promote memory: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("short-term memory %s not found", id)
	}
	return nil
}

// Delete removes one note by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return nil
}

// DeleteByRole removes every note for a role, optionally scoped to a project.
func (s *Store) DeleteByRole(ctx context.Context, role string, projectID *string) (int64, error) {
	var res sql.Result
	var err error
	if projectID == nil {
		res, err = s.db.ExecContext(ctx, `DELETE FROM memories WHERE role=?`, role)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM memories WHERE role=? AND project_id=?`, role, *projectID)
	}
	if err != nil {
		return 0, fmt.Errorf("delete memories: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// List returns notes newest first for operator inspection. An empty role
// lists every role.
func (s *Store) List(ctx context.Context, role string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, role, content, type, importance, project_id, task_id, created_at
		FROM memories WHERE (?='' OR role=?) ORDER BY created_at DESC LIMIT ?`, role, role, limit)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	return scanEntries(rows)
}

// Summary fetches the rolling digest for a project, or nil when absent.
func (s *Store) Summary(ctx context.Context, projectID string) (*ProjectSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT project_id, content, task_count, updated_at FROM project_summaries WHERE project_id=?`, projectID)
	var out ProjectSummary
	var updatedAt string
	if err := row.Scan(&out.ProjectID, &out.Content, &out.TaskCount, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("read project summary: %w", err)
	}
	out.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &out, nil
}

// UpsertSummary creates or overwrites the single digest row for a project.
func (s *Store) UpsertSummary(ctx context.Context, projectID, content string, taskCount int) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx, `INSERT INTO project_summaries(project_id, content, task_count, updated_at) VALUES(?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET content=excluded.content, task_count=excluded.task_count, updated_at=excluded.updated_at`,
		projectID, content, taskCount, now)
	if err != nil {
		return fmt.Errorf("upsert project summary: %w", err)
	}
	return nil
}

// BumpTaskCount increments the completed-task counter for a project,
// creating the digest row with empty content on first use. Returns the new
// count.
func (s *Store) BumpTaskCount(ctx context.Context, projectID string) (int, error) {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx, `INSERT INTO project_summaries(project_id, content, task_count, updated_at) VALUES(?, '', 1, ?)
		ON CONFLICT(project_id) DO UPDATE SET task_count=task_count+1, updated_at=excluded.updated_at`,
		projectID, now)
	if err != nil {
		return 0, fmt.Errorf("bump task count: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT task_count FROM project_summaries WHERE project_id=?`, projectID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("read task count: %w", err)
	}
	return count, nil
}

// recentForProject returns the newest SHORT_TERM notes for a project across
// all roles, oldest first so a digest reads chronologically.
func (s *Store) recentForProject(ctx context.Context, projectID string, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, role, content, type, importance, project_id, task_id, created_at
		FROM memories WHERE project_id=? AND type=?
		ORDER BY created_at DESC LIMIT ?`, projectID, TypeShortTerm, limit)
	if err != nil {
		return nil, fmt.Errorf("query project notes: %w", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var projectID, taskID sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Role, &e.Content, &e.Type, &e.Importance, &projectID, &taskID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		if projectID.Valid {
			v := projectID.String
			e.ProjectID = &v
		}
		if taskID.Valid {
			v := taskID.String
			e.TaskID = &v
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	return out, nil
}
