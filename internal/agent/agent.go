// Package agent implements the role handlers that plan and execute tasks.
// One handler exists per role; behavior differences between roles are
// composed from the role's persona, knowledge snippets and tool set rather
// than from handler subtypes.
package agent

import (
	"context"

	"github.com/karsov/opsloop/internal/plan"
)

// Task is one external request. It is immutable once submitted; the outcome
// is recorded by the caller, not mutated onto the task.
type Task struct {
	ID         string
	Request    string
	ProjectID  *string
	ResourceID *string
	Metadata   map[string]string
}

// Result is the outcome of running a task through a handler.
type Result struct {
	Plan    plan.Plan
	Results []string
	Blocked bool
}

// Handler plans and executes tasks for a single role.
type Handler interface {
	Role() string
	Reason(ctx context.Context, task Task) (plan.Plan, error)
	Execute(ctx context.Context, p plan.Plan, task Task) ([]string, error)
	Run(ctx context.Context, task Task) (Result, error)
}

// Memory is the read side of the memory subsystem as seen by planning.
type Memory interface {
	Recall(ctx context.Context, role string, projectID *string) string
}

// StatusSink records handler lifecycle transitions. Failures to record a
// transition never affect the task.
type StatusSink interface {
	SetAgentStatus(ctx context.Context, role, status string) error
}
