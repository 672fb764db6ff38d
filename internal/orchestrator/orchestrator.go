// Package orchestrator wires the pipeline together and runs submitted tasks
// end to end: classify, plan, execute, record. All collaborators are
// injected; the package holds no global state.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/karsov/opsloop/internal/agent"
	"github.com/karsov/opsloop/internal/db"
	"github.com/karsov/opsloop/internal/memory"
	"github.com/karsov/opsloop/internal/roles"
)

// ValidationError rejects a malformed task before planning. It is fatal for
// that submission only.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid task: " + e.Reason
}

// Outcome is what Submit returns for a completed pipeline run.
type Outcome struct {
	TaskID  string
	Role    string
	Plan    string
	Results []string
	Blocked bool
}

// Orchestrator runs each submitted task as one independent pipeline.
// Concurrent submissions are safe; nothing here serializes tasks against
// each other.
type Orchestrator struct {
	store    *db.Store
	registry *agent.Registry
	memory   *memory.Service
	hints    *roles.StackHints
}

// New builds the orchestrator from its injected collaborators. memory and
// hints may be nil.
func New(store *db.Store, registry *agent.Registry, mem *memory.Service, hints *roles.StackHints) *Orchestrator {
	return &Orchestrator{
		store:    store,
		registry: registry,
		memory:   mem,
		hints:    hints,
	}
}

// Submit validates and runs one task. A planning provider failure is the
// only mid-pipeline error that propagates; step failures surface inside the
// result list and memory write failures are absorbed.
func (o *Orchestrator) Submit(ctx context.Context, task agent.Task) (Outcome, error) {
	if strings.TrimSpace(task.Request) == "" {
		return Outcome{}, &ValidationError{Reason: "empty request"}
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	role := roles.Classify(task.Request, o.hints)
	log.Info().Str("task", task.ID).Str("role", role).Msg("orchestrator: task accepted")

	if err := o.store.CreateTask(ctx, task.ID, task.Request, role, task.ProjectID, task.ResourceID); err != nil {
		log.Warn().Err(err).Str("task", task.ID).Msg("orchestrator: task row create failed")
	}

	res, err := o.registry.For(role).Run(ctx, task)
	if err != nil {
		o.finish(ctx, task.ID, db.TaskFailed, 0, err)
		return Outcome{}, fmt.Errorf("run task %s: %w", task.ID, err)
	}

	if o.memory != nil {
		o.memory.Record(ctx, memory.RecordInput{
			TaskID:      task.ID,
			Role:        role,
			ProjectID:   task.ProjectID,
			Request:     task.Request,
			PlanSummary: res.Plan.Summary,
			Results:     res.Results,
		})
	}

	status := db.TaskDone
	if res.Blocked {
		status = db.TaskBlocked
	}
	o.finish(ctx, task.ID, status, len(res.Results), nil)

	return Outcome{
		TaskID:  task.ID,
		Role:    role,
		Plan:    res.Plan.Summary,
		Results: res.Results,
		Blocked: res.Blocked,
	}, nil
}

func (o *Orchestrator) finish(ctx context.Context, id, status string, resultCount int, taskErr error) {
	var errText *string
	if taskErr != nil {
		s := taskErr.Error()
		errText = &s
	}
	if err := o.store.FinishTask(ctx, id, status, resultCount, errText); err != nil {
		log.Warn().Err(err).Str("task", id).Msg("orchestrator: task row finish failed")
	}
}
