package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/karsov/opsloop/internal/db"
	"github.com/karsov/opsloop/internal/llm"
	"github.com/karsov/opsloop/internal/plan"
	"github.com/karsov/opsloop/internal/risk"
	"github.com/karsov/opsloop/internal/roles"
	"github.com/karsov/opsloop/internal/tools"
)

const (
	planMaxTokens = 1024
	// Generated artifacts can be large; the generation call gets a bigger
	// output budget than planning.
	generateMaxTokens = 4096

	planTemperature     = 0.2
	generateTemperature = 0.4
)

type handler struct {
	role     string
	persona  roles.Persona
	client   llm.Client
	tools    *tools.Set
	snippets roles.SnippetProvider
	memory   Memory
	statuses StatusSink
}

// NewHandler builds the handler for one role. snippets and memory may be nil.
func NewHandler(role string, client llm.Client, toolset *tools.Set, snippets roles.SnippetProvider, memory Memory, statuses StatusSink) Handler {
	return &handler{
		role:     role,
		persona:  roles.PersonaFor(role),
		client:   client,
		tools:    toolset,
		snippets: snippets,
		memory:   memory,
		statuses: statuses,
	}
}

func (h *handler) Role() string { return h.role }

// Reason makes a single planning call and parses the reply into a Plan. An
// unparsable reply degrades to the fallback plan; a failed provider call is
// fatal for the task.
func (h *handler) Reason(ctx context.Context, task Task) (plan.Plan, error) {
	h.setStatus(ctx, db.AgentThinking)

	resp, err := h.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: h.systemPrompt()},
			{Role: llm.RoleUser, Content: h.planningPrompt(ctx, task)},
		},
		Temperature: planTemperature,
		MaxTokens:   planMaxTokens,
	})
	if err != nil {
		h.setStatus(ctx, db.AgentError)
		return plan.Plan{}, fmt.Errorf("planning call: %w", err)
	}

	p, err := plan.Parse(resp.Content)
	if err == nil {
		err = p.Validate()
	}
	if err != nil {
		log.Warn().Err(err).Str("role", h.role).Str("task", task.ID).Msg("handler: plan parse failed, using fallback")
		p = plan.Fallback(resp.Content)
	}
	log.Debug().Str("role", h.role).Int("steps", len(p.Steps)).Str("risk", string(p.RiskLevel)).Msg("handler: plan ready")
	return p, nil
}

// Execute runs the plan's steps in order and returns one result string per
// step. A single step's failure is isolated to its result; only the
// CRITICAL approval pre-check halts the whole plan.
func (h *handler) Execute(ctx context.Context, p plan.Plan, task Task) ([]string, error) {
	if p.RequiresApproval && p.RiskLevel == risk.LevelCritical {
		h.setStatus(ctx, db.AgentWaiting)
		log.Warn().Str("role", h.role).Str("task", task.ID).Msg("handler: critical plan held for approval")
		return []string{fmt.Sprintf("BLOCKED: plan %q requires approval at risk level %s; execution not started", p.Summary, p.RiskLevel)}, nil
	}

	h.setStatus(ctx, db.AgentExecuting)
	results := make([]string, 0, len(p.Steps))
	for _, step := range p.Steps {
		results = append(results, h.runStep(ctx, step, task))
	}
	h.setStatus(ctx, db.AgentIdle)
	return results, nil
}

func (h *handler) runStep(ctx context.Context, step plan.Step, task Task) string {
	if step.IsGeneration() {
		return h.generate(ctx, step, task)
	}

	tool, ok := h.tools.Get(step.Tool)
	if !ok {
		log.Warn().Str("role", h.role).Int("step", step.Number).Str("tool", step.Tool).Msg("handler: unknown tool")
		return fmt.Sprintf("ERROR: step %d names unknown tool %q", step.Number, step.Tool)
	}

	out, err := tool.Execute(ctx, step.Args)
	if err != nil {
		log.Warn().Err(err).Str("role", h.role).Int("step", step.Number).Str("tool", step.Tool).Msg("handler: tool failed")
		return fmt.Sprintf("ERROR: step %d (%s): %v", step.Number, step.Tool, err)
	}
	// Strings pass through; structured results serialize. The log line is
	// truncated, the result keeps the full value.
	result := tools.Stringify(out)
	log.Debug().Str("role", h.role).Int("step", step.Number).Str("tool", step.Tool).Str("result", tools.TruncateForLog(result)).Msg("handler: step done")
	return result
}

// generate handles a tool-less step by asking for the complete deliverable.
// On failure the step's stored reasoning is emitted so the result list never
// has a hole.
func (h *handler) generate(ctx context.Context, step plan.Step, task Task) string {
	resp, err := h.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: h.persona.Prompt + "\n\n" + generationRules},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Original request:\n%s\n\nCurrent step: %s\nNotes: %s", task.Request, step.Action, step.Reasoning)},
		},
		Temperature: generateTemperature,
		MaxTokens:   generateMaxTokens,
	})
	if err != nil {
		log.Warn().Err(err).Str("role", h.role).Int("step", step.Number).Msg("handler: generation failed, emitting step reasoning")
		return step.Reasoning
	}
	return resp.Content
}

// Run is the full pipeline for one task: plan, then execute.
func (h *handler) Run(ctx context.Context, task Task) (Result, error) {
	p, err := h.Reason(ctx, task)
	if err != nil {
		return Result{}, err
	}
	results, err := h.Execute(ctx, p, task)
	if err != nil {
		return Result{}, err
	}
	blocked := p.RequiresApproval && p.RiskLevel == risk.LevelCritical
	return Result{Plan: p, Results: results, Blocked: blocked}, nil
}

func (h *handler) systemPrompt() string {
	var b strings.Builder
	b.WriteString(h.persona.Prompt)
	if h.snippets != nil {
		for _, s := range h.snippets.Snippets(h.persona.Categories) {
			b.WriteString("\n\n")
			b.WriteString(s)
		}
	}
	b.WriteString("\n\nAvailable tools:\n")
	b.WriteString(h.tools.Describe())
	b.WriteString("\n")
	b.WriteString(planContract)
	return b.String()
}

func (h *handler) planningPrompt(ctx context.Context, task Task) string {
	var b strings.Builder
	if h.memory != nil {
		if block := h.memory.Recall(ctx, h.role, task.ProjectID); block != "" {
			b.WriteString(block)
			b.WriteString("\n\n")
		}
	}
	b.WriteString("Task: ")
	b.WriteString(task.Request)
	if task.ResourceID != nil {
		fmt.Fprintf(&b, "\nTarget resource: %s", *task.ResourceID)
	}
	keys := make([]string, 0, len(task.Metadata))
	for k := range task.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %s", k, task.Metadata[k])
	}
	return b.String()
}

func (h *handler) setStatus(ctx context.Context, status string) {
	if h.statuses == nil {
		return
	}
	if err := h.statuses.SetAgentStatus(ctx, h.role, status); err != nil {
		log.Warn().Err(err).Str("role", h.role).Str("status", status).Msg("handler: status update failed")
	}
}

const planContract = `Reply with a single JSON object and nothing else, matching this shape:
{"summary": "one-line plan summary", "steps": [{"step": 1, "action": "what to do", "tool": "command", "args": {"command": "..."}, "reasoning": "why"}], "risk_level": "LOW", "requires_approval": false}
Use only tools from the list above. Omit "tool" and "args" for steps whose output is text you produce yourself. risk_level is one of LOW, MEDIUM, HIGH, CRITICAL.`

const generationRules = `Produce the COMPLETE deliverable for the current step. Formatting rules:
- Output the full artifact with no truncation markers, placeholders or elisions.
- A single-file deliverable is emitted as the raw file content, nothing else.
- A multi-file deliverable uses one "--- FILE: <path> ---" line before each file's content.`
