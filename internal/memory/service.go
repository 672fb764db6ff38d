package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/karsov/opsloop/internal/llm"
)

const (
	// ShortTermCap bounds SHORT_TERM notes per (role, project).
	ShortTermCap = 10
	// summaryEvery refreshes the rolling digest once per this many
	// completed tasks for a project.
	summaryEvery = 5
	// noteCharCap bounds the compressed note length.
	noteCharCap = 300

	summarizeMaxTokens = 120
	digestMaxTokens    = 400
)

// RecordInput carries everything the write path needs about a finished task.
type RecordInput struct {
	TaskID      string
	Role        string
	ProjectID   *string
	Request     string
	PlanSummary string
	Results     []string
}

// Service is the memory read/write facade used by planning and execution.
type Service struct {
	store  *Store
	client llm.Client
}

// NewService creates the memory service.
func NewService(store *Store, client llm.Client) *Service {
	return &Service{store: store, client: client}
}

// Store exposes the underlying store for operator commands.
func (s *Service) Store() *Store {
	return s.store
}

// Recall builds the memory block injected into a planning prompt: durable
// lessons first, then the rolling project digest, then recent notes with a
// human-readable age. Empty inputs yield an empty string. Read failures are
// logged and reduce to an empty block.
func (s *Service) Recall(ctx context.Context, role string, projectID *string) string {
	var b strings.Builder

	lessons, err := s.store.Lessons(ctx, role)
	if err != nil {
		log.Warn().Err(err).Str("role", role).Msg("memory: lessons read failed")
	}
	if len(lessons) > 0 {
		b.WriteString("Lessons learned:\n")
		for _, l := range lessons {
			fmt.Fprintf(&b, "- %s\n", l.Content)
		}
	}

	if projectID != nil {
		summary, err := s.store.Summary(ctx, *projectID)
		if err != nil {
			log.Warn().Err(err).Str("project", *projectID).Msg("memory: summary read failed")
		} else if summary != nil && summary.Content != "" {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "Project so far: %s\n", summary.Content)
		}
	}

	recent, err := s.store.RecentShortTerm(ctx, role, projectID, ShortTermCap)
	if err != nil {
		log.Warn().Err(err).Str("role", role).Msg("memory: recent notes read failed")
	}
	if len(recent) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Recent work:\n")
		for _, e := range recent {
			fmt.Fprintf(&b, "- [%s] %s\n", humanize.Time(e.CreatedAt), e.Content)
		}
	}

	return b.String()
}

// Record compresses a completed task into one bounded note, enforces the
// short-term cap and periodically refreshes the project digest. Every
// failure here is logged and swallowed: memory writes never change a task's
// recorded outcome.
func (s *Service) Record(ctx context.Context, in RecordInput) {
	content := s.summarizeTask(ctx, in)

	if _, err := s.store.Insert(ctx, Entry{
		Role:       in.Role,
		Content:    content,
		Type:       TypeShortTerm,
		Importance: 50,
		ProjectID:  in.ProjectID,
		TaskID:     &in.TaskID,
	}); err != nil {
		log.Warn().Err(err).Str("role", in.Role).Msg("memory: note write failed")
		return
	}

	if err := s.store.Prune(ctx, in.Role, in.ProjectID, ShortTermCap); err != nil {
		log.Warn().Err(err).Str("role", in.Role).Msg("memory: prune failed")
	}

	if in.ProjectID == nil {
		return
	}
	count, err := s.store.BumpTaskCount(ctx, *in.ProjectID)
	if err != nil {
		log.Warn().Err(err).Str("project", *in.ProjectID).Msg("memory: task count failed")
		return
	}
	if count%summaryEvery == 0 {
		s.refreshSummary(ctx, *in.ProjectID, count)
	}
}

func (s *Service) summarizeTask(ctx context.Context, in RecordInput) string {
	prompt := fmt.Sprintf(
		"Summarize the completed task below as exactly one past-tense sentence of at most %d characters. Reply with the sentence only.\n\nRequest: %s\nPlan: %s\nResults:\n%s",
		noteCharCap, in.Request, in.PlanSummary, strings.Join(clip(in.Results, 5), "\n"))

	resp, err := s.client.Complete(ctx, llm.Request{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens: summarizeMaxTokens,
	})
	if err != nil {
		log.Warn().Err(err).Msg("memory: summarize call failed, storing plan summary")
		return truncate(in.PlanSummary, noteCharCap)
	}
	return truncate(strings.TrimSpace(resp.Content), noteCharCap)
}

func (s *Service) refreshSummary(ctx context.Context, projectID string, taskCount int) {
	notes, err := s.store.recentForProject(ctx, projectID, summaryEvery)
	if err != nil {
		log.Warn().Err(err).Str("project", projectID).Msg("memory: digest notes read failed")
		return
	}
	if len(notes) == 0 {
		return
	}

	previous := ""
	if summary, err := s.store.Summary(ctx, projectID); err == nil && summary != nil {
		previous = summary.Content
	}

	var lines []string
	for _, n := range notes {
		lines = append(lines, "- "+n.Content)
	}
	prompt := fmt.Sprintf(
		"Merge the previous project digest with the latest completed work into a short digest of 2-4 sentences. Reply with the digest only.\n\nPrevious digest: %s\n\nLatest work:\n%s",
		previous, strings.Join(lines, "\n"))

	resp, err := s.client.Complete(ctx, llm.Request{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens: digestMaxTokens,
	})
	if err != nil {
		log.Warn().Err(err).Str("project", projectID).Msg("memory: digest call failed")
		return
	}
	if err := s.store.UpsertSummary(ctx, projectID, strings.TrimSpace(resp.Content), taskCount); err != nil {
		log.Warn().Err(err).Str("project", projectID).Msg("memory: digest write failed")
	}
}

func clip(values []string, limit int) []string {
	if len(values) > limit {
		values = values[:limit]
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, truncate(v, 400))
	}
	return out
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
