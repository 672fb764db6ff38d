// Package plan defines the structured action plan produced by the planning
// stage and the tolerant parser that recovers it from raw model output.
package plan

import (
	"fmt"

	"github.com/karsov/opsloop/internal/risk"
)

// Step is one ordered action in a plan. A step without a tool name is a
// generation step: its deliverable comes from a reasoning call instead of a
// tool invocation.
type Step struct {
	Number    int            `json:"step"`
	Action    string         `json:"action"`
	Tool      string         `json:"tool,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Reasoning string         `json:"reasoning,omitempty"`
}

// IsGeneration reports whether the step has no tool bound to it.
func (s Step) IsGeneration() bool {
	return s.Tool == ""
}

// Plan is the immutable output of one planning call.
type Plan struct {
	Summary          string     `json:"summary"`
	Steps            []Step     `json:"steps"`
	RiskLevel        risk.Level `json:"risk_level"`
	RequiresApproval bool       `json:"requires_approval"`
}

// Validate checks the deserialized shape: non-empty summary, at least one
// step, steps renumbered into sequence order when absent.
func (p *Plan) Validate() error {
	if p.Summary == "" {
		return fmt.Errorf("plan summary is empty")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan has no steps")
	}
	for i := range p.Steps {
		if p.Steps[i].Number == 0 {
			p.Steps[i].Number = i + 1
		}
		if p.Steps[i].Action == "" {
			return fmt.Errorf("plan step %d has no action", i+1)
		}
	}
	if p.RiskLevel == "" {
		p.RiskLevel = risk.LevelLow
	} else {
		p.RiskLevel = risk.ParseLevel(string(p.RiskLevel))
	}
	return nil
}

const fallbackPrefixLen = 200

// Fallback builds the degraded single-step generation plan used when no
// parseable plan can be recovered from the raw reply. The pipeline then
// still has something to execute instead of failing the task.
func Fallback(raw string) Plan {
	prefix := truncate(raw, fallbackPrefixLen)
	return Plan{
		Summary: prefix,
		Steps: []Step{{
			Number:    1,
			Action:    "generate deliverable from request",
			Reasoning: prefix,
		}},
		RiskLevel:        risk.LevelLow,
		RequiresApproval: false,
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
