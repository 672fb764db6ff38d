// Package risk scores the destructiveness of literal shell commands before
// any tool is allowed to run them.
package risk

import (
	"fmt"
	"strings"
)

// Level grades a command's severity.
type Level string

// Severity levels, least to most severe.
const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// Assessment is the outcome of validating one command. It is computed fresh
// per call and never persisted.
type Assessment struct {
	Allowed          bool     `json:"allowed"`
	Level            Level    `json:"level"`
	Score            int      `json:"score"`
	BlockReason      string   `json:"block_reason,omitempty"`
	SanitizedCommand string   `json:"sanitized_command"`
	DetectedPatterns []string `json:"detected_patterns,omitempty"`
	RequiresApproval bool     `json:"requires_approval"`
}

// Classifier evaluates commands against obfuscation checks, tiered danger
// patterns and context heuristics. The zero set of overrides is the built-in
// policy; extra tier patterns may be merged in from a rules file.
type Classifier struct {
	critical []tierPattern
	high     []tierPattern
	medium   []tierPattern
}

// NewClassifier returns a classifier with the built-in pattern tiers.
func NewClassifier() *Classifier {
	return &Classifier{
		critical: criticalPatterns,
		high:     highPatterns,
		medium:   mediumPatterns,
	}
}

// Validate scores a single command. It is total and side-effect free: any
// input, including the empty string, yields an assessment without error.
func (c *Classifier) Validate(command string) Assessment {
	sanitized := Sanitize(command)
	out := Assessment{
		Allowed:          true,
		Level:            LevelLow,
		SanitizedCommand: sanitized,
	}
	if sanitized == "" {
		return out
	}

	// Obfuscation wins over everything else: a command hiding its payload
	// is blocked regardless of what the payload would score.
	if name, reason, ok := matchObfuscation(sanitized); ok {
		out.Allowed = false
		out.Score = 100
		out.Level = LevelCritical
		out.BlockReason = fmt.Sprintf("obfuscated command: %s", reason)
		out.DetectedPatterns = []string{name}
		return out
	}

	patternScore, patternReason, patternIDs := c.matchTiers(sanitized)
	contextScore, contextReason, contextIDs := scoreContext(sanitized)

	// The decisive signal is the stronger of the two, not their sum.
	score := patternScore
	reason := patternReason
	if contextScore > score {
		score = contextScore
		reason = contextReason
	}

	if score > 100 {
		score = 100
	}
	out.Score = score
	out.Level = levelForScore(score)
	out.Allowed = score < 70
	out.RequiresApproval = score >= 40 && score < 70
	out.DetectedPatterns = append(patternIDs, contextIDs...)
	if score >= 40 {
		out.BlockReason = reason
	}
	return out
}

// Sanitize normalizes a raw command: trims, strips line continuations and
// collapses internal whitespace runs. Idempotent.
func Sanitize(command string) string {
	s := strings.ReplaceAll(command, "\\\n", " ")
	s = strings.ReplaceAll(s, "\\\r\n", " ")
	return strings.Join(strings.Fields(s), " ")
}

func (c *Classifier) matchTiers(command string) (int, string, []string) {
	for _, p := range c.critical {
		if p.re.MatchString(command) {
			return 100, p.reason, []string{p.id}
		}
	}
	for _, p := range c.high {
		if p.re.MatchString(command) {
			return 80, p.reason, []string{p.id}
		}
	}
	for _, p := range c.medium {
		if p.re.MatchString(command) {
			return 50, p.reason, []string{p.id}
		}
	}
	return 0, "", nil
}

func levelForScore(score int) Level {
	switch {
	case score >= 90:
		return LevelCritical
	case score >= 70:
		return LevelHigh
	case score >= 40:
		return LevelMedium
	default:
		return LevelLow
	}
}

// ParseLevel maps a level string to Level, defaulting to LOW.
func ParseLevel(value string) Level {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case string(LevelCritical):
		return LevelCritical
	case string(LevelHigh):
		return LevelHigh
	case string(LevelMedium):
		return LevelMedium
	default:
		return LevelLow
	}
}
