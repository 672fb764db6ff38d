// Package tools defines the bounded capabilities a role handler may invoke
// and the built-in implementations.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/karsov/opsloop/internal/risk"
)

// Tool is a named, invocable capability. Execute may perform network, file
// or process I/O and must honor ctx cancellation. The result may be a
// string or any JSON-serializable value; callers render it with Stringify.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// BlockedError is raised by command-mediating tools when the risk policy
// refuses a command. It carries the full assessment for auditing.
type BlockedError struct {
	Assessment risk.Assessment
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("command blocked: %s (level=%s score=%d patterns=%s)",
		e.Assessment.BlockReason, e.Assessment.Level, e.Assessment.Score,
		strings.Join(e.Assessment.DetectedPatterns, ","))
}

// Set is an ordered, name-indexed tool collection.
type Set struct {
	order []string
	byName map[string]Tool
}

// NewSet builds a set preserving registration order.
func NewSet(tools ...Tool) *Set {
	s := &Set{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, dup := s.byName[t.Name()]; dup {
			continue
		}
		s.order = append(s.order, t.Name())
		s.byName[t.Name()] = t
	}
	return s
}

// Get looks a tool up by name.
func (s *Set) Get(name string) (Tool, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// Names returns tool names in registration order.
func (s *Set) Names() []string {
	return append([]string(nil), s.order...)
}

// Describe renders the "name: description" listing used in planning prompts.
func (s *Set) Describe() string {
	var b strings.Builder
	for _, name := range s.order {
		fmt.Fprintf(&b, "- %s: %s\n", name, s.byName[name].Description())
	}
	return b.String()
}

// StringArg extracts a required string argument.
func StringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q is not a string", key)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("argument %q is empty", key)
	}
	return s, nil
}

// Stringify converts a tool's structured result into its string form:
// strings pass through, everything else serializes to JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

// TruncateForLog bounds a result string for log output; the full value is
// kept in the step result.
func TruncateForLog(s string) string {
	const limit = 160
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
