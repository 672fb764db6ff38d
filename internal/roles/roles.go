// Package roles routes a free-text request to the role handler best suited
// to execute it.
package roles

import "strings"

// Role keys, in declared priority order. Ties resolve to the earlier entry.
const (
	RoleBackend    = "backend"
	RoleFrontend   = "frontend"
	RoleOperations = "operations"
	RoleQuality    = "quality"
	RoleData       = "data"
)

// Order is the declared role order used for tie-breaking and listings.
var Order = []string{RoleBackend, RoleFrontend, RoleOperations, RoleQuality, RoleData}

type roleProfile struct {
	words   []string
	phrases []string
}

var keywordTable = map[string]roleProfile{
	RoleBackend: {
		words:   []string{"api", "endpoint", "server", "backend", "service", "auth", "middleware", "handler", "grpc", "rest"},
		phrases: []string{"business logic", "rate limit", "background job", "message queue"},
	},
	RoleFrontend: {
		words:   []string{"ui", "frontend", "page", "component", "css", "layout", "form", "button", "render", "browser"},
		phrases: []string{"user interface", "landing page", "client side", "responsive design"},
	},
	RoleOperations: {
		words:   []string{"deploy", "deployment", "docker", "container", "containers", "kubernetes", "ssh", "server", "nginx", "pipeline", "infrastructure", "provision", "rollback"},
		phrases: []string{"ci cd", "to production", "reverse proxy", "load balancer", "zero downtime"},
	},
	RoleQuality: {
		words:   []string{"test", "tests", "coverage", "lint", "regression", "e2e", "flaky", "assert"},
		phrases: []string{"unit test", "integration test", "test suite", "write tests"},
	},
	RoleData: {
		words:   []string{"database", "migration", "schema", "query", "index", "sql", "postgres", "table", "backup"},
		phrases: []string{"data model", "slow query", "foreign key", "connection pool"},
	},
}

// StackHints carries optional knowledge about the target project's stack.
// Field presence (or absence) nudges classification toward a role.
type StackHints struct {
	Backend  string
	Frontend string
	Database string
	Infra    string
}

type hintBoost struct {
	role  string
	boost int
	match func(StackHints) bool
}

var hintBoosts = []hintBoost{
	{RoleOperations, 2, func(h StackHints) bool { return h.Infra != "" }},
	{RoleData, 2, func(h StackHints) bool { return h.Database != "" }},
	// A frontend-only project should not drift into backend by default.
	{RoleFrontend, 3, func(h StackHints) bool { return h.Frontend != "" && h.Backend == "" }},
	{RoleBackend, 1, func(h StackHints) bool { return h.Backend != "" }},
}

// Classify picks the role key for a request. Deterministic: keyword scores
// plus optional stack-hint boosts, ties resolved in declared order, and a
// zero score everywhere falls back to backend so no task is dropped.
func Classify(requestText string, hints *StackHints) string {
	text := strings.ToLower(requestText)
	words := fieldSet(text)

	scores := make(map[string]int, len(keywordTable))
	for role, profile := range keywordTable {
		score := 0
		for _, kw := range profile.words {
			if words[kw] {
				score++
			}
		}
		for _, phrase := range profile.phrases {
			if strings.Contains(text, phrase) {
				score += 2
			}
		}
		scores[role] = score
	}

	if hints != nil {
		for _, hb := range hintBoosts {
			if hb.match(*hints) {
				scores[hb.role] += hb.boost
			}
		}
	}

	best := RoleBackend
	bestScore := 0
	for _, role := range Order {
		if scores[role] > bestScore {
			best = role
			bestScore = scores[role]
		}
	}
	return best
}

func fieldSet(text string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		out[f] = true
	}
	return out
}
