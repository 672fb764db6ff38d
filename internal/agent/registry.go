package agent

import (
	"github.com/karsov/opsloop/internal/llm"
	"github.com/karsov/opsloop/internal/roles"
	"github.com/karsov/opsloop/internal/tools"
)

// Registry holds one handler per role. Lookup never fails: an unknown role
// resolves to the backend handler, mirroring the classifier's default.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds a handler for every declared role over shared
// dependencies.
func NewRegistry(client llm.Client, toolset *tools.Set, snippets roles.SnippetProvider, memory Memory, statuses StatusSink) *Registry {
	r := &Registry{handlers: make(map[string]Handler, len(roles.Order))}
	for _, role := range roles.Order {
		r.handlers[role] = NewHandler(role, client, toolset, snippets, memory, statuses)
	}
	return r
}

// For returns the handler for a role.
func (r *Registry) For(role string) Handler {
	if h, ok := r.handlers[role]; ok {
		return h
	}
	return r.handlers[roles.RoleBackend]
}

// Roles lists the registered role keys in declared order.
func (r *Registry) Roles() []string {
	out := make([]string, 0, len(r.handlers))
	for _, role := range roles.Order {
		if _, ok := r.handlers[role]; ok {
			out = append(out, role)
		}
	}
	return out
}
