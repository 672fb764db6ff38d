package roles

// Persona describes how a role presents itself to the reasoning model and
// which snippet categories it draws technology knowledge from.
type Persona struct {
	Role       string
	Title      string
	Prompt     string
	Categories []string
}

// SnippetProvider supplies technology-specific prompt snippets for a set of
// interest categories. The snippet library itself lives outside this module.
type SnippetProvider interface {
	Snippets(categories []string) []string
}

var personas = map[string]Persona{
	RoleBackend: {
		Role:   RoleBackend,
		Title:  "Backend Engineer",
		Prompt: "You are a senior backend engineer. You design and implement server-side services, APIs and integrations. You favor small, verifiable changes and explicit error handling.",
		Categories: []string{
			"backend", "api", "auth",
		},
	},
	RoleFrontend: {
		Role:   RoleFrontend,
		Title:  "Frontend Engineer",
		Prompt: "You are a senior frontend engineer. You build user interfaces and client-side logic, and you care about accessibility and responsive layouts.",
		Categories: []string{
			"frontend", "ui",
		},
	},
	RoleOperations: {
		Role:   RoleOperations,
		Title:  "Operations Engineer",
		Prompt: "You are a senior operations engineer. You deploy, monitor and maintain infrastructure. You never run destructive commands without an explicit rollback path.",
		Categories: []string{
			"infra", "containers", "ci",
		},
	},
	RoleQuality: {
		Role:   RoleQuality,
		Title:  "Quality Engineer",
		Prompt: "You are a senior quality engineer. You design test plans and write automated tests that catch regressions without being brittle.",
		Categories: []string{
			"testing",
		},
	},
	RoleData: {
		Role:   RoleData,
		Title:  "Data Engineer",
		Prompt: "You are a senior data engineer. You design schemas, write migrations and tune queries. You treat production data as irreplaceable.",
		Categories: []string{
			"database", "migrations",
		},
	},
}

// PersonaFor returns the persona for a role key, falling back to backend.
func PersonaFor(role string) Persona {
	if p, ok := personas[role]; ok {
		return p
	}
	return personas[RoleBackend]
}
