// Package web provides the status page for opsloop.
package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/karsov/opsloop/internal/db"
)

// Server exposes agent and task state over HTTP.
type Server struct {
	store *db.Store
}

// NewServer creates a status server over the store.
func NewServer(store *db.Store) (*Server, error) {
	return &Server{store: store}, nil
}

//go:embed templates/*.html
var templatesFS embed.FS

// Routes returns the router for the status pages.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleIndex)
	mux.HandleFunc("GET /api/tasks", s.handleTasks)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

type indexData struct {
	Agents []agentView
	Tasks  []taskView
}

type agentView struct {
	Role   string
	Status string
}

type taskView struct {
	ID      string
	Request string
	Role    string
	Status  string
	Results int
	Age     string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	tmpl, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	agents, err := s.store.ListAgents(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	tasks, err := s.store.ListTasks(r.Context(), 20)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := indexData{}
	for _, a := range agents {
		data.Agents = append(data.Agents, agentView{Role: a.Role, Status: a.Status})
	}
	for _, t := range tasks {
		data.Tasks = append(data.Tasks, taskView{
			ID:      t.ID,
			Request: t.Request,
			Role:    t.Role,
			Status:  t.Status,
			Results: t.ResultCount,
			Age:     taskAge(t.CreatedAt),
		})
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListTasks(r.Context(), 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(tasks)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func taskAge(createdAt string) string {
	ts, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return createdAt
	}
	return humanize.Time(ts)
}
