// Package api is the HTTP boundary: run submission, status and timeline
// queries, agent execution, scouts, accounts and the dashboard event
// stream.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ngenesis/ngenesis/internal/auth"
	"github.com/ngenesis/ngenesis/internal/automation"
	"github.com/ngenesis/ngenesis/internal/forge"
	"github.com/ngenesis/ngenesis/internal/imagegen"
	"github.com/ngenesis/ngenesis/internal/pipeline"
	"github.com/ngenesis/ngenesis/internal/planner"
	"github.com/ngenesis/ngenesis/internal/registry"
	"github.com/ngenesis/ngenesis/internal/store"
	"github.com/ngenesis/ngenesis/internal/watch"
)

// Server is the HTTP API server. Optional capabilities may be nil; their
// endpoints answer with a documented degradation instead of failing.
type Server struct {
	registry *registry.Registry
	engine   *pipeline.Engine
	forge    *forge.Forge

	store   *store.Store       // optional persistence
	auth    *auth.Service      // optional accounts
	monitor watch.Monitor      // optional scouts
	runner  automation.Runner  // optional ad-hoc execution
	synth   planner.Synthesizer
	icons   imagegen.Generator

	addr   string
	router *mux.Router
	sseHub *SSEHub
}

// Deps carries the capabilities the server exposes
type Deps struct {
	Registry *registry.Registry
	Engine   *pipeline.Engine
	Forge    *forge.Forge
	Store    *store.Store
	Auth     *auth.Service
	Monitor  watch.Monitor
	Runner   automation.Runner
	Synth    planner.Synthesizer
	Icons    imagegen.Generator
}

// NewServer creates the API server and registers all routes
func NewServer(deps Deps, addr string) *Server {
	s := &Server{
		registry: deps.Registry,
		engine:   deps.Engine,
		forge:    deps.Forge,
		store:    deps.Store,
		auth:     deps.Auth,
		monitor:  deps.Monitor,
		runner:   deps.Runner,
		synth:    deps.Synth,
		icons:    deps.Icons,
		addr:     addr,
		router:   mux.NewRouter(),
		sseHub:   NewSSEHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/ping", s.pingHandler()).Methods(http.MethodGet)

	s.router.HandleFunc("/genesis", s.genesisHandler()).Methods(http.MethodPost)
	s.router.HandleFunc("/status", s.listStatusHandler()).Methods(http.MethodGet)
	s.router.HandleFunc("/status/{id}", s.statusHandler()).Methods(http.MethodGet)
	s.router.HandleFunc("/timeline/{id}", s.timelineHandler()).Methods(http.MethodGet)

	s.router.HandleFunc("/agent/{id}/files", s.agentFilesHandler()).Methods(http.MethodGet)
	s.router.HandleFunc("/agent/{id}/run", s.runAgentHandler()).Methods(http.MethodPost)
	s.router.HandleFunc("/agent/{id}/orchestrate", s.orchestrateHandler()).Methods(http.MethodPost)

	s.router.HandleFunc("/scouts", s.listScoutsHandler()).Methods(http.MethodGet)
	s.router.HandleFunc("/scouts/{id}", s.stopScoutHandler()).Methods(http.MethodDelete)

	s.router.HandleFunc("/api/auth/register", s.registerHandler()).Methods(http.MethodPost)
	s.router.HandleFunc("/api/auth/login", s.loginHandler()).Methods(http.MethodPost)
	s.router.HandleFunc("/api/auth/me", s.meHandler()).Methods(http.MethodGet)

	s.router.HandleFunc("/api/events", s.sseHandler()).Methods(http.MethodGet)
}

// Handler returns the routing handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the SSE hub and blocks serving HTTP
func (s *Server) Start() error {
	go s.sseHub.Run()
	return http.ListenAndServe(s.addr, s.router)
}

// RunUpdated implements the pipeline notifier: every stage transition is
// pushed to connected dashboard clients.
func (s *Server) RunUpdated(id string) {
	if run := s.registry.Get(id); run != nil {
		s.sseHub.Broadcast(SSEEvent{Type: "run_update", Data: run})
	}
}

// ArtifactWritten pushes a sandbox-observer notification to SSE clients
func (s *Server) ArtifactWritten(agentDir string, files []string) {
	s.sseHub.Broadcast(SSEEvent{Type: "artifact_written", Data: map[string]any{
		"agent_dir": agentDir,
		"files":     files,
	}})
}

// ScoutDigest pushes a periodic scout summary to SSE clients
func (s *Server) ScoutDigest(scouts []watch.Scout) {
	s.sseHub.Broadcast(SSEEvent{Type: "scout_digest", Data: scouts})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "details": details})
}
