package api

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/ngenesis/ngenesis/internal/domain"
	"github.com/ngenesis/ngenesis/internal/pipeline"
	"github.com/ngenesis/ngenesis/internal/planner"
	"github.com/ngenesis/ngenesis/internal/watch"
)

func (s *Server) pingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

// GenesisResponse acknowledges an accepted run
type GenesisResponse struct {
	Success   bool   `json:"success"`
	AgentID   string `json:"agent_id"`
	StatusURL string `json:"status_url"`
}

func (s *Server) genesisHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.AgentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}

		id, err := s.engine.Start(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request", err.Error())
			return
		}

		writeJSON(w, GenesisResponse{
			Success:   true,
			AgentID:   id,
			StatusURL: "/status/" + id,
		})
	}
}

func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := s.registry.Get(mux.Vars(r)["id"])
		if run == nil {
			writeError(w, http.StatusNotFound, "agent not found", "")
			return
		}
		writeJSON(w, run)
	}
}

func (s *Server) listStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs := s.registry.List()
		writeJSON(w, map[string]any{
			"total":  len(runs),
			"agents": runs,
		})
	}
}

func (s *Server) timelineHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := s.registry.Get(mux.Vars(r)["id"])
		if run == nil {
			writeError(w, http.StatusNotFound, "agent not found", "")
			return
		}
		writeJSON(w, map[string]any{
			"agent_id": run.ID,
			"status":   run.Status,
			"events":   run.Timeline,
		})
	}
}

// AgentFileResponse is one artifact as served to the dashboard
type AgentFileResponse struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

func (s *Server) agentFilesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := s.registry.Get(mux.Vars(r)["id"])
		if run == nil {
			writeError(w, http.StatusNotFound, "agent not found", "")
			return
		}

		files := make([]AgentFileResponse, 0, len(run.ArtifactPaths))
		for i, path := range run.ArtifactPaths {
			name := filepath.Base(path)
			content, err := os.ReadFile(path)
			if err != nil && i < len(run.Artifacts) {
				// disk copy gone, fall back to the in-memory artifact
				content = []byte(run.Artifacts[i].Content)
			}
			files = append(files, AgentFileResponse{
				Filename: name,
				Content:  string(content),
				Language: domain.LanguageForFile(name),
			})
		}

		writeJSON(w, map[string]any{
			"agent_id": run.ID,
			"files":    files,
		})
	}
}

// runRequest optionally overrides the stored context for one execution
type runRequest struct {
	TargetURL string `json:"target_url,omitempty"`
	Goal      string `json:"goal,omitempty"`
}

func (s *Server) runAgentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := s.registry.Get(mux.Vars(r)["id"])
		if run == nil {
			writeError(w, http.StatusNotFound, "agent not found", "")
			return
		}
		if run.Status != domain.StatusCompleted {
			writeError(w, http.StatusConflict, "agent is not ready",
				"current status: "+string(run.Status))
			return
		}

		var req runRequest
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&req) // empty body is fine
		}
		targetURL := run.Context.TargetURL
		if req.TargetURL != "" {
			targetURL = req.TargetURL
		}
		goal := run.Context.UserIntent
		if req.Goal != "" {
			goal = req.Goal
		}

		started := time.Now()
		execID := uuid.NewString()

		results, demo := s.executeAgent(r, targetURL, goal)
		elapsed := time.Since(started)

		if s.store != nil {
			// persistence is best-effort for ad-hoc runs
			if err := s.store.SaveResult(r.Context(), run.ID, execID, results, elapsed); err != nil {
				log.Printf("[api] cannot persist result for %s: %v", run.ID, err)
			}
		}

		writeJSON(w, map[string]any{
			"success":           true,
			"agent_id":          run.ID,
			"run_id":            execID,
			"results":           results,
			"execution_time_ms": elapsed.Milliseconds(),
			"demo":              demo,
		})
	}
}

// executeAgent runs the stored goal through web automation, degrading to a
// clearly labeled synthetic payload when the capability is unavailable.
func (s *Server) executeAgent(r *http.Request, targetURL, goal string) (map[string]any, bool) {
	if s.runner != nil && targetURL != "" {
		if results, err := s.runner.Run(r.Context(), targetURL, goal); err == nil {
			return results, false
		}
	}
	return map[string]any{
		"demo":       true,
		"note":       "Web automation unavailable; returning synthetic demo data.",
		"target_url": targetURL,
		"goal":       goal,
		"sample": []map[string]any{
			{"field": "title", "value": "Example result 1"},
			{"field": "title", "value": "Example result 2"},
		},
	}, true
}

func (s *Server) orchestrateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := s.registry.Get(mux.Vars(r)["id"])
		if run == nil {
			writeError(w, http.StatusNotFound, "agent not found", "")
			return
		}

		intent := run.Context.UserIntent
		targetURL := run.Context.TargetURL

		var mu sync.Mutex
		outputs := make(map[string]any)
		var toolsUsed []string

		record := func(tool string, out any) {
			mu.Lock()
			defer mu.Unlock()
			outputs[tool] = out
			toolsUsed = append(toolsUsed, tool)
		}

		// Tool failures land in the output map; the fan-out itself never
		// aborts, so errgroup goroutines always return nil.
		g, ctx := errgroup.WithContext(r.Context())

		if s.runner != nil && targetURL != "" {
			g.Go(func() error {
				out, err := s.runner.Run(ctx, targetURL, intent)
				if err != nil {
					record("web_automation", map[string]any{"error": err.Error()})
				} else {
					record("web_automation", out)
				}
				return nil
			})
		}
		if s.icons != nil {
			g.Go(func() error {
				url, err := s.icons.GenerateIcon(ctx, "icon for agent: "+intent)
				if err != nil {
					record("image_generation", map[string]any{"error": err.Error()})
				} else {
					record("image_generation", map[string]any{"icon_url": url})
				}
				return nil
			})
		}
		if s.monitor != nil && pipeline.ShouldEnableMonitoring(intent) {
			g.Go(func() error {
				scout, err := s.monitor.CreateScout(ctx, watch.MonitoringQuery(intent, targetURL), "1h")
				if err != nil {
					record("monitoring", map[string]any{"error": err.Error()})
				} else {
					record("monitoring", scout)
				}
				return nil
			})
		}

		g.Wait()

		synthesis := ""
		if s.synth != nil && len(outputs) > 0 {
			if text, err := s.synth.Synthesize(r.Context(), planner.SynthesisPrompt(intent, outputs)); err == nil {
				synthesis = text
			} else {
				synthesis = "Synthesis unavailable: " + err.Error()
			}
		}

		writeJSON(w, map[string]any{
			"success":    true,
			"agent_id":   run.ID,
			"tools_used": toolsUsed,
			"outputs":    outputs,
			"synthesis":  synthesis,
			"iterations": 1,
		})
	}
}

func (s *Server) listScoutsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.monitor == nil {
			writeJSON(w, map[string]any{"scouts": []watch.Scout{}})
			return
		}
		scouts, err := s.monitor.ListScouts(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, "cannot list scouts", err.Error())
			return
		}
		if scouts == nil {
			scouts = []watch.Scout{}
		}
		writeJSON(w, map[string]any{"scouts": scouts})
	}
}

func (s *Server) stopScoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.monitor == nil {
			writeError(w, http.StatusServiceUnavailable, "monitoring not enabled", "")
			return
		}
		id := mux.Vars(r)["id"]
		if err := s.monitor.StopScout(r.Context(), id); err != nil {
			writeError(w, http.StatusBadGateway, "cannot stop scout", err.Error())
			return
		}
		writeJSON(w, map[string]any{"success": true, "task_id": id})
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

func (s *Server) registerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			writeError(w, http.StatusServiceUnavailable, "accounts not enabled", "")
			return
		}
		var creds credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
		user, token, err := s.auth.Register(r.Context(), creds.Email, creds.Password, creds.Name)
		if err != nil {
			writeError(w, http.StatusBadRequest, "registration failed", err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"success": true, "user": user, "token": token})
	}
}

func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			writeError(w, http.StatusServiceUnavailable, "accounts not enabled", "")
			return
		}
		var creds credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
		user, token, err := s.auth.Login(r.Context(), creds.Email, creds.Password)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "login failed", err.Error())
			return
		}
		writeJSON(w, map[string]any{"success": true, "user": user, "token": token})
	}
}

func (s *Server) meHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			writeError(w, http.StatusServiceUnavailable, "accounts not enabled", "")
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			writeError(w, http.StatusUnauthorized, "missing bearer token", "")
			return
		}
		user, err := s.auth.Verify(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token", err.Error())
			return
		}
		writeJSON(w, map[string]any{"success": true, "user": user})
	}
}
