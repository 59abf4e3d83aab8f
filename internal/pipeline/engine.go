// Package pipeline sequences the agent-generation stages. One goroutine
// owns each run from submission to terminal state; stages execute strictly
// in order and the registry entry is the only cross-run read surface.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ngenesis/ngenesis/internal/domain"
	"github.com/ngenesis/ngenesis/internal/fabricate"
	"github.com/ngenesis/ngenesis/internal/forge"
	"github.com/ngenesis/ngenesis/internal/imagegen"
	"github.com/ngenesis/ngenesis/internal/planner"
	"github.com/ngenesis/ngenesis/internal/registry"
	"github.com/ngenesis/ngenesis/internal/review"
	"github.com/ngenesis/ngenesis/internal/watch"
)

// refineThreshold is the review score below which a refinement pass runs
const refineThreshold = 90

// Recorder persists a run once it reaches a terminal state. Persistence is
// best-effort; a recording failure never changes the run's outcome.
type Recorder interface {
	RecordRun(ctx context.Context, run *domain.Run) error
}

// Notifier receives a signal after every stage transition
type Notifier interface {
	RunUpdated(id string)
}

// Engine drives runs through the generation stages. The planner and forge
// are mandatory; nil optional adapters disable their stages.
type Engine struct {
	registry *registry.Registry
	planner  planner.Planner
	forge    *forge.Forge

	icons    imagegen.Generator  // optional
	testData fabricate.Generator // optional
	monitor  watch.Monitor       // optional

	recorder Recorder // optional
	notifier Notifier // optional
}

// New creates an engine over the given registry and mandatory capabilities
func New(reg *registry.Registry, p planner.Planner, f *forge.Forge) *Engine {
	return &Engine{registry: reg, planner: p, forge: f}
}

// WithIcons enables icon generation
func (e *Engine) WithIcons(g imagegen.Generator) *Engine { e.icons = g; return e }

// WithTestData enables synthetic test-data generation
func (e *Engine) WithTestData(g fabricate.Generator) *Engine { e.testData = g; return e }

// WithMonitor enables change-monitoring setup
func (e *Engine) WithMonitor(m watch.Monitor) *Engine { e.monitor = m; return e }

// WithRecorder enables terminal-state persistence
func (e *Engine) WithRecorder(r Recorder) *Engine { e.recorder = r; return e }

// WithNotifier enables stage-transition notifications
func (e *Engine) WithNotifier(n Notifier) *Engine { e.notifier = n; return e }

// Start allocates a run and returns its ID immediately. Stage execution
// continues on a dedicated goroutine; callers observe progress through the
// registry.
func (e *Engine) Start(req domain.AgentRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	personality := req.Personality
	if personality == "" {
		personality = domain.PersonalityProfessional
	}

	id := e.registry.Create(domain.RunContext{
		UserIntent:  req.UserIntent,
		TargetURL:   req.TargetURL,
		Personality: personality,
	})
	log.Printf("[pipeline] run %s started: %q", id, req.UserIntent)

	go e.execute(context.Background(), id, req)

	return id, nil
}

// execute runs every stage in order. Mandatory-stage errors abort the run;
// optional-stage errors record one failed event and fall back.
func (e *Engine) execute(ctx context.Context, id string, req domain.AgentRequest) {
	run := e.registry.Get(id)
	if run == nil {
		return
	}

	if err := e.generate(ctx, id, req, run.Context); err != nil {
		log.Printf("[pipeline] run %s failed: %v", id, err)
		e.registry.AppendEvent(id, "Agent Generation Failed", domain.EventFailed, err.Error())
		e.registry.Update(id, func(r *domain.Run) {
			r.Status = domain.StatusFailed
			r.Error = err.Error()
		})
	}

	e.finish(ctx, id)
}

func (e *Engine) generate(ctx context.Context, id string, req domain.AgentRequest, rc domain.RunContext) error {
	// Stage: planning. Local heuristic, cannot fail.
	e.stage(id, domain.StatusPlanning)
	plan := forge.Plan(rc.UserIntent, rc.TargetURL)
	e.event(id, fmt.Sprintf("Plan Created: %d steps (%s)", len(plan.Steps), plan.Complexity),
		domain.EventCompleted, plan.Architecture)

	// Stage: fabricating test data. Optional; failure degrades to zero records.
	if e.testData != nil {
		e.stage(id, domain.StatusFabricating)
		records, err := e.testData.GenerateAgentTestData(ctx, rc.UserIntent, rc.TargetURL)
		if err != nil {
			log.Printf("[pipeline] run %s: test data failed, continuing: %v", id, err)
			e.event(id, "Test Data Skipped", domain.EventFailed,
				"Synthetic data unavailable. Agent will be built without validation data.")
		} else {
			e.registry.Update(id, func(r *domain.Run) { r.TestDataGenerated = true })
			e.event(id, fmt.Sprintf("Test Data Generated: %d records", len(records)),
				domain.EventCompleted, "Synthetic data ready for validation")
		}
	}

	// Stage: decomposing. Mandatory; a malformed manifest is fatal.
	e.stage(id, domain.StatusDecomposing)
	manifest, err := e.planner.GenerateManifest(ctx, rc)
	if err != nil {
		return fmt.Errorf("intent decomposition: %w", err)
	}
	e.event(id, fmt.Sprintf("Gemini: Manifest Ready (%d files)", len(manifest.Files)),
		domain.EventCompleted, manifest.Description)

	// Stage: fabricating code. Mandatory; filesystem errors are fatal.
	e.stage(id, domain.StatusFabricating)
	agentName := req.AgentName
	if agentName == "" {
		agentName = manifest.AgentName
	}
	agentDir := e.forge.AgentDir(agentName, id)
	if err := e.forge.WriteProductContext(agentDir); err != nil {
		return fmt.Errorf("code authoring: %w", err)
	}

	var paths []string
	var artifacts []domain.Artifact
	for _, f := range manifest.Files {
		path, err := e.forge.WriteFile(agentDir, f.Filename, f.CodeContent)
		if err != nil {
			return fmt.Errorf("code authoring %s: %w", f.Filename, err)
		}
		paths = append(paths, path)
		artifacts = append(artifacts, domain.Artifact{
			Filename: f.Filename,
			Content:  f.CodeContent,
			Language: domain.LanguageForFile(f.Filename),
		})
	}
	e.event(id, fmt.Sprintf("Agent Code Written: %d files", len(paths)), domain.EventCompleted, "")

	// Stage: reviewing. Always produces a score; never aborts the run.
	e.stage(id, domain.StatusReviewing)
	rev := review.ReviewAgent(manifest.Files)
	e.registry.Update(id, func(r *domain.Run) { r.QualityScore = rev.OverallScore })

	reviewStatus := domain.EventCompleted
	if rev.OverallScore < 70 {
		reviewStatus = domain.EventFailed
	}
	e.event(id, fmt.Sprintf("Code Review: Score %d/100", rev.OverallScore), reviewStatus, rev.Summary)

	if rev.OverallScore < refineThreshold {
		if err := e.refine(id, agentDir, manifest, rev.AllSuggestions(), &artifacts); err != nil {
			log.Printf("[pipeline] run %s: refinement failed, keeping originals: %v", id, err)
			e.event(id, "Refinement Skipped", domain.EventFailed, err.Error())
		} else {
			e.event(id, "Code Refined From Review Feedback", domain.EventCompleted, "")
		}
	}

	// Stage: verifying. Mandatory; the first syntax failure is fatal.
	e.stage(id, domain.StatusVerifying)
	for _, path := range paths {
		if err := e.forge.VerifySyntax(ctx, path); err != nil {
			return fmt.Errorf("syntax verification: %w", err)
		}
	}
	e.event(id, "Syntax Verified", domain.EventCompleted, "")

	// Stage: monitoring. Optional; gated on the intent heuristic.
	if e.monitor != nil && ShouldEnableMonitoring(rc.UserIntent) {
		e.stage(id, domain.StatusMonitoring)
		scout, err := e.monitor.CreateScout(ctx, watch.MonitoringQuery(rc.UserIntent, rc.TargetURL), "1h")
		if err != nil {
			log.Printf("[pipeline] run %s: monitoring failed, continuing: %v", id, err)
			e.event(id, "Monitoring Skipped", domain.EventFailed,
				"Invalid API key or service unavailable. Agent will work without continuous monitoring.")
		} else {
			e.registry.Update(id, func(r *domain.Run) {
				r.ScoutID = scout.TaskID
				r.MonitoringActive = true
			})
			e.event(id, "Scout Deployed: "+scout.TaskID, domain.EventCompleted,
				"Continuous monitoring active")
		}
	}

	// Stage: deploying. Icon generation falls back to the placeholder.
	e.stage(id, domain.StatusDeploying)
	iconURL := imagegen.PlaceholderIconURL
	if e.icons == nil {
		e.event(id, "Icon Generation Skipped", domain.EventFailed,
			"No image credentials configured. Using placeholder icon.")
	} else if url, err := e.icons.GenerateIcon(ctx, manifest.IconPrompt); err != nil {
		log.Printf("[pipeline] run %s: icon generation failed, using placeholder: %v", id, err)
		e.event(id, "Icon Generation Skipped", domain.EventFailed,
			"Invalid API key or quota exceeded. Using placeholder icon.")
	} else {
		iconURL = url
		e.event(id, "Icon Generated", domain.EventCompleted, "Custom 4K branded icon created")
	}

	e.registry.Update(id, func(r *domain.Run) {
		r.IconURL = iconURL
		r.ArtifactPaths = paths
		r.Artifacts = artifacts
	})
	// the summary event lands before the terminal status so pollers never
	// observe a completed run with a truncated timeline
	e.registry.AppendEvent(id, "Agent Generation Complete", domain.EventCompleted,
		completionSummary(e.registry.Get(id)))
	e.registry.SetStatus(id, domain.StatusCompleted)
	log.Printf("[pipeline] run %s completed", id)
	return nil
}

// refine rewrites every authored file through the mechanical transformations
// the review suggested. The rewrite is idempotent for compliant code.
func (e *Engine) refine(id, agentDir string, manifest *domain.BuildManifest, suggestions []string, artifacts *[]domain.Artifact) error {
	for i, f := range manifest.Files {
		refined := forge.Refine(f.CodeContent, suggestions)
		if _, err := e.forge.WriteFile(agentDir, f.Filename, refined); err != nil {
			return err
		}
		if i < len(*artifacts) {
			(*artifacts)[i].Content = refined
		}
	}
	return nil
}

// finish persists the terminal run and emits the last notification
func (e *Engine) finish(ctx context.Context, id string) {
	if e.recorder != nil {
		if run := e.registry.Get(id); run != nil {
			if err := e.recorder.RecordRun(ctx, run); err != nil {
				log.Printf("[pipeline] run %s: persistence failed: %v", id, err)
			}
		}
	}
	e.notify(id)
}

func (e *Engine) stage(id string, status domain.RunStatus) {
	e.registry.SetStatus(id, status)
	e.notify(id)
}

func (e *Engine) event(id, name string, status domain.EventStatus, details string) {
	e.registry.AppendEvent(id, name, status, details)
	e.notify(id)
}

func (e *Engine) notify(id string) {
	if e.notifier != nil {
		e.notifier.RunUpdated(id)
	}
}

var monitoringKeywords = []string{"monitor", "track", "watch", "alert", "notify", "continuous"}

// ShouldEnableMonitoring reports whether the intent asks for continuous
// observation. Raw substring match; "stopwatch" matching "watch" is accepted
// behavior.
func ShouldEnableMonitoring(intent string) bool {
	lower := strings.ToLower(intent)
	for _, k := range monitoringKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// completionSummary lists which features actually activated for the run
func completionSummary(run *domain.Run) string {
	if run == nil {
		return ""
	}
	features := []string{fmt.Sprintf("%d files", len(run.ArtifactPaths))}
	if run.QualityScore > 0 {
		features = append(features, fmt.Sprintf("%d/100 quality score", run.QualityScore))
	}
	if run.TestDataGenerated {
		features = append(features, "test data validated")
	}
	if run.MonitoringActive {
		features = append(features, "continuous monitoring")
	}
	features = append(features, "branded icon")
	return "Created with: " + strings.Join(features, ", ")
}
