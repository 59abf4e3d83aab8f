package domain

import "time"

// TimelineEvent is an append-only audit record of one stage transition
type TimelineEvent struct {
	Timestamp time.Time   `json:"timestamp"`
	EventName string      `json:"event_name"`
	Status    EventStatus `json:"status"`
	Details   string      `json:"details,omitempty"`
}

// RunContext preserves the original request for later ad-hoc executions
type RunContext struct {
	UserIntent  string      `json:"user_intent"`
	TargetURL   string      `json:"target_url"`
	Personality Personality `json:"personality"`
}

// Artifact is one generated source file
type Artifact struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// Run represents one end-to-end agent-generation attempt.
// It is created at submission and mutated by the pipeline engine one
// stage at a time, never concurrently for the same run.
type Run struct {
	ID                string          `json:"agent_id"`
	Status            RunStatus       `json:"status"`
	Timeline          []TimelineEvent `json:"timeline"`
	Artifacts         []Artifact      `json:"-"`
	ArtifactPaths     []string        `json:"agent_files,omitempty"`
	IconURL           string          `json:"icon_url,omitempty"`
	QualityScore      int             `json:"code_quality_score,omitempty"`
	ScoutID           string          `json:"scout_id,omitempty"`
	MonitoringActive  bool            `json:"monitoring_active"`
	TestDataGenerated bool            `json:"test_data_generated"`
	Error             string          `json:"error,omitempty"`
	Context           RunContext      `json:"context"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Clone returns a deep copy safe to hand out while the engine keeps mutating
func (r *Run) Clone() *Run {
	cp := *r
	cp.Timeline = append([]TimelineEvent(nil), r.Timeline...)
	cp.Artifacts = append([]Artifact(nil), r.Artifacts...)
	cp.ArtifactPaths = append([]string(nil), r.ArtifactPaths...)
	return &cp
}
