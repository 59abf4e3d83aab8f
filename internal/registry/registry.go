// Package registry tracks in-flight and finished generation runs in
// memory. Entries live for the process lifetime; there is no eviction.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ngenesis/ngenesis/internal/domain"
)

// Registry is the in-memory run store. The pipeline engine is the only
// writer for a given run; readers get defensive copies.
type Registry struct {
	runs map[string]*domain.Run
	mu   sync.RWMutex
}

// New creates an empty registry
func New() *Registry {
	return &Registry{runs: make(map[string]*domain.Run)}
}

// Create allocates a run in the initializing state and returns its ID
func (r *Registry) Create(ctx domain.RunContext) string {
	run := &domain.Run{
		ID:        uuid.NewString(),
		Status:    domain.StatusInitializing,
		Context:   ctx,
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	r.runs[run.ID] = run
	r.mu.Unlock()

	return run.ID
}

// Get returns a copy of the run, or nil if unknown
func (r *Registry) Get(id string) *domain.Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil
	}
	return run.Clone()
}

// List returns copies of all runs, newest first
func (r *Registry) List() []*domain.Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Run, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// AppendEvent appends a timeline event to a run. Events are append-only
// and never reordered.
func (r *Registry) AppendEvent(id string, name string, status domain.EventStatus, details string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return
	}
	run.Timeline = append(run.Timeline, domain.TimelineEvent{
		Timestamp: time.Now(),
		EventName: name,
		Status:    status,
		Details:   details,
	})
}

// SetStatus moves a run to a new pipeline stage
func (r *Registry) SetStatus(id string, status domain.RunStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run, ok := r.runs[id]; ok {
		run.Status = status
	}
}

// Update applies a mutation to a run under the registry lock. The engine
// uses this for stage results (artifacts, score, scout id).
func (r *Registry) Update(id string, fn func(*domain.Run)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run, ok := r.runs[id]; ok {
		fn(run)
	}
}
