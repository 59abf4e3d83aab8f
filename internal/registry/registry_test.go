package registry

import (
	"sync"
	"testing"

	"github.com/ngenesis/ngenesis/internal/domain"
)

func TestCreateAndGet(t *testing.T) {
	r := New()

	id := r.Create(domain.RunContext{UserIntent: "scrape prices", TargetURL: "https://example.com"})
	if id == "" {
		t.Fatal("Create returned empty id")
	}

	run := r.Get(id)
	if run == nil {
		t.Fatal("Get returned nil for created run")
	}
	if run.Status != domain.StatusInitializing {
		t.Errorf("Status = %q, want initializing", run.Status)
	}
	if run.Context.UserIntent != "scrape prices" {
		t.Errorf("UserIntent = %q, want scrape prices", run.Context.UserIntent)
	}

	if r.Get("nope") != nil {
		t.Error("Get(unknown) should return nil")
	}
}

func TestAppendEventOrder(t *testing.T) {
	r := New()
	id := r.Create(domain.RunContext{})

	names := []string{"first", "second", "third"}
	for _, n := range names {
		r.AppendEvent(id, n, domain.EventInProgress, "")
	}

	run := r.Get(id)
	if len(run.Timeline) != 3 {
		t.Fatalf("Timeline length = %d, want 3", len(run.Timeline))
	}
	for i, n := range names {
		if run.Timeline[i].EventName != n {
			t.Errorf("Timeline[%d] = %q, want %q", i, run.Timeline[i].EventName, n)
		}
	}
	for i := 1; i < len(run.Timeline); i++ {
		if run.Timeline[i].Timestamp.Before(run.Timeline[i-1].Timestamp) {
			t.Error("timestamps should be non-decreasing")
		}
	}
}

func TestGetReturnsCopy(t *testing.T) {
	r := New()
	id := r.Create(domain.RunContext{})
	r.AppendEvent(id, "stage", domain.EventCompleted, "")

	snapshot := r.Get(id)
	snapshot.Timeline[0].EventName = "mutated"
	snapshot.Status = domain.StatusFailed

	fresh := r.Get(id)
	if fresh.Timeline[0].EventName != "stage" {
		t.Error("mutating a snapshot must not affect the registry entry")
	}
	if fresh.Status == domain.StatusFailed {
		t.Error("mutating a snapshot status must not affect the registry entry")
	}
}

func TestConcurrentRunsAreIsolated(t *testing.T) {
	r := New()

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		ids[i] = r.Create(domain.RunContext{})
	}

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.AppendEvent(id, "tick", domain.EventInProgress, "")
			}
			r.SetStatus(id, domain.StatusCompleted)
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		run := r.Get(id)
		if len(run.Timeline) != 50 {
			t.Errorf("run %s timeline = %d events, want 50", id, len(run.Timeline))
		}
		if run.Status != domain.StatusCompleted {
			t.Errorf("run %s status = %q, want completed", id, run.Status)
		}
	}

	if len(r.List()) != 10 {
		t.Errorf("List() = %d runs, want 10", len(r.List()))
	}
}
