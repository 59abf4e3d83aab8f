package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ngenesis/ngenesis/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "ada@example.com", "hashed-pw", "Ada")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if user.ID == 0 {
		t.Error("user.ID = 0, want assigned id")
	}

	byEmail, err := s.GetUserByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if byEmail == nil || byEmail.ID != user.ID {
		t.Errorf("GetUserByEmail() = %+v, want id %d", byEmail, user.ID)
	}
	if byEmail.Password != "hashed-pw" {
		t.Errorf("Password = %q, want stored hash", byEmail.Password)
	}

	missing, err := s.GetUserByEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail(missing) error = %v", err)
	}
	if missing != nil {
		t.Errorf("GetUserByEmail(missing) = %+v, want nil", missing)
	}
}

func TestDuplicateEmailRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "ada@example.com", "pw1", ""); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if _, err := s.CreateUser(ctx, "ada@example.com", "pw2", ""); err == nil {
		t.Error("CreateUser() with duplicate email: expected error, got nil")
	}
}

func terminalRun() *domain.Run {
	return &domain.Run{
		ID:     "run-1234",
		Status: domain.StatusCompleted,
		Timeline: []domain.TimelineEvent{
			{Timestamp: time.Now().Add(-time.Minute), EventName: "Plan Created: 5 steps (low)", Status: domain.EventCompleted},
			{Timestamp: time.Now(), EventName: "Agent Generation Complete", Status: domain.EventCompleted, Details: "Created with: 1 files, branded icon"},
		},
		Artifacts: []domain.Artifact{
			{Filename: "agent.py", Content: "print('ok')", Language: "python"},
		},
		IconURL:      "https://cdn.example/icon.png",
		QualityScore: 95,
		Context:      domain.RunContext{UserIntent: "Scrape titles", TargetURL: "https://a.example"},
		CreatedAt:    time.Now().Add(-2 * time.Minute),
	}
}

func TestRecordRunRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run := terminalRun()

	if err := s.RecordRun(ctx, run); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	agent, err := s.GetAgent(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetAgent() error = %v", err)
	}
	if agent == nil {
		t.Fatal("GetAgent() = nil, want persisted agent")
	}
	if agent.Status != "completed" || agent.QualityScore != 95 {
		t.Errorf("agent = %+v, want completed with score 95", agent)
	}
	if agent.UserIntent != "Scrape titles" {
		t.Errorf("UserIntent = %q, want Scrape titles", agent.UserIntent)
	}

	files, err := s.GetAgentFiles(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetAgentFiles() error = %v", err)
	}
	if len(files) != 1 || files[0].Language != "python" {
		t.Errorf("files = %+v, want one python file", files)
	}

	timeline, err := s.GetAgentTimeline(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetAgentTimeline() error = %v", err)
	}
	if len(timeline) != 2 {
		t.Fatalf("timeline has %d events, want 2", len(timeline))
	}
	if timeline[0].EventName != "Plan Created: 5 steps (low)" {
		t.Errorf("timeline[0] = %q, insertion order not preserved", timeline[0].EventName)
	}
}

func TestRecordRunReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := terminalRun()
	run.Status = domain.StatusFailed
	run.Error = "syntax verification: bad file"
	if err := s.RecordRun(ctx, run); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	run2 := terminalRun()
	if err := s.RecordRun(ctx, run2); err != nil {
		t.Fatalf("RecordRun() rerecord error = %v", err)
	}

	agent, err := s.GetAgent(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetAgent() error = %v", err)
	}
	if agent.Status != "completed" || agent.Error != "" {
		t.Errorf("agent = %+v, want replaced completed row", agent)
	}

	timeline, _ := s.GetAgentTimeline(ctx, run.ID)
	if len(timeline) != 2 {
		t.Errorf("timeline has %d events after rerecord, want 2", len(timeline))
	}
}

func TestListAgents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := terminalRun()
	b := terminalRun()
	b.ID = "run-5678"
	b.CreatedAt = a.CreatedAt.Add(time.Minute)

	if err := s.RecordRun(ctx, a); err != nil {
		t.Fatalf("RecordRun(a) error = %v", err)
	}
	if err := s.RecordRun(ctx, b); err != nil {
		t.Fatalf("RecordRun(b) error = %v", err)
	}

	agents, err := s.ListAgents(ctx)
	if err != nil {
		t.Fatalf("ListAgents() error = %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("ListAgents() returned %d, want 2", len(agents))
	}
	if agents[0].ID != "run-5678" {
		t.Errorf("agents[0].ID = %q, want newest first", agents[0].ID)
	}
}

func TestSaveAndGetResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordRun(ctx, terminalRun()); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	results := map[string]any{"price": "42.50", "demo": false}
	if err := s.SaveResult(ctx, "run-1234", "exec-1", results, 1500*time.Millisecond); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}

	got, err := s.GetResults(ctx, "run-1234")
	if err != nil {
		t.Fatalf("GetResults() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("GetResults() returned %d, want 1", len(got))
	}
	if got[0].Results["price"] != "42.50" {
		t.Errorf("results[price] = %v, want 42.50", got[0].Results["price"])
	}
	if got[0].ExecutionTimeMS != 1500 {
		t.Errorf("ExecutionTimeMS = %d, want 1500", got[0].ExecutionTimeMS)
	}
}
