package imagegen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ngenesis/ngenesis/internal/domain"
)

func newTestFreepik(t *testing.T, handler http.Handler) *Freepik {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	f := New("FPSX-test", "")
	f.baseURL = srv.URL
	f.interval = time.Millisecond
	return f
}

func taskJSON(taskID, status string, generated ...string) []byte {
	data, _ := json.Marshal(map[string]any{
		"data": map[string]any{"task_id": taskID, "status": status, "generated": generated},
	})
	return data
}

func TestGenerateIcon_PollsToCompletion(t *testing.T) {
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /mystic", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-freepik-api-key") != "FPSX-test" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write(taskJSON("task-1", "CREATED"))
	})
	mux.HandleFunc("GET /mystic/task-1", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			w.Write(taskJSON("task-1", "IN_PROGRESS"))
			return
		}
		w.Write(taskJSON("task-1", "COMPLETED", "https://img.example/icon.png"))
	})

	f := newTestFreepik(t, mux)

	url, err := f.GenerateIcon(context.Background(), "futuristic icon")
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://img.example/icon.png" {
		t.Errorf("url = %q", url)
	}
	if polls.Load() != 3 {
		t.Errorf("polls = %d, want 3", polls.Load())
	}
}

func TestGenerateIcon_FailedStateIsServiceError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /mystic", func(w http.ResponseWriter, r *http.Request) {
		w.Write(taskJSON("task-2", "CREATED"))
	})
	mux.HandleFunc("GET /mystic/task-2", func(w http.ResponseWriter, r *http.Request) {
		w.Write(taskJSON("task-2", "FAILED"))
	})

	f := newTestFreepik(t, mux)

	_, err := f.GenerateIcon(context.Background(), "icon")
	if kind := domain.FailureKindOf(err); kind != domain.FailureService {
		t.Errorf("failure kind = %q, want service-error", kind)
	}
}

func TestGenerateIcon_NeverCompletingTaskTimesOut(t *testing.T) {
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /mystic", func(w http.ResponseWriter, r *http.Request) {
		w.Write(taskJSON("task-3", "CREATED"))
	})
	mux.HandleFunc("GET /mystic/task-3", func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		w.Write(taskJSON("task-3", "IN_PROGRESS"))
	})

	f := newTestFreepik(t, mux)

	_, err := f.GenerateIcon(context.Background(), "icon")
	if kind := domain.FailureKindOf(err); kind != domain.FailureTimeout {
		t.Errorf("failure kind = %q, want timeout", kind)
	}
	if polls.Load() != int32(f.maxAttempts) {
		t.Errorf("polls = %d, want exactly %d", polls.Load(), f.maxAttempts)
	}
}

func TestGenerateIcon_QuotaExceeded(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /mystic", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	f := newTestFreepik(t, mux)

	_, err := f.GenerateIcon(context.Background(), "icon")
	if kind := domain.FailureKindOf(err); kind != domain.FailureQuota {
		t.Errorf("failure kind = %q, want quota", kind)
	}
}
