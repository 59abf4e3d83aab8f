package fabricate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestTonic(t *testing.T, handler http.Handler) *Tonic {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tc := New("fab-test")
	tc.baseURL = srv.URL
	tc.interval = time.Millisecond
	return tc
}

func TestGenerateAgentTestData_Remote(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fab-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"task_id": "dt-1", "status": "pending"})
	})
	mux.HandleFunc("GET /tasks/dt-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"task_id": "dt-1",
			"status":  "completed",
			"data":    []map[string]any{{"product_name": "Widget"}, {"product_name": "Gadget"}},
		})
	})

	tc := newTestTonic(t, mux)

	records, err := tc.GenerateAgentTestData(context.Background(), "track product prices", "https://shop.example")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("records = %d, want 2", len(records))
	}
}

func TestGenerateAgentTestData_FallsBackOnAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	tc := newTestTonic(t, mux)

	records, err := tc.GenerateAgentTestData(context.Background(), "track product prices", "https://shop.example")
	if err != nil {
		t.Fatalf("fallback should not error, got %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("fallback records = %d, want 5", len(records))
	}
	if records[0]["test_data"] != true {
		t.Error("fallback records must be labeled test_data")
	}
	if _, ok := records[0]["product_name"]; !ok {
		t.Error("product intent should yield product-shaped fallback rows")
	}
}

func TestPromptFromIntent(t *testing.T) {
	tests := []struct {
		intent string
		want   string
	}{
		{"track iPhone prices", "product"},
		{"summarize blog articles", "article"},
		{"find new job postings", "job"},
		{"watch the weather", "realistic records"},
	}

	for _, tt := range tests {
		got := promptFromIntent(tt.intent, "https://example.com")
		if !strings.Contains(got, tt.want) {
			t.Errorf("promptFromIntent(%q) = %q, want it to mention %q", tt.intent, got, tt.want)
		}
	}
}

func TestValidateOutput(t *testing.T) {
	testData := []Record{{"product_name": "x", "product_price": "$1", "test_data": true}}

	passed, coverage, issues := ValidateOutput(Record{"product_name": "y", "product_price": "$2"}, testData)
	if !passed || coverage != 100 {
		t.Errorf("full match: passed=%v coverage=%v issues=%v", passed, coverage, issues)
	}

	passed, coverage, issues = ValidateOutput(Record{"product_name": "y"}, testData)
	if passed {
		t.Error("missing field should fail validation")
	}
	if coverage != 50 {
		t.Errorf("coverage = %v, want 50", coverage)
	}
	if len(issues) != 1 {
		t.Errorf("issues = %v, want one entry", issues)
	}
}
