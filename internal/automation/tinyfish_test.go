package automation

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ngenesis/ngenesis/internal/domain"
)

func newTestRunner(url string) *TinyFish {
	t := New("test-key")
	t.baseURL = url
	return t
}

func TestRunParsesCompleteEvent(t *testing.T) {
	var gotKey, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"PROGRESS\",\"step\":1}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"COMPLETE\",\"resultJson\":{\"price\":\"42.50\",\"currency\":\"EUR\"}}\n\n")
	}))
	defer srv.Close()

	result, err := newTestRunner(srv.URL).Run(context.Background(), "https://shop.example", "extract price")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result["price"] != "42.50" {
		t.Errorf("result[price] = %v, want 42.50", result["price"])
	}
	if gotKey != "test-key" {
		t.Errorf("X-API-Key = %q, want test-key", gotKey)
	}
	if !strings.Contains(gotBody, "https://shop.example") {
		t.Errorf("request body missing url: %s", gotBody)
	}
}

func TestRunNoTerminalEventIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"PROGRESS\",\"step\":1}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"PROGRESS\",\"step\":2}\n\n")
	}))
	defer srv.Close()

	_, err := newTestRunner(srv.URL).Run(context.Background(), "https://a.example", "goal")
	if kind := domain.FailureKindOf(err); kind != domain.FailureMalformed {
		t.Errorf("FailureKindOf(err) = %v, want %v", kind, domain.FailureMalformed)
	}
}

func TestRunAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestRunner(srv.URL).Run(context.Background(), "https://a.example", "goal")
	if kind := domain.FailureKindOf(err); kind != domain.FailureAuth {
		t.Errorf("FailureKindOf(err) = %v, want %v", kind, domain.FailureAuth)
	}
}

func TestRunQuotaFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestRunner(srv.URL).Run(context.Background(), "https://a.example", "goal")
	if kind := domain.FailureKindOf(err); kind != domain.FailureQuota {
		t.Errorf("FailureKindOf(err) = %v, want %v", kind, domain.FailureQuota)
	}
}

func TestParseStreamSkipsNonJSONLines(t *testing.T) {
	stream := strings.NewReader(
		": keepalive\n" +
			"data: not-json\n" +
			"data: {\"status\":\"COMPLETED\",\"result\":{\"items\":\"3\"}}\n")

	result, err := parseStream(stream)
	if err != nil {
		t.Fatalf("parseStream() error = %v", err)
	}
	if result["items"] != "3" {
		t.Errorf("result[items] = %v, want 3", result["items"])
	}
}

func TestParseStreamCompleteWithoutResultReturnsEvent(t *testing.T) {
	stream := strings.NewReader("data: {\"type\":\"COMPLETE\",\"summary\":\"done\"}\n")

	result, err := parseStream(stream)
	if err != nil {
		t.Fatalf("parseStream() error = %v", err)
	}
	if result["summary"] != "done" {
		t.Errorf("result[summary] = %v, want done", result["summary"])
	}
}

func TestExtractDataPhrasesGoal(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 2048)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		fmt.Fprint(w, "data: {\"type\":\"COMPLETE\",\"resultJson\":{}}\n")
	}))
	defer srv.Close()

	if _, err := newTestRunner(srv.URL).ExtractData(context.Background(), "https://a.example", "product prices"); err != nil {
		t.Fatalf("ExtractData() error = %v", err)
	}
	if !strings.Contains(gotBody, "Extract the following data") {
		t.Errorf("goal not phrased as extraction: %s", gotBody)
	}
}
