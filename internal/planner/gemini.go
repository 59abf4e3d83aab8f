// Package planner turns a user intent into a structured build manifest via
// an LLM. This is the only mandatory network capability of the pipeline.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ngenesis/ngenesis/internal/domain"
	"github.com/ngenesis/ngenesis/internal/ratelimit"
)

// Planner decomposes an intent into a build manifest
type Planner interface {
	GenerateManifest(ctx context.Context, rc domain.RunContext) (*domain.BuildManifest, error)
}

// Synthesizer produces free-text synthesis over tool outputs, used by the
// orchestrate action outside the generation pipeline.
type Synthesizer interface {
	Synthesize(ctx context.Context, prompt string) (string, error)
}

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini calls the Gemini REST API. All calls pass through a process-wide
// sliding-window rate limiter shared across concurrent runs.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	limiter *ratelimit.Window
}

// NewGemini creates a Gemini planner
func NewGemini(apiKey string, limiter *ratelimit.Window) *Gemini {
	return &Gemini{
		apiKey:  apiKey,
		model:   "gemini-2.5-flash",
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
		limiter: limiter,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GenerateManifest asks the model for a build manifest and extracts the
// JSON payload from its response. A response with no parseable payload is
// a malformed-response failure, which the engine treats as fatal.
func (g *Gemini) GenerateManifest(ctx context.Context, rc domain.RunContext) (*domain.BuildManifest, error) {
	text, err := g.generate(ctx, buildManifestPrompt(rc))
	if err != nil {
		return nil, err
	}

	payload := extractJSON(text)
	if payload == "" {
		return nil, domain.NewAdapterError("gemini", domain.FailureMalformed,
			"no JSON payload in decomposition response", nil)
	}

	var manifest domain.BuildManifest
	if err := json.Unmarshal([]byte(payload), &manifest); err != nil {
		return nil, domain.NewAdapterError("gemini", domain.FailureMalformed,
			"decomposition payload is not valid JSON", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, domain.NewAdapterError("gemini", domain.FailureMalformed, err.Error(), nil)
	}

	log.Printf("[gemini] build manifest generated: %s", manifest.AgentName)
	return &manifest, nil
}

// Synthesize runs a free-form prompt and returns the raw text
func (g *Gemini) Synthesize(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, prompt)
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", domain.NewAdapterError("gemini", domain.FailureTimeout,
				"rate limiter admission cancelled", err)
		}
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", domain.NewAdapterError("gemini", domain.FailureService, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError("gemini", resp)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.NewAdapterError("gemini", domain.FailureMalformed, "unparseable response body", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", domain.NewAdapterError("gemini", domain.FailureMalformed, "response has no candidates", nil)
	}

	return out.Candidates[0].Content.Parts[0].Text, nil
}

// extractJSON returns the outermost {...} block of a text, or ""
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return text[start : end+1]
}

func statusError(adapter string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	msg := fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.NewAdapterError(adapter, domain.FailureAuth, msg, nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.NewAdapterError(adapter, domain.FailureQuota, msg, nil)
	default:
		return domain.NewAdapterError(adapter, domain.FailureService, msg, nil)
	}
}
