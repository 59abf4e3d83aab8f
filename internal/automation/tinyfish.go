// Package automation runs cloud web-automation tasks via the TinyFish/Mino
// SSE endpoint and extracts the terminal event's payload from the stream.
package automation

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ngenesis/ngenesis/internal/domain"
)

// Runner executes one automation goal against a URL
type Runner interface {
	Run(ctx context.Context, url, goal string) (map[string]any, error)
}

const (
	defaultBaseURL = "https://mino.ai/v1/automation"
	requestTimeout = 60 * time.Second
)

// TinyFish is the Mino API client
type TinyFish struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New creates a TinyFish runner
func New(apiKey string) *TinyFish {
	return &TinyFish{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

type runRequest struct {
	URL  string `json:"url"`
	Goal string `json:"goal"`
}

// Run posts the goal to the SSE endpoint and scans the event stream for
// the terminal COMPLETE event. A stream that ends without a terminal
// event is a malformed-response failure.
func (t *TinyFish) Run(ctx context.Context, url, goal string) (map[string]any, error) {
	log.Printf("[tinyfish] running automation on %s", url)

	body, err := json.Marshal(runRequest{URL: url, Goal: goal})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/run-sse", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			return nil, domain.NewAdapterError("tinyfish", domain.FailureTimeout,
				"automation did not answer within 60s", err)
		}
		return nil, domain.NewAdapterError("tinyfish", domain.FailureService, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, domain.NewAdapterError("tinyfish", domain.FailureAuth, "authentication rejected", nil)
		case http.StatusTooManyRequests:
			return nil, domain.NewAdapterError("tinyfish", domain.FailureQuota, "quota exceeded", nil)
		default:
			return nil, domain.NewAdapterError("tinyfish", domain.FailureService,
				"automation returned "+resp.Status, nil)
		}
	}

	result, err := parseStream(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.NewAdapterError("tinyfish", domain.FailureTimeout,
				"stream cut off before completion", err)
		}
		return nil, err
	}
	return result, nil
}

// parseStream scans SSE "data:" lines for the terminal COMPLETE event and
// returns its resultJson payload.
func parseStream(r io.Reader) (map[string]any, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var final map[string]any
	events := 0

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var event map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			continue // non-JSON keepalive lines
		}
		events++

		typ, _ := event["type"].(string)
		status, _ := event["status"].(string)

		if typ == "COMPLETE" || status == "COMPLETED" {
			if rj, ok := event["resultJson"].(map[string]any); ok {
				final = rj
			} else if res, ok := event["result"].(map[string]any); ok {
				final = res
			} else {
				final = event
			}
		} else if rj, ok := event["resultJson"].(map[string]any); ok {
			final = rj
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if final == nil {
		log.Printf("[tinyfish] no terminal event in stream (%d events seen)", events)
		return nil, domain.NewAdapterError("tinyfish", domain.FailureMalformed,
			"no COMPLETE event in SSE stream", nil)
	}

	log.Printf("[tinyfish] automation completed")
	return final, nil
}

// ExtractData is a convenience wrapper that phrases a data description as
// an extraction goal.
func (t *TinyFish) ExtractData(ctx context.Context, url, description string) (map[string]any, error) {
	return t.Run(ctx, url, "Extract the following data and respond in JSON format: "+description)
}
