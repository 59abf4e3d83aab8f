// Package watch manages persistent change-monitoring tasks ("scouts") via
// the Yutori API, an optional pipeline capability.
package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ngenesis/ngenesis/internal/domain"
)

// Scout describes one monitoring task
type Scout struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	Query     string `json:"query,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Monitor is the change-monitoring capability
type Monitor interface {
	CreateScout(ctx context.Context, query, interval string) (*Scout, error)
	ListScouts(ctx context.Context) ([]Scout, error)
	StopScout(ctx context.Context, taskID string) error
}

const defaultBaseURL = "https://api.yutori.com/v1"

// Yutori is the scouting API client
type Yutori struct {
	apiKey     string
	baseURL    string
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

// New creates a Yutori monitor. webhookURL is optional.
func New(apiKey, webhookURL string) *Yutori {
	return &Yutori{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

type createScoutRequest struct {
	Query          string `json:"query"`
	StartTimestamp int64  `json:"start_timestamp"`
	OutputInterval int    `json:"output_interval"`
	SkipEmail      bool   `json:"skip_email"`
	WebhookURL     string `json:"webhook_url,omitempty"`
}

// CreateScout registers a persistent monitoring task
func (y *Yutori) CreateScout(ctx context.Context, query, interval string) (*Scout, error) {
	reqBody := createScoutRequest{
		Query:          query,
		StartTimestamp: y.now().Unix(),
		OutputInterval: ParseInterval(interval),
		SkipEmail:      true,
	}
	if strings.HasPrefix(y.webhookURL, "http") {
		reqBody.WebhookURL = y.webhookURL
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.baseURL+"/scouting/tasks", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", y.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, domain.NewAdapterError("yutori", domain.FailureService, "create request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, statusError("yutori", resp)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, domain.NewAdapterError("yutori", domain.FailureMalformed, "unparseable create response", err)
	}

	taskID := extractTaskID(raw)
	if taskID == "" {
		return nil, domain.NewAdapterError("yutori", domain.FailureMalformed, "no task id in response", nil)
	}

	status, _ := raw["status"].(string)
	if status == "" {
		status = "active"
	}

	log.Printf("[yutori] scout created: %s", taskID)
	return &Scout{
		TaskID:    taskID,
		Status:    status,
		Query:     query,
		CreatedAt: y.now().UTC().Format(time.RFC3339),
	}, nil
}

// ListScouts returns all active scouts
func (y *Yutori) ListScouts(ctx context.Context) ([]Scout, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+"/scouting/tasks", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", y.apiKey)

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, domain.NewAdapterError("yutori", domain.FailureService, "list request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("yutori", resp)
	}

	var out struct {
		Tasks []Scout `json:"tasks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.NewAdapterError("yutori", domain.FailureMalformed, "unparseable list response", err)
	}
	return out.Tasks, nil
}

// StopScout terminates a monitoring task
func (y *Yutori) StopScout(ctx context.Context, taskID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, y.baseURL+"/scouting/tasks/"+taskID, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", y.apiKey)

	resp, err := y.client.Do(req)
	if err != nil {
		return domain.NewAdapterError("yutori", domain.FailureService, "stop request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return statusError("yutori", resp)
	}

	log.Printf("[yutori] scout stopped: %s", taskID)
	return nil
}

// extractTaskID tolerates the id appearing under several keys
func extractTaskID(raw map[string]any) string {
	for _, key := range []string{"task_id", "id", "taskId"} {
		if v, ok := raw[key].(string); ok && v != "" {
			return v
		}
	}
	if task, ok := raw["task"].(map[string]any); ok {
		if v, ok := task["id"].(string); ok {
			return v
		}
	}
	return ""
}

// MonitoringQuery enriches a user intent into a scout query
func MonitoringQuery(intent, targetURL string) string {
	lower := strings.ToLower(intent)

	query := intent
	switch {
	case strings.Contains(lower, "price"):
		query += " - Monitor price changes and notify on significant drops"
	case strings.Contains(lower, "stock") || strings.Contains(lower, "availability"):
		query += " - Track availability and notify when back in stock"
	case strings.Contains(lower, "content") || strings.Contains(lower, "article"):
		query += " - Monitor for new content updates and additions"
	default:
		query += " - Monitor for any significant changes"
	}

	return fmt.Sprintf("%s on %s", query, targetURL)
}

var intervalPattern = regexp.MustCompile(`^(\d+)(m|h|d)$`)

// ParseInterval converts "30m"/"1h"/"1d" to seconds. Minutes are clamped
// to a 30-minute floor; unparseable values default to one hour.
func ParseInterval(interval string) int {
	m := intervalPattern.FindStringSubmatch(interval)
	if m == nil {
		return 3600
	}

	val, _ := strconv.Atoi(m[1])
	switch m[2] {
	case "m":
		secs := val * 60
		if secs < 1800 {
			return 1800
		}
		return secs
	case "h":
		return val * 3600
	case "d":
		return val * 86400
	}
	return 3600
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
