// Package imagegen wraps the Freepik Mystic image API behind the async
// create-then-poll adapter contract. Icon generation is an optional
// pipeline stage: failures degrade to a placeholder, never abort a run.
package imagegen

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
	"github.com/ngenesis/ngenesis/internal/poll"
)

// PlaceholderIconURL is the documented fallback when generation fails
const PlaceholderIconURL = "https://via.placeholder.com/512/4285f4/ffffff?text=Agent"

// Generator produces an icon URL from a prompt
type Generator interface {
	GenerateIcon(ctx context.Context, prompt string) (string, error)
}

const defaultBaseURL = "https://api.freepik.com/v1/ai"

// Freepik is the Mystic API client
type Freepik struct {
	apiKey      string
	baseURL     string
	styleRef    string
	client      *http.Client
	interval    time.Duration
	maxAttempts int
}

// New creates a Freepik generator. styleRef is optional.
func New(apiKey, styleRef string) *Freepik {
	return &Freepik{
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		styleRef:    styleRef,
		client:      &http.Client{Timeout: 30 * time.Second},
		interval:    poll.Interval,
		maxAttempts: poll.MaxAttempts,
	}
}

type mysticRequest struct {
	Prompt         string `json:"prompt"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
	Resolution     string `json:"resolution,omitempty"`
	Model          string `json:"model,omitempty"`
	StyleReference string `json:"style_reference,omitempty"`
}

type mysticResponse struct {
	Data struct {
		TaskID    string   `json:"task_id"`
		Status    string   `json:"status"`
		Generated []string `json:"generated"`
	} `json:"data"`
}

// GenerateIcon creates a generation task and polls it to completion,
// returning the first generated image URL.
func (f *Freepik) GenerateIcon(ctx context.Context, prompt string) (string, error) {
	taskID, err := f.createTask(ctx, prompt)
	if err != nil {
		return "", err
	}
	log.Printf("[freepik] task created: %s", taskID)

	var imageURL string
	err = poll.Until(ctx, "freepik", f.interval, f.maxAttempts, func(ctx context.Context) (bool, error) {
		state, err := f.pollTask(ctx, taskID)
		if err != nil {
			return false, err
		}

		switch state.Data.Status {
		case "COMPLETED":
			if len(state.Data.Generated) == 0 {
				return false, domain.NewAdapterError("freepik", domain.FailureMalformed,
					"completed task has no images", nil)
			}
			imageURL = state.Data.Generated[0]
			return true, nil
		case "FAILED":
			return false, domain.NewAdapterError("freepik", domain.FailureService,
				"image generation failed", nil)
		default:
			return false, nil
		}
	})
	if err != nil {
		return "", err
	}

	log.Printf("[freepik] icon generated: %s", imageURL)
	return imageURL, nil
}

func (f *Freepik) createTask(ctx context.Context, prompt string) (string, error) {
	reqBody := mysticRequest{
		Prompt:         prompt,
		AspectRatio:    "square_1_1",
		Resolution:     "2k",
		Model:          "realism",
		StyleReference: f.styleRef,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/mystic", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-freepik-api-key", f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", domain.NewAdapterError("freepik", domain.FailureService, "create request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError("freepik", resp)
	}

	var out mysticResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.NewAdapterError("freepik", domain.FailureMalformed, "unparseable create response", err)
	}
	if out.Data.TaskID == "" {
		return "", domain.NewAdapterError("freepik", domain.FailureMalformed, "no task_id in response", nil)
	}
	return out.Data.TaskID, nil
}

func (f *Freepik) pollTask(ctx context.Context, taskID string) (*mysticResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/mystic/%s", f.baseURL, taskID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-freepik-api-key", f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		// transient: retried by the poll loop
		return nil, fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll status %d", resp.StatusCode)
	}

	var out mysticResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("unparseable poll response: %w", err)
	}
	return &out, nil
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
