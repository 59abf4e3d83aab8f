// Package fabricate generates synthetic test data for generated agents.
// It follows the async create-then-poll contract and degrades to a local
// generator when the remote service is unavailable.
package fabricate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ngenesis/ngenesis/internal/poll"
)

// Record is one synthetic data row
type Record map[string]any

// Generator produces synthetic records for an intent
type Generator interface {
	GenerateAgentTestData(ctx context.Context, intent, targetURL string) ([]Record, error)
}

const defaultBaseURL = "https://api.tonic.ai/fabricate/v1"

// Tonic is the Fabricate API client
type Tonic struct {
	apiKey      string
	baseURL     string
	client      *http.Client
	interval    time.Duration
	maxAttempts int
}

// New creates a Tonic generator
func New(apiKey string) *Tonic {
	return &Tonic{
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		client:      &http.Client{Timeout: 30 * time.Second},
		interval:    poll.Interval,
		maxAttempts: poll.MaxAttempts,
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Rows   int    `json:"rows"`
	Format string `json:"format"`
}

type taskResponse struct {
	TaskID string   `json:"task_id"`
	Status string   `json:"status"`
	Data   []Record `json:"data"`
}

// GenerateAgentTestData builds an intent-appropriate prompt and generates
// records for it. Remote failures fall back to the local generator, so the
// caller always receives rows.
func (t *Tonic) GenerateAgentTestData(ctx context.Context, intent, targetURL string) ([]Record, error) {
	prompt := promptFromIntent(intent, targetURL)

	records, err := t.generate(ctx, prompt, 5)
	if err != nil {
		log.Printf("[fabricate] API error, using fallback generator: %v", err)
		return fallbackData(prompt, 5), nil
	}
	log.Printf("[fabricate] generated %d test records", len(records))
	return records, nil
}

func (t *Tonic) generate(ctx context.Context, prompt string, rows int) ([]Record, error) {
	body, err := json.Marshal(generateRequest{Prompt: prompt, Rows: rows, Format: "json"})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("create returned status %d", resp.StatusCode)
	}

	var created taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("unparseable create response: %w", err)
	}

	var records []Record
	err = poll.Until(ctx, "fabricate", t.interval, t.maxAttempts, func(ctx context.Context) (bool, error) {
		state, err := t.pollTask(ctx, created.TaskID)
		if err != nil {
			return false, err
		}
		switch state.Status {
		case "completed":
			records = state.Data
			return true, nil
		case "failed":
			return false, fmt.Errorf("data generation failed")
		default:
			return false, nil
		}
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (t *Tonic) pollTask(ctx context.Context, taskID string) (*taskResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/tasks/"+taskID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll status %d", resp.StatusCode)
	}

	var out taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("unparseable poll response: %w", err)
	}
	return &out, nil
}

func promptFromIntent(intent, url string) string {
	lower := strings.ToLower(intent)

	switch {
	case strings.Contains(lower, "price") || strings.Contains(lower, "product"):
		return "Generate 5 realistic e-commerce product records with fields: product_name, product_price, product_rating, availability, seller_name"
	case strings.Contains(lower, "article") || strings.Contains(lower, "blog"):
		return "Generate 5 realistic blog article records with fields: article_title, author, publish_date, excerpt, read_time"
	case strings.Contains(lower, "job") || strings.Contains(lower, "career"):
		return "Generate 5 realistic job posting records with fields: job_title, company_name, location, salary_range, posted_date"
	default:
		return fmt.Sprintf("Generate 5 realistic records that would be found on %s based on this intent: %s", url, intent)
	}
}

// fallbackData produces deterministic local rows when the API is down
func fallbackData(prompt string, rows int) []Record {
	out := make([]Record, 0, rows)
	product := strings.Contains(prompt, "product") || strings.Contains(prompt, "price")

	for i := 1; i <= rows; i++ {
		if product {
			out = append(out, Record{
				"product_name":   fmt.Sprintf("Test Product %d", i),
				"product_price":  fmt.Sprintf("$%d.99", 10+i*7),
				"product_rating": "4.0 stars",
				"availability":   "In Stock",
				"test_data":      true,
			})
			continue
		}
		out = append(out, Record{
			"id":        i,
			"title":     fmt.Sprintf("Test Item %d", i),
			"value":     i * 100,
			"test_data": true,
		})
	}
	return out
}

// ValidateOutput compares scraped output against generated test records
// and reports field coverage.
func ValidateOutput(scraped Record, testData []Record) (passed bool, coverage float64, issues []string) {
	if len(testData) == 0 {
		return true, 100, nil
	}

	var missing []string
	expected := 0
	for field := range testData[0] {
		if field == "test_data" {
			continue
		}
		expected++
		if _, ok := scraped[field]; !ok {
			missing = append(missing, field)
		}
	}

	if len(missing) > 0 {
		issues = append(issues, "Missing fields: "+strings.Join(missing, ", "))
	}

	coverage = 100
	if expected > 0 {
		coverage = float64(expected-len(missing)) / float64(expected) * 100
	}
	return len(issues) == 0, coverage, issues
}
