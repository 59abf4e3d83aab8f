package forge

import (
	"fmt"
	"strings"

	"github.com/ngenesis/ngenesis/internal/domain"
)

// BuildPlan is the autonomous pre-decomposition plan for a run
type BuildPlan struct {
	Steps        []string          `json:"steps"`
	Architecture string            `json:"architecture"`
	Complexity   domain.Complexity `json:"estimated_complexity"`
}

// Plan derives an execution plan from the raw intent. Purely heuristic and
// local; it cannot fail.
func Plan(intent, targetURL string) BuildPlan {
	lower := strings.ToLower(intent)

	var steps []string
	complexity := domain.ComplexityLow

	steps = append(steps, fmt.Sprintf("Navigate to %s and wait for page load", targetURL))

	if strings.Contains(lower, "track") || strings.Contains(lower, "monitor") {
		steps = append(steps,
			"Set up continuous monitoring",
			"Define extraction queries for target data",
			"Implement change detection logic",
		)
		complexity = domain.ComplexityMedium
	} else {
		steps = append(steps,
			"Define extraction queries for target data",
			"Extract and structure data",
		)
	}

	steps = append(steps,
		"Generate synthetic test data",
		"Validate extraction against test data",
		"Run static code review",
		"Fix any identified issues",
	)

	if len(steps) > 7 {
		complexity = domain.ComplexityHigh
	}

	return BuildPlan{
		Steps:        steps,
		Architecture: architecture(lower),
		Complexity:   complexity,
	}
}

func architecture(lowerIntent string) string {
	switch {
	case strings.Contains(lowerIntent, "monitor") || strings.Contains(lowerIntent, "track"):
		return "Persistent Monitoring Agent - continuous observation via scouts"
	case strings.Contains(lowerIntent, "scrape") || strings.Contains(lowerIntent, "extract"):
		return "Data Extraction Agent - one-time scraping run"
	case strings.Contains(lowerIntent, "test") || strings.Contains(lowerIntent, "validate"):
		return "Testing Agent - validates functionality with synthetic data"
	default:
		return "General Purpose Agent - flexible task execution"
	}
}
