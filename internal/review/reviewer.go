// Package review scores generated agent code with deterministic, offline
// static checks. Identical input always yields an identical score and
// issue list, so the pipeline can rely on it even with every network
// capability down.
package review

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ngenesis/ngenesis/internal/domain"
)

// Severity of a single issue
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is one finding in a reviewed file
type Issue struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Category string   `json:"category"`
}

// Result is the review of one file
type Result struct {
	Score           int               `json:"score"`
	Issues          []Issue           `json:"issues"`
	Suggestions     []string          `json:"suggestions"`
	Complexity      domain.Complexity `json:"complexity"`
	Maintainability int               `json:"maintainability"`
}

// AgentReview aggregates per-file reviews for one generated agent
type AgentReview struct {
	OverallScore int               `json:"overall_score"`
	FileReviews  map[string]Result `json:"file_reviews"`
	Summary      string            `json:"summary"`
}

var branchKeywords = regexp.MustCompile(`\b(if|for|while|and|or)\b`)

// ReviewFile scores one file. Scoring starts at 100 and subtracts fixed
// penalties; the floor is 0.
func ReviewFile(filename, code string) Result {
	var issues []Issue
	score := 100

	if strings.Contains(code, "eval(") {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Message:  "Use of eval() is a security risk",
			Category: "security",
		})
		score -= 20
	}

	if !strings.Contains(code, "try") && !strings.Contains(code, "except") {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Message:  "Missing error handling",
			Category: "style",
		})
		score -= 10
	}

	if len(code) > 5000 {
		issues = append(issues, Issue{
			Severity: SeverityInfo,
			Message:  "File is very long, consider breaking into modules",
			Category: "style",
		})
		score -= 5
	}

	if strings.HasSuffix(filename, ".py") && strings.Contains(code, "agentql") {
		if !strings.Contains(code, "sync_playwright") {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Message:  "Should use sync_playwright for AgentQL",
				Category: "style",
			})
			score -= 10
		}
		if !strings.Contains(code, "wait_for_load_state") {
			issues = append(issues, Issue{
				Severity: SeverityInfo,
				Message:  "Consider adding wait_for_load_state for reliability",
				Category: "performance",
			})
			score -= 5
		}
	}

	if score < 0 {
		score = 0
	}

	return Result{
		Score:           score,
		Issues:          issues,
		Suggestions:     suggestions(issues),
		Complexity:      classifyComplexity(code),
		Maintainability: score,
	}
}

// ReviewAgent reviews every file and averages the scores
func ReviewAgent(files []domain.FileDefinition) AgentReview {
	fileReviews := make(map[string]Result, len(files))
	total := 0

	for _, f := range files {
		res := ReviewFile(f.Filename, f.CodeContent)
		fileReviews[f.Filename] = res
		total += res.Score
	}

	overall := 0
	if len(files) > 0 {
		overall = (total + len(files)/2) / len(files)
	}

	return AgentReview{
		OverallScore: overall,
		FileReviews:  fileReviews,
		Summary:      summarize(overall),
	}
}

// Suggestions returns the flattened suggestion list across all files,
// which drives the refinement pass.
func (r AgentReview) AllSuggestions() []string {
	var out []string
	for _, res := range r.FileReviews {
		out = append(out, res.Suggestions...)
		for _, issue := range res.Issues {
			out = append(out, issue.Message)
		}
	}
	return out
}

func classifyComplexity(code string) domain.Complexity {
	lines := strings.Count(code, "\n") + 1
	indicators := len(branchKeywords.FindAllString(code, -1))

	switch {
	case lines > 300 || indicators > 20:
		return domain.ComplexityHigh
	case lines > 150 || indicators > 10:
		return domain.ComplexityMedium
	default:
		return domain.ComplexityLow
	}
}

func suggestions(issues []Issue) []string {
	var out []string

	errs, warns := 0, 0
	security := false
	for _, i := range issues {
		switch i.Severity {
		case SeverityError:
			errs++
		case SeverityWarning:
			warns++
		}
		if i.Category == "security" {
			security = true
		}
	}

	if errs > 0 {
		out = append(out, fmt.Sprintf("Fix %d critical error(s) before deployment", errs))
	}
	if warns > 0 {
		out = append(out, fmt.Sprintf("Address %d warning(s) to improve code quality", warns))
	}
	if security {
		out = append(out, "Review security issues immediately")
	}
	if len(issues) == 0 {
		out = append(out, "Code looks good! Ready for deployment")
	}
	return out
}

func summarize(score int) string {
	switch {
	case score >= 90:
		return "Excellent code quality. Agent is production-ready."
	case score >= 75:
		return "Good code quality. Minor improvements recommended."
	case score >= 60:
		return "Acceptable code quality. Several improvements needed."
	default:
		return "Code quality needs significant improvement before deployment."
	}
}
