package forge

import (
	"regexp"
	"strings"
)

// Refine applies mechanical transformations to generated source driven by
// review suggestions. Each transformation checks for its own marker before
// inserting, so reapplying Refine to already-compliant code is a no-op.
func Refine(code string, suggestions []string) string {
	refined := code
	for _, s := range suggestions {
		lower := strings.ToLower(s)
		if strings.Contains(lower, "error handling") {
			refined = addErrorHandling(refined)
		}
		if strings.Contains(lower, "wait_for_load_state") {
			refined = addWaitForLoad(refined)
		}
		if strings.Contains(lower, "logging") {
			refined = addLogging(refined)
		}
	}
	return refined
}

// addErrorHandling wraps the run_agent body in try/except
func addErrorHandling(code string) string {
	if strings.Contains(code, "try:") {
		return code
	}

	lines := strings.Split(code, "\n")
	defIndex := -1
	for i, l := range lines {
		if strings.Contains(l, "def run_agent():") {
			defIndex = i
			break
		}
	}
	if defIndex == -1 {
		return code
	}

	// Re-indent the function body under a try block
	end := len(lines)
	for i := defIndex + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed != "" && !strings.HasPrefix(lines[i], " ") && !strings.HasPrefix(lines[i], "\t") {
			end = i
			break
		}
	}

	var out []string
	out = append(out, lines[:defIndex+1]...)
	out = append(out, "    try:")
	for _, body := range lines[defIndex+1 : end] {
		if strings.TrimSpace(body) == "" {
			out = append(out, body)
			continue
		}
		out = append(out, "    "+body)
	}
	out = append(out,
		"    except Exception as e:",
		"        print(f\"[Error] Agent failed: {str(e)}\")",
		"        raise",
	)
	out = append(out, lines[end:]...)
	return strings.Join(out, "\n")
}

var gotoPattern = regexp.MustCompile(`page\.goto\((.*?)\)`)

// addWaitForLoad inserts a load-completion wait after navigation
func addWaitForLoad(code string) string {
	if strings.Contains(code, "wait_for_load_state") {
		return code
	}
	return gotoPattern.ReplaceAllString(code, "page.goto($1)\n        page.wait_for_load_state('networkidle')")
}

// addLogging prefixes print output with timestamps
func addLogging(code string) string {
	if strings.Contains(code, "datetime.now()") {
		return code
	}

	replaced := strings.ReplaceAll(code, "print(",
		"print(f\"[{datetime.now().isoformat()}] \", end=\"\")\n        print(")
	if replaced != code && !strings.Contains(replaced, "from datetime import datetime") {
		replaced = "from datetime import datetime\n" + replaced
	}
	return replaced
}
