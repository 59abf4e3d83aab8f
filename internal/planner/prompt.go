package planner

import (
	"fmt"

	"github.com/ngenesis/ngenesis/internal/domain"
)

// buildManifestPrompt assembles the architect prompt for plan
// decomposition. The model must answer with a single JSON object matching
// domain.BuildManifest.
func buildManifestPrompt(rc domain.RunContext) string {
	return fmt.Sprintf(`# Agent Architect

You design autonomous web agents that use a cloud web-automation REST API.

## User Request
Intent: %s
Target URL: %s
Personality: %s

## Your Task

Analyze the user's intent and generate a BUILD MANIFEST as a JSON object.
The manifest describes a Python script that calls the automation API over
HTTP (no local browser).

**API Endpoint:** POST https://mino.ai/v1/automation/run
**Headers:** X-API-Key (provided at runtime), Content-Type: application/json
**Request Body:** {"url": "https://example.com", "goal": "Extract all product names and prices"}

## Output Format

Output ONLY a valid JSON object with this exact structure:

{
  "agent_name": "descriptive_snake_case_name",
  "description": "Brief description of what this agent does",
  "files": [
    {
      "filename": "agent_name.py",
      "code_content": "complete Python script calling the automation API",
      "file_type": "python"
    }
  ],
  "agentql_queries": {
    "main_query": "the goal description for the automation API"
  },
  "icon_prompt": "A prompt for generating a futuristic icon for this agent"
}

## Code Generation Rules

1. Use the REST API via HTTP requests (requests library)
2. DO NOT use Playwright or any local browser
3. The goal should be a natural-language description of what to extract
4. Keep it MINIMAL - only extract the data the user requested
5. Output results as JSON to both console and file
6. Include proper error handling
7. Read the API key from the AGENTQL_API_KEY environment variable

Now generate the manifest for the user's request. Output ONLY the JSON, no other text.`,
		rc.UserIntent, rc.TargetURL, rc.Personality)
}

// SynthesisPrompt combines tool outputs for a final summarization pass
func SynthesisPrompt(intent string, outputs map[string]any) string {
	return fmt.Sprintf(`Summarize the combined results of the following tool runs for the task %q.
Be concise and factual; mention which tools produced usable output.

Tool outputs (JSON): %v`, intent, outputs)
}
