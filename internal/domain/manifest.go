package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// AgentRequest is the body of a genesis submission
type AgentRequest struct {
	UserIntent   string      `json:"user_intent"`
	TargetURL    string      `json:"target_url"`
	AgentName    string      `json:"agent_name,omitempty"`
	TemplateID   string      `json:"template_id,omitempty"`
	OutputFormat string      `json:"output_format,omitempty"`
	Personality  Personality `json:"personality,omitempty"`
}

// Validate checks the mandatory fields before any run is created
func (r *AgentRequest) Validate() error {
	if strings.TrimSpace(r.UserIntent) == "" {
		return fmt.Errorf("missing required field: user_intent")
	}
	return nil
}

// FileDefinition describes one file the planner wants authored
type FileDefinition struct {
	Filename    string `json:"filename"`
	CodeContent string `json:"code_content"`
	FileType    string `json:"file_type"`
}

// BuildManifest is the structured build description produced by plan
// decomposition: the agent's name, its files and an icon prompt.
type BuildManifest struct {
	AgentName   string            `json:"agent_name"`
	Description string            `json:"description"`
	Files       []FileDefinition  `json:"files"`
	Queries     map[string]string `json:"agentql_queries"`
	IconPrompt  string            `json:"icon_prompt"`
}

// Validate rejects manifests that cannot drive the authoring stage
func (m *BuildManifest) Validate() error {
	if m.AgentName == "" {
		return fmt.Errorf("manifest has no agent_name")
	}
	if len(m.Files) == 0 {
		return fmt.Errorf("manifest has no files")
	}
	for _, f := range m.Files {
		if f.Filename == "" {
			return fmt.Errorf("manifest file has no filename")
		}
	}
	return nil
}

// LanguageForFile infers a display language from a file extension
func LanguageForFile(filename string) string {
	switch filepath.Ext(filename) {
	case ".py":
		return "python"
	case ".js":
		return "javascript"
	case ".ts":
		return "typescript"
	case ".json":
		return "json"
	case ".md":
		return "markdown"
	default:
		return "text"
	}
}
