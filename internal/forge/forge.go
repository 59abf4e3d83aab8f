// Package forge authors generated agent code into a per-run sandbox
// directory and provides the local, never-failing parts of the pipeline:
// autonomous planning, mechanical refinement and syntax verification.
package forge

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const productContext = `# Product Context - Generated Agent

## Golden Rules

1. Always use the synchronous Playwright API (sync_playwright)
2. Always define AgentQL queries using the GraphQL-like syntax
3. Never ask for user permission; assume full autonomy
4. Output results as JSON to both console and file
5. Include proper error handling with try/catch blocks
6. Use semantic, descriptive names in AgentQL queries
7. Never use CSS selectors or XPath - only AgentQL natural language

## Execution

Run this agent with: python <agent_filename>.py
`

// Forge writes agent files under a sandbox root
type Forge struct {
	sandboxDir string
}

// New creates a Forge rooted at sandboxDir, creating it if needed
func New(sandboxDir string) (*Forge, error) {
	if err := os.MkdirAll(sandboxDir, 0755); err != nil {
		return nil, fmt.Errorf("creating sandbox dir: %w", err)
	}
	return &Forge{sandboxDir: sandboxDir}, nil
}

// AgentDir returns the isolated directory name for a run:
// {agent_name}_{first 8 chars of the run id}
func (f *Forge) AgentDir(agentName, runID string) string {
	id := runID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s_%s", agentName, id)
}

// SandboxDir returns the sandbox root
func (f *Forge) SandboxDir() string { return f.sandboxDir }

// AgentPath resolves an agent directory under the sandbox
func (f *Forge) AgentPath(agentDir string) string {
	return filepath.Join(f.sandboxDir, agentDir)
}

// WriteProductContext writes the standing instructions file into the
// agent directory
func (f *Forge) WriteProductContext(agentDir string) error {
	dir := f.AgentPath(agentDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "productContext.md"), []byte(productContext), 0644)
}

// WriteFile writes one generated file and returns its absolute path
func (f *Forge) WriteFile(agentDir, filename, content string) (string, error) {
	dir := f.AgentPath(agentDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// VerifySyntax runs a language-appropriate static check on one file.
// Python files compile via py_compile when an interpreter is available;
// otherwise the check degrades to file existence so offline environments
// still reach a terminal state.
func (f *Forge) VerifySyntax(ctx context.Context, path string) error {
	if strings.HasSuffix(path, ".py") {
		python, err := exec.LookPath("python3")
		if err != nil {
			if python, err = exec.LookPath("python"); err != nil {
				return statFile(path)
			}
		}

		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		cmd := exec.CommandContext(ctx, python, "-m", "py_compile", path)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("syntax check failed for %s: %s", filepath.Base(path), strings.TrimSpace(string(out)))
		}
		return nil
	}

	return statFile(path)
}

func statFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("verifying %s: %w", filepath.Base(path), err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("verifying %s: file is empty", filepath.Base(path))
	}
	return nil
}

// Execute runs an authored agent script and returns its stdout. Used only
// by the best-effort run action, never by the generation pipeline.
func (f *Forge) Execute(ctx context.Context, path string) (string, error) {
	python, err := exec.LookPath("python3")
	if err != nil {
		if python, err = exec.LookPath("python"); err != nil {
			return "", fmt.Errorf("no python interpreter on PATH")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, python, path)
	cmd.Dir = filepath.Dir(path)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("agent execution failed: %w", err)
	}
	return string(out), nil
}
