// Package orchconfig loads the orchestrator's on-disk configuration: runs
// root, executor tool binary, renderer hint for the evaluator's retry
// prompt, planner system-prompt search paths, and autobuild defaults.
// Generalizes the teacher's JSON internal/config.Load to YAML, since the
// orchestrator's settings are meant to be hand-edited by whoever runs the
// CLI rather than generated by another program.
package orchconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the orchestrator's full on-disk configuration. Every field has
// a sane default via Default, so a missing config file is not an error.
type Config struct {
	RunsRoot          string   `yaml:"runs_root"`
	ExecutorBinary    string   `yaml:"executor_binary"`
	RendererHint      string   `yaml:"renderer_hint"`
	SystemPromptPaths []string `yaml:"system_prompt_paths"`
	MaxIterations     int      `yaml:"max_iterations"`
	PlannerEndpoint   string   `yaml:"planner_endpoint"`
}

// Default returns the configuration used when no config file is present or
// a field is left unset in one that is.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		RunsRoot:          filepath.Join(home, ".orchestrator", "runs"),
		ExecutorBinary:    "codex",
		RendererHint:      "src/renderer/panel.tsx",
		SystemPromptPaths: nil, // filled by planner.DefaultSystemPromptPaths() when empty
		MaxIterations:     2,
		PlannerEndpoint:   "https://api.openai.com/v1/chat/completions",
	}
}

// Load reads and merges a YAML config file at path over Default. An empty
// path or a missing file returns Default with no error — configuration is
// optional, not required.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// EnsureRunsRoot creates the configured runs root directory if it doesn't
// exist and returns its path, mirroring the request surface's
// getRunsRoot().
func (c Config) EnsureRunsRoot() (string, error) {
	if err := os.MkdirAll(c.RunsRoot, 0o755); err != nil {
		return "", fmt.Errorf("create runs root: %w", err)
	}
	return c.RunsRoot, nil
}
