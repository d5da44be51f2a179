package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// PromptPair holds a system and user prompt template.
type PromptPair struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// SinglePrompt holds a single system prompt (no user template).
type SinglePrompt struct {
	System string `yaml:"system"`
}

// ExtractPrompts holds the structured-extraction prompt templates.
type ExtractPrompts struct {
	Task          PromptPair   `yaml:"task"`
	TaskChange    PromptPair   `yaml:"task_change"`
	CalendarEvent PromptPair   `yaml:"calendar_event"`
	Query         PromptPair   `yaml:"query"`
	ProfileFacts  SinglePrompt `yaml:"profile_facts"`
}

// Prompts is the top-level prompt configuration loaded from YAML.
type Prompts struct {
	Intent    PromptPair     `yaml:"intent"`
	Extract   ExtractPrompts `yaml:"extract"`
	Chat      SinglePrompt   `yaml:"chat"`
	Beautify  PromptPair     `yaml:"beautify"`
	Summarize SinglePrompt   `yaml:"summarize"`
}

// LoadPrompts reads and parses a YAML prompt configuration file.
func LoadPrompts(path string) (*Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var prompts Prompts
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompts YAML: %w", err)
	}

	if prompts.Intent.System == "" {
		return nil, fmt.Errorf("prompts file %s has no intent.system prompt", path)
	}

	return &prompts, nil
}

// RenderPrompt executes Go template interpolation on a prompt string.
// The data map provides values for placeholders like {{.Transcript}},
// {{.History}} and {{.Now}}.
func RenderPrompt(tmpl string, data map[string]interface{}) (string, error) {
	t, err := template.New("prompt").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse prompt template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt template: %w", err)
	}

	return strings.TrimSpace(buf.String()), nil
}
