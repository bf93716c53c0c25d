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

// ResolvePrompts holds the templates used while resolving a recipe.
type ResolvePrompts struct {
	Format     PromptPair `yaml:"format"`
	Substitute PromptPair `yaml:"substitute"`
	Intent     PromptPair `yaml:"intent"`
}

// Prompts is the top-level prompt configuration loaded from YAML.
type Prompts struct {
	Resolve ResolvePrompts `yaml:"resolve"`
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

	if err := prompts.Validate(); err != nil {
		return nil, err
	}

	return &prompts, nil
}

// Validate checks that every resolve template is present and parses.
func (p *Prompts) Validate() error {
	pairs := map[string]PromptPair{
		"format":     p.Resolve.Format,
		"substitute": p.Resolve.Substitute,
		"intent":     p.Resolve.Intent,
	}
	for name, pair := range pairs {
		for role, tmpl := range map[string]string{"system": pair.System, "user": pair.User} {
			if strings.TrimSpace(tmpl) == "" {
				return fmt.Errorf("prompt resolve.%s.%s is empty", name, role)
			}
			if _, err := template.New(name).Parse(tmpl); err != nil {
				return fmt.Errorf("prompt resolve.%s.%s: %w", name, role, err)
			}
		}
	}
	return nil
}

// RenderPrompt executes Go template interpolation on a prompt string.
// The data map provides values for template placeholders like {{.Content}}
// and {{.Constraints}}.
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
