package entity

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type ScriptParameter struct {
	Name          string `yaml:"name" json:"name"`
	Description   string `yaml:"description,omitempty" json:"description,omitempty"`
	PossibleValue string `yaml:"possible_value,omitempty" json:"possible_value,omitempty"`
}

type ScriptStep struct {
	Command        string `yaml:"command" json:"command"`
	PossibleAnswer string `yaml:"possible_answer,omitempty" json:"possible_answer,omitempty"`
}

// Script is a stored, replayable command sequence.
type Script struct {
	Title            string            `yaml:"title" json:"title"`
	Description      string            `yaml:"description,omitempty" json:"description,omitempty"`
	InputParameters  []ScriptParameter `yaml:"inputParameters,omitempty" json:"inputParameters,omitempty"`
	OutputParameters []ScriptParameter `yaml:"outputParameters,omitempty" json:"outputParameters,omitempty"`
	Steps            []ScriptStep      `yaml:"steps" json:"steps"`
}

// ParseScript accepts either a YAML document or plain text with one command per line.
func ParseScript(data []byte) (*Script, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("empty script")
	}

	var doc Script
	if err := yaml.Unmarshal(data, &doc); err == nil && len(doc.Steps) > 0 {
		return &doc, nil
	}

	script := &Script{}
	for _, line := range SplitCommands(text) {
		script.Steps = append(script.Steps, ScriptStep{Command: line})
	}
	return script, nil
}

// Commands returns the step commands in order.
func (s *Script) Commands() []string {
	out := make([]string, 0, len(s.Steps))
	for _, st := range s.Steps {
		if c := strings.TrimSpace(st.Command); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// SplitCommands splits a multi-line submission into non-empty commands.
func SplitCommands(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// ScriptMarker is the transcript entry recorded when a script is submitted.
func ScriptMarker(text string) string {
	return ScriptMarkerPrefix + " execution:\n\n```\n" + text + "\n```"
}
