package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"script-agent/internal/application/port/output"
)

type ToolRule struct {
	Name       string
	Constraint string
}

type CoordinatorPromptData struct {
	Base  string
	Rules []ToolRule
}

// GenerateCoordinatorPrompt merges every tool's usage constraint into the
// coordinator instruction, in registration order.
func GenerateCoordinatorPrompt(base string, tools []output.ToolPort) (string, error) {
	data := CoordinatorPromptData{Base: base}
	for _, tool := range tools {
		if c := strings.TrimSpace(tool.Constraint()); c != "" {
			data.Rules = append(data.Rules, ToolRule{Name: tool.Name().String(), Constraint: c})
		}
	}

	out, err := render("coordinator", CoordinatorPrompt, data)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

type PlanPromptData struct {
	Task   string
	Width  int
	Height int
}

func RenderPlanPrompt(task string, width, height int) (string, error) {
	return render("plan", PlanPrompt, PlanPromptData{Task: task, Width: width, Height: height})
}

func RenderCheckPrompt(requirement string) (string, error) {
	return render("check", CheckPrompt, struct{ Requirement string }{requirement})
}

func RenderDescribePrompt(question string) (string, error) {
	return render("describe", DescribePrompt, struct{ Question string }{question})
}

func RenderFindElementsPrompt(userMessages string) (string, error) {
	return render("find", FindElementsPrompt, struct{ UserMessages string }{userMessages})
}

func render(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse %s prompt: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}

	return buf.String(), nil
}
