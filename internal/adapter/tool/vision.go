package tool

import (
	"context"
	"fmt"
	"strings"

	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"
)

const (
	checkPassed = "Ok"
	checkFailed = "Check failed. This is not true."
)

type CheckTool struct {
	surface  output.ActionSurface
	reasoner output.ReasoningPort
	logger   output.LoggerPort
}

func NewCheckTool(surface output.ActionSurface, reasoner output.ReasoningPort, logger output.LoggerPort) *CheckTool {
	return &CheckTool{surface: surface, reasoner: reasoner, logger: logger}
}

func (t *CheckTool) Name() entity.ToolName { return entity.ToolCheck }
func (t *CheckTool) Description() string {
	return "Verifies if a user-specified check is satisfied in the current page screenshot. Returns 'Ok' if so."
}
func (t *CheckTool) Constraint() string {
	return "Only use when user use one of: confirm, validate, check, assert, ensure, verify."
}
func (t *CheckTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{})
}

func (t *CheckTool) Execute(ctx context.Context, _ string, env *output.ToolEnv) (string, error) {
	shot, err := t.surface.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to complete check: %w", err)
	}

	result, err := t.reasoner.Verify(ctx, env.Task(), shot)
	if err != nil {
		return "", fmt.Errorf("failed to complete check: %w", err)
	}
	if result.Explanation != "" {
		env.Notifier.Debug(result.Explanation)
	}

	if result.Passed {
		return checkPassed, nil
	}
	t.logger.Info("Check failed", "requirement", env.Task(), "explanation", result.Explanation)
	return checkFailed, nil
}

type DescribeTool struct {
	surface  output.ActionSurface
	reasoner output.ReasoningPort
}

func NewDescribeTool(surface output.ActionSurface, reasoner output.ReasoningPort) *DescribeTool {
	return &DescribeTool{surface: surface, reasoner: reasoner}
}

func (t *DescribeTool) Name() entity.ToolName { return entity.ToolDescribe }
func (t *DescribeTool) Description() string {
	return "Describes what's on the page and answer user question if needed."
}
func (t *DescribeTool) Constraint() string { return "" }
func (t *DescribeTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"userMessage": prop("string", "The last user message"),
	}, "userMessage")
}

func (t *DescribeTool) Execute(ctx context.Context, args string, env *output.ToolEnv) (string, error) {
	var input struct {
		UserMessage string `json:"userMessage"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	question := strings.TrimSpace(input.UserMessage)
	if question == "" {
		question = env.Task()
	}

	shot, err := t.surface.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to describe screenshot: %w", err)
	}
	answer, err := t.reasoner.Describe(ctx, question, shot)
	if err != nil {
		return "", fmt.Errorf("failed to describe screenshot: %w", err)
	}
	return answer, nil
}

type FindUIElementsTool struct {
	surface  output.ActionSurface
	reasoner output.ReasoningPort
	logger   output.LoggerPort
}

func NewFindUIElementsTool(surface output.ActionSurface, reasoner output.ReasoningPort, logger output.LoggerPort) *FindUIElementsTool {
	return &FindUIElementsTool{surface: surface, reasoner: reasoner, logger: logger}
}

func (t *FindUIElementsTool) Name() entity.ToolName { return entity.ToolFindUIElements }
func (t *FindUIElementsTool) Description() string {
	return "Finds UI element coordinates from the page, describes and click elements if requested."
}
func (t *FindUIElementsTool) Constraint() string { return "" }
func (t *FindUIElementsTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{})
}

// Execute returns the model's annotations verbatim and clicks the ones the
// user asked for.
func (t *FindUIElementsTool) Execute(ctx context.Context, _ string, env *output.ToolEnv) (string, error) {
	shot, err := t.surface.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to analyze screenshot: %w", err)
	}

	elements, raw, err := t.reasoner.FindElements(ctx, env.Messages, shot)
	if err != nil {
		return "", fmt.Errorf("failed to analyze screenshot: %w", err)
	}

	for _, el := range elements {
		if !el.UserRequestedToClick {
			continue
		}
		p := entity.Point{X: el.X, Y: el.Y}
		if err := t.surface.Click(ctx, p); err != nil {
			return "", fmt.Errorf("click %s (%s): %w", p, el.Description, err)
		}
		t.logger.Debug("Clicked requested element", "description", el.Description, "at", p.String())
		if _, err := env.Percepts.Broadcast(ctx); err != nil {
			t.logger.Warn("Percept broadcast failed", "error", err)
		}
	}
	return raw, nil
}
