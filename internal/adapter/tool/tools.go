package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"
)

// decodeArgs accepts the empty string some models send for parameterless calls.
func decodeArgs(args string, v interface{}) error {
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	if err := json.Unmarshal([]byte(args), v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type VisitURLTool struct {
	surface output.ActionSurface
	settle  time.Duration
}

func NewVisitURLTool(surface output.ActionSurface, settle time.Duration) *VisitURLTool {
	return &VisitURLTool{surface: surface, settle: settle}
}

func (t *VisitURLTool) Name() entity.ToolName { return entity.ToolVisitURL }
func (t *VisitURLTool) Description() string   { return "Visit a specific URL" }
func (t *VisitURLTool) Constraint() string    { return "" }
func (t *VisitURLTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"url": prop("string", "The URL to visit"),
	}, "url")
}

func (t *VisitURLTool) Execute(ctx context.Context, args string, env *output.ToolEnv) (string, error) {
	var input struct {
		URL string `json:"url"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	if input.URL == "" {
		return "", fmt.Errorf("url is required")
	}

	if err := t.surface.Navigate(ctx, input.URL); err != nil {
		return "", err
	}
	if err := t.surface.Wait(ctx, t.settle); err != nil {
		return "", err
	}
	if _, err := env.Percepts.Broadcast(ctx); err != nil {
		return "", err
	}
	return "Visited " + input.URL, nil
}

type ResetBrowserTool struct {
	surface output.ActionSurface
}

func NewResetBrowserTool(surface output.ActionSurface) *ResetBrowserTool {
	return &ResetBrowserTool{surface: surface}
}

func (t *ResetBrowserTool) Name() entity.ToolName { return entity.ToolResetBrowser }
func (t *ResetBrowserTool) Description() string   { return "Reset browser to initial state." }
func (t *ResetBrowserTool) Constraint() string    { return "" }
func (t *ResetBrowserTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{})
}

func (t *ResetBrowserTool) Execute(ctx context.Context, _ string, _ *output.ToolEnv) (string, error) {
	if err := t.surface.Reset(ctx); err != nil {
		return "", err
	}
	return "Browser state was reset.", nil
}

type EnterTextTool struct {
	surface output.ActionSurface
}

func NewEnterTextTool(surface output.ActionSurface) *EnterTextTool {
	return &EnterTextTool{surface: surface}
}

func (t *EnterTextTool) Name() entity.ToolName { return entity.ToolEnterText }
func (t *EnterTextTool) Description() string   { return "Simulate typing text" }
func (t *EnterTextTool) Constraint() string {
	return "Detect the {{input_parameter}} pattern and treat it as a literal string, not a variable for interpolation or further parsing. Skip everything that comes after the comment // in user input."
}
func (t *EnterTextTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"text": prop("string", "The text to type"),
	}, "text")
}

// Execute resolves {{name}} placeholders itself; the model is told to pass them through.
func (t *EnterTextTool) Execute(ctx context.Context, args string, env *output.ToolEnv) (string, error) {
	var input struct {
		Text string `json:"text"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}

	if err := t.surface.TypeText(ctx, env.Script.Substitute(input.Text)); err != nil {
		return "", err
	}
	return "Successfully entered text.", nil
}

type PressKeyTool struct {
	surface output.ActionSurface
}

func NewPressKeyTool(surface output.ActionSurface) *PressKeyTool {
	return &PressKeyTool{surface: surface}
}

func (t *PressKeyTool) Name() entity.ToolName { return entity.ToolPressKey }
func (t *PressKeyTool) Description() string {
	return "Simulate pressing a key on the currently focused element (e.g. Enter, Tab, Escape, etc.)"
}
func (t *PressKeyTool) Constraint() string { return "" }
func (t *PressKeyTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"key": prop("string", "The key to press (for example 'Enter', 'Tab', 'Escape')"),
	}, "key")
}

func (t *PressKeyTool) Execute(ctx context.Context, args string, _ *output.ToolEnv) (string, error) {
	var input struct {
		Key string `json:"key"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	if input.Key == "" {
		return "", fmt.Errorf("key is required")
	}

	if err := t.surface.PressKey(ctx, input.Key); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully pressed key %q on the currently focused element.", input.Key), nil
}

type ClickCoordinatesTool struct {
	surface output.ActionSurface
}

func NewClickCoordinatesTool(surface output.ActionSurface) *ClickCoordinatesTool {
	return &ClickCoordinatesTool{surface: surface}
}

func (t *ClickCoordinatesTool) Name() entity.ToolName { return entity.ToolClickCoordinates }
func (t *ClickCoordinatesTool) Description() string {
	return "Click at specific x, y coordinates on the page"
}
func (t *ClickCoordinatesTool) Constraint() string { return "" }
func (t *ClickCoordinatesTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"x": prop("number", "The x-coordinate to click."),
		"y": prop("number", "The y-coordinate to click."),
	}, "x", "y")
}

func (t *ClickCoordinatesTool) Execute(ctx context.Context, args string, _ *output.ToolEnv) (string, error) {
	var input struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	if input.X == nil || input.Y == nil {
		return "", fmt.Errorf("x and y are required")
	}

	p := entity.Point{X: *input.X, Y: *input.Y}
	if err := t.surface.Click(ctx, p); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully clicked at coordinates (%s, %s)", formatCoord(p.X), formatCoord(p.Y)), nil
}

type ScrollPageTool struct {
	surface output.ActionSurface
}

func NewScrollPageTool(surface output.ActionSurface) *ScrollPageTool {
	return &ScrollPageTool{surface: surface}
}

func (t *ScrollPageTool) Name() entity.ToolName { return entity.ToolScrollPage }
func (t *ScrollPageTool) Description() string {
	return "Scroll the content of the page, either vertically or horizontally, by the provided distance. The viewport is 1000x800."
}
func (t *ScrollPageTool) Constraint() string { return "" }
func (t *ScrollPageTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"direction": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"vertical", "horizontal"},
			"description": "Either 'vertical' or 'horizontal'.",
		},
		"distance": prop("number", "Number of pixels to scroll in the specified direction. Positive values scroll down/right, and negative values scroll up/left."),
	}, "direction", "distance")
}

func (t *ScrollPageTool) Execute(ctx context.Context, args string, _ *output.ToolEnv) (string, error) {
	var input struct {
		Direction string  `json:"direction"`
		Distance  float64 `json:"distance"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}

	var delta entity.Point
	switch input.Direction {
	case "vertical":
		delta.Y = input.Distance
	case "horizontal":
		delta.X = input.Distance
	default:
		return "", fmt.Errorf("unknown scroll direction %q", input.Direction)
	}

	if err := t.surface.Scroll(ctx, delta); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully scrolled the page %spx %sly.", formatCoord(input.Distance), input.Direction), nil
}

type RefreshScreenTool struct{}

func NewRefreshScreenTool() *RefreshScreenTool { return &RefreshScreenTool{} }

func (t *RefreshScreenTool) Name() entity.ToolName { return entity.ToolRefreshScreen }
func (t *RefreshScreenTool) Description() string   { return "Updates the screenshot." }
func (t *RefreshScreenTool) Constraint() string    { return "" }
func (t *RefreshScreenTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{})
}

// Execute does nothing: the dispatcher broadcasts a percept after every command.
func (t *RefreshScreenTool) Execute(context.Context, string, *output.ToolEnv) (string, error) {
	return "Screenshot updated", nil
}
