package prompts

import (
	"context"
	"testing"

	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name       entity.ToolName
	constraint string
}

func (s *stubTool) Name() entity.ToolName { return s.name }
func (s *stubTool) Description() string   { return "stub" }
func (s *stubTool) Constraint() string    { return s.constraint }
func (s *stubTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}
func (s *stubTool) Execute(context.Context, string, *output.ToolEnv) (string, error) {
	return "", nil
}

func TestGenerateCoordinatorPrompt(t *testing.T) {
	tools := []output.ToolPort{
		&stubTool{name: entity.ToolVisitURL},
		&stubTool{name: entity.ToolComment, constraint: "Use only for notes."},
		&stubTool{name: entity.ToolCheck, constraint: "Only use for verify."},
	}

	prompt, err := GenerateCoordinatorPrompt(CoordinatorBase, tools)
	require.NoError(t, err)

	expected := CoordinatorBase + "\n\n" +
		`Function "comment" must follow these rule(s): "Use only for notes."` + "\n" +
		`Function "check" must follow these rule(s): "Only use for verify."`
	assert.Equal(t, expected, prompt)
	assert.NotContains(t, prompt, "visitUrl")
}

func TestGenerateCoordinatorPrompt_NoRules(t *testing.T) {
	prompt, err := GenerateCoordinatorPrompt(CoordinatorBase, nil)
	require.NoError(t, err)
	assert.Equal(t, CoordinatorBase, prompt)
}

func TestRenderPlanPrompt(t *testing.T) {
	prompt, err := RenderPlanPrompt("search for {{city}} weather", 1000, 800)
	require.NoError(t, err)

	assert.Contains(t, prompt, "search for {{city}} weather")
	assert.Contains(t, prompt, "1000x800")
	assert.Contains(t, prompt, `"goto": { "label": string } | null`)
}

func TestRenderFindElementsPrompt(t *testing.T) {
	prompt, err := RenderFindElementsPrompt(`[{"role":"user","content":"find the login button"}]`)
	require.NoError(t, err)
	assert.Contains(t, prompt, "find the login button")
	assert.Contains(t, prompt, "userRequestedToClick")
}
