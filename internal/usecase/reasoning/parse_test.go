package reasoning

import (
	"errors"
	"testing"

	"script-agent/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlan_ValidJSON(t *testing.T) {
	response := `{
  "reasoning": "A search page with an input",
  "uiElements": [{"text": "Search", "description": "search box", "x1": 10, "y1": 20, "x2": 110, "y2": 40}],
  "actions": [
    {"elementIndex": 0, "interaction": {"mouseClick": {"x": 60, "y": 30}, "mouseHover": null}},
    {"elementIndex": null, "interaction": {"typeText": {"text": "Berlin"}}},
    {"elementIndex": null, "interaction": {"keyPress": {"key": "Enter"}}}
  ]
}`

	plan, err := ParsePlan(response)
	require.NoError(t, err)

	assert.Equal(t, "A search page with an input", plan.Reasoning)
	require.Len(t, plan.UIElements, 1)
	assert.Equal(t, entity.Point{X: 60, Y: 30}, plan.UIElements[0].Center())
	require.Len(t, plan.Actions, 3)
	assert.Equal(t, entity.ActionClick, plan.Actions[0].Interaction.Kind())
	assert.Equal(t, 0, *plan.Actions[0].ElementIndex)
	assert.Nil(t, plan.Actions[1].ElementIndex)
	assert.Equal(t, entity.ActionTypeText, plan.Actions[1].Interaction.Kind())
	assert.Equal(t, entity.ActionKeyPress, plan.Actions[2].Interaction.Kind())
}

func TestParsePlan_WithTextAround(t *testing.T) {
	response := "Here is the plan:\n```json\n" +
		`{"reasoning": "jump", "uiElements": [], "actions": [{"interaction": {"goto": {"label": "exit"}}}]}` +
		"\n```\nHope this helps!"

	plan, err := ParsePlan(response)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, "exit", plan.Actions[0].Interaction.Goto.Label)
}

func TestParsePlan_LegacyShapes(t *testing.T) {
	response := `{"reasoning": "", "actions": [
		{"interaction": {"wait": 250}},
		{"interaction": {"goto": "2"}},
		{"interaction": {"goto": {"label": 3}}}
	]}`

	plan, err := ParsePlan(response)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 3)
	assert.Equal(t, 250, plan.Actions[0].Interaction.Wait.Ms)
	assert.Equal(t, "2", plan.Actions[1].Interaction.Goto.Label)
	assert.Equal(t, "3", plan.Actions[2].Interaction.Goto.Label)
}

func TestParsePlan_NoJSON(t *testing.T) {
	_, err := ParsePlan("I cannot see anything useful here.")
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrPlanParse))

	var parseErr *entity.PlanParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "I cannot see anything useful here.", parseErr.Raw)
}

func TestParsePlan_InvalidJSON(t *testing.T) {
	_, err := ParsePlan(`{"reasoning": "broken", "actions": [}`)
	assert.ErrorIs(t, err, entity.ErrPlanParse)
}

func TestParseAnnotations(t *testing.T) {
	wrapped := `{"elements": [{"text": "Next", "description": "next button", "x": 285, "y": 486, "userRequestedToClick": true}]}`
	elements, err := parseAnnotations(wrapped)
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.True(t, elements[0].UserRequestedToClick)

	bare := "```json\n[{\"text\": null, \"description\": \"logo\", \"x\": 1, \"y\": 2, \"userRequestedToClick\": false}]\n```"
	elements, err = parseAnnotations(bare)
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Nil(t, elements[0].Text)
}

func TestParseVerdict(t *testing.T) {
	result, err := parseVerdict(`Verdict: {"passed": false, "explanation": "no Sign In button"}`)
	require.NoError(t, err)
	assert.False(t, result.Passed)
	assert.Equal(t, "no Sign In button", result.Explanation)

	_, err = parseVerdict(`{"explanation": "missing flag"}`)
	assert.Error(t, err)
}
