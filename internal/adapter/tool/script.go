package tool

import (
	"context"
	"fmt"

	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"
)

type CommentTool struct{}

func NewCommentTool() *CommentTool { return &CommentTool{} }

func (t *CommentTool) Name() entity.ToolName { return entity.ToolComment }
func (t *CommentTool) Description() string {
	return "Stores the user's remark in the transcript without touching the page."
}
func (t *CommentTool) Constraint() string {
	return "Use this tool only when the user explicitly mentions the words `comment` or `note`."
}
func (t *CommentTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{})
}

func (t *CommentTool) Execute(_ context.Context, _ string, env *output.ToolEnv) (string, error) {
	return "Comment stored: " + env.Task(), nil
}

type SetOutputParameterTool struct {
	logger output.LoggerPort
}

func NewSetOutputParameterTool(logger output.LoggerPort) *SetOutputParameterTool {
	return &SetOutputParameterTool{logger: logger}
}

func (t *SetOutputParameterTool) Name() entity.ToolName { return entity.ToolSetOutputParameter }
func (t *SetOutputParameterTool) Description() string {
	return "Stores the value of an output parameter in the script context based on the current conversation."
}
func (t *SetOutputParameterTool) Constraint() string { return "" }
func (t *SetOutputParameterTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"outParameterName":  prop("string", "The name of the output parameter. If not specified, a new camel-case name will be generated."),
		"outParameterValue": prop("string", "The value of the output parameter."),
	}, "outParameterName", "outParameterValue")
}

func (t *SetOutputParameterTool) Execute(_ context.Context, args string, env *output.ToolEnv) (string, error) {
	var input struct {
		Name  string `json:"outParameterName"`
		Value string `json:"outParameterValue"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	if input.Name == "" {
		return "", fmt.Errorf("outParameterName is required")
	}

	env.Script.SetOutput(input.Name, input.Value)
	t.logger.Info("Output parameter set", "name", input.Name)
	return fmt.Sprintf("Set output parameter: {{%s}}=%s", input.Name, input.Value), nil
}
