package tool

import (
	"context"

	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"
)

// PlanRunner perceives the surface, plans and acts for one task.
type PlanRunner interface {
	Run(ctx context.Context, task string, env *output.ToolEnv) (string, error)
}

type AnalyzeAndActTool struct {
	runner PlanRunner
}

func NewAnalyzeAndActTool(runner PlanRunner) *AnalyzeAndActTool {
	return &AnalyzeAndActTool{runner: runner}
}

func (t *AnalyzeAndActTool) Name() entity.ToolName { return entity.ToolAnalyzeAndAct }
func (t *AnalyzeAndActTool) Description() string   { return "Analyze screenshot and perform user task." }
func (t *AnalyzeAndActTool) Constraint() string    { return "" }
func (t *AnalyzeAndActTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{})
}

func (t *AnalyzeAndActTool) Execute(ctx context.Context, _ string, env *output.ToolEnv) (string, error) {
	return t.runner.Run(ctx, env.Task(), env)
}
