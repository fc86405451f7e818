package output

import (
	"context"

	"script-agent/internal/domain/entity"
)

// ReasoningPort maps conversation and percepts to decisions.
type ReasoningPort interface {
	SelectTools(ctx context.Context, req SelectionRequest) ([]entity.ToolCall, error)
	ProposePlan(ctx context.Context, task string, shot *entity.Screenshot) (*entity.ActionPlan, error)
	FindElements(ctx context.Context, history []entity.Message, shot *entity.Screenshot) ([]entity.ElementAnnotation, string, error)
	Verify(ctx context.Context, requirement string, shot *entity.Screenshot) (*entity.CheckResult, error)
	Describe(ctx context.Context, question string, shot *entity.Screenshot) (string, error)
}

type SelectionRequest struct {
	SystemPrompt string
	History      []entity.Message
	Tools        []entity.ToolDefinition
}
