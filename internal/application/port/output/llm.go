package output

import (
	"context"

	"script-agent/internal/domain/entity"
)

type LLMPort interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
)

type ChatRequest struct {
	Messages    []entity.Message
	Tools       []entity.ToolDefinition
	ToolChoice  ToolChoice
	Temperature float32
	JSONMode    bool
}

type ChatResponse struct {
	Message entity.Message
}
