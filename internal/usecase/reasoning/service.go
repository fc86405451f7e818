package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"
	"script-agent/internal/infrastructure/prompts"
)

var _ output.ReasoningPort = (*Service)(nil)

type Config struct {
	Temperature float32
	// Used in the plan prompt when the screenshot carries no dimensions.
	ViewportWidth  int
	ViewportHeight int
}

func DefaultConfig() Config {
	return Config{
		Temperature:    0.0,
		ViewportWidth:  1000,
		ViewportHeight: 800,
	}
}

// Service answers every reasoning question through a chat-completion model.
type Service struct {
	llm    output.LLMPort
	logger output.LoggerPort
	cfg    Config
}

func New(llm output.LLMPort, logger output.LoggerPort, cfg Config) *Service {
	return &Service{llm: llm, logger: logger, cfg: cfg}
}

func (s *Service) SelectTools(ctx context.Context, req output.SelectionRequest) ([]entity.ToolCall, error) {
	messages := make([]entity.Message, 0, len(req.History)+1)
	messages = append(messages, entity.Message{Role: entity.RoleSystem, Content: req.SystemPrompt})
	messages = append(messages, req.History...)

	resp, err := s.llm.Chat(ctx, output.ChatRequest{
		Messages:    messages,
		Tools:       req.Tools,
		ToolChoice:  output.ToolChoiceRequired,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("tool selection request failed: %w", err)
	}

	calls := resp.Message.ToolCalls
	names := make([]string, 0, len(calls))
	for _, c := range calls {
		names = append(names, c.Name)
	}
	s.logger.Debug("Tool selection received", "calls", names)
	return calls, nil
}

func (s *Service) ProposePlan(ctx context.Context, task string, shot *entity.Screenshot) (*entity.ActionPlan, error) {
	width, height := s.cfg.ViewportWidth, s.cfg.ViewportHeight
	if shot != nil && shot.Width > 0 {
		width, height = shot.Width, shot.Height
	}

	prompt, err := prompts.RenderPlanPrompt(task, width, height)
	if err != nil {
		return nil, err
	}

	content, err := s.askWithImage(ctx, prompt, shot, true)
	if err != nil {
		return nil, fmt.Errorf("plan request failed: %w", err)
	}

	plan, err := ParsePlan(content)
	if err != nil {
		s.logger.Warn("Model returned no valid plan", "error", err)
		return nil, err
	}
	s.logger.Debug("Plan received", "actions", len(plan.Actions), "elements", len(plan.UIElements))
	return plan, nil
}

func (s *Service) FindElements(ctx context.Context, history []entity.Message, shot *entity.Screenshot) ([]entity.ElementAnnotation, string, error) {
	userMessages := make([]map[string]string, 0, len(history))
	for _, m := range history {
		if m.Role == entity.RoleUser {
			userMessages = append(userMessages, map[string]string{"role": string(m.Role), "content": m.Content})
		}
	}
	encoded, err := json.MarshalIndent(userMessages, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("encode user messages: %w", err)
	}

	prompt, err := prompts.RenderFindElementsPrompt(string(encoded))
	if err != nil {
		return nil, "", err
	}

	content, err := s.askWithImage(ctx, prompt, shot, true)
	if err != nil {
		return nil, "", fmt.Errorf("find elements request failed: %w", err)
	}

	elements, err := parseAnnotations(content)
	if err != nil {
		// the raw reply is still useful to the operator
		s.logger.Warn("Element annotations not parseable", "error", err)
		return nil, content, nil
	}
	return elements, content, nil
}

func (s *Service) Verify(ctx context.Context, requirement string, shot *entity.Screenshot) (*entity.CheckResult, error) {
	prompt, err := prompts.RenderCheckPrompt(requirement)
	if err != nil {
		return nil, err
	}

	content, err := s.askWithImage(ctx, prompt, shot, true)
	if err != nil {
		return nil, fmt.Errorf("check request failed: %w", err)
	}

	result, err := parseVerdict(content)
	if err != nil {
		trimmed := strings.TrimSpace(content)
		s.logger.Warn("Failed to parse check verdict, falling back to text", "error", err)
		return &entity.CheckResult{
			Passed:      strings.EqualFold(strings.Trim(trimmed, ". \""), "ok"),
			Explanation: trimmed,
		}, nil
	}

	s.logger.Info("Check completed", "passed", result.Passed)
	return result, nil
}

func (s *Service) Describe(ctx context.Context, question string, shot *entity.Screenshot) (string, error) {
	prompt, err := prompts.RenderDescribePrompt(question)
	if err != nil {
		return "", err
	}

	content, err := s.askWithImage(ctx, prompt, shot, false)
	if err != nil {
		return "", fmt.Errorf("describe request failed: %w", err)
	}
	return strings.TrimSpace(content), nil
}

func (s *Service) askWithImage(ctx context.Context, prompt string, shot *entity.Screenshot, jsonMode bool) (string, error) {
	msg := entity.Message{Role: entity.RoleUser, Content: prompt}
	if shot != nil {
		msg.Images = []entity.Screenshot{*shot}
	}

	resp, err := s.llm.Chat(ctx, output.ChatRequest{
		Messages:    []entity.Message{msg},
		Temperature: s.cfg.Temperature,
		JSONMode:    jsonMode,
	})
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}
