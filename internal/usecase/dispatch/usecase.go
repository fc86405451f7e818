package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"script-agent/internal/application/port/input"
	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"
)

var _ input.CommandDispatcher = (*UseCase)(nil)

const (
	NotUnderstood = "I'm sorry, error occurred while processing the command (function not found)."

	contextBlockStart = "<details><summary>Context</summary>\n\n"
	contextBlockClose = "</details>"
)

type Config struct {
	SystemPrompt string
	// FollowUpPercept repeats the post-command screenshot for slow pages. Zero disables it.
	FollowUpPercept time.Duration
	MaxResultLen    int
}

func DefaultConfig(systemPrompt string) Config {
	return Config{
		SystemPrompt:    systemPrompt,
		FollowUpPercept: time.Second,
		MaxResultLen:    20000,
	}
}

// UseCase resolves each inbound command to exactly one tool and runs it.
type UseCase struct {
	reasoner output.ReasoningPort
	tools    output.ToolRegistry
	surface  output.ActionSurface
	logger   output.LoggerPort
	cfg      Config
}

func New(
	reasoner output.ReasoningPort,
	tools output.ToolRegistry,
	surface output.ActionSurface,
	logger output.LoggerPort,
	cfg Config,
) *UseCase {
	return &UseCase{
		reasoner: reasoner,
		tools:    tools,
		surface:  surface,
		logger:   logger,
		cfg:      cfg,
	}
}

// Dispatch never returns a Go error for command failures: they are reported
// as events and recorded on the result. Completion is signalled exactly once.
func (uc *UseCase) Dispatch(ctx context.Context, req input.DispatchRequest) *input.DispatchResult {
	log := uc.logger.WithField("session", req.SessionID)
	result := &input.DispatchResult{}

	if len(req.History) == 0 {
		result.Err = fmt.Errorf("empty command history: %w", entity.ErrNoToolSelected)
		uc.notifier(ctx, req, "").Notify(NotUnderstood)
		uc.complete(ctx, req, false)
		return result
	}

	command := req.History[len(req.History)-1].Content
	if name, value, ok := entity.ParseAssignment(command); ok {
		req.Script.SetInput(name, value)
		log.Info("Input parameter set", "name", name)

		result.Tool = entity.ToolSetInputParameter
		result.Output = fmt.Sprintf("setInputParameter function answers: {{%s}} is linked to the script context.", name)
		uc.notifier(ctx, req, entity.ToolSetInputParameter.String()).Notify(result.Output)
		uc.complete(ctx, req, false)
		return result
	}

	uc.runTool(ctx, req, result, log)
	uc.complete(ctx, req, true)
	return result
}

func (uc *UseCase) runTool(ctx context.Context, req input.DispatchRequest, result *input.DispatchResult, log output.LoggerPort) {
	history := req.Script.SubstituteMessages(entity.ConversationOnly(req.History))
	note := uc.notifier(ctx, req, "")

	start := time.Now()
	calls, err := uc.reasoner.SelectTools(ctx, output.SelectionRequest{
		SystemPrompt: uc.cfg.SystemPrompt,
		History:      history,
		Tools:        uc.tools.Definitions(),
	})
	result.SelectDuration = time.Since(start)
	note.Debug(fmt.Sprintf("%s selectTool: completed in %dms", entity.DebugPrefix, result.SelectDuration.Milliseconds()))

	if err != nil {
		log.Error("Tool selection failed", "error", err)
		result.Err = err
		note.Notify(failureText("An error occurred while selecting a tool.", err))
		return
	}

	if len(calls) == 0 {
		log.Warn("No tool selected")
		result.Err = entity.ErrNoToolSelected
		note.Notify(NotUnderstood)
		return
	}
	if len(calls) > 1 {
		log.Info("Only the first tool call is executed", "proposed", len(calls))
	}
	call := calls[0]
	result.Tool = entity.ToolName(call.Name)

	tool, ok := uc.tools.Get(result.Tool)
	if !ok {
		log.Warn("Unknown tool called", "name", call.Name)
		result.Err = fmt.Errorf("%s: %w", call.Name, entity.ErrToolNotFound)
		note.Notify(fmt.Sprintf("%s is not supported.", call.Name))
		return
	}

	toolNote := uc.notifier(ctx, req, call.Name)
	env := &output.ToolEnv{
		Script:   req.Script,
		Notifier: toolNote,
		Percepts: &surfaceBroadcaster{surface: uc.surface, sink: req.Events, sessionID: req.SessionID},
		Messages: history,
	}

	toolNote.Debug(fmt.Sprintf("%s execute: %s", entity.DebugPrefix, call.Name))
	log.Info("Executing tool", "name", call.Name, "args", call.Arguments)

	start = time.Now()
	out, err := uc.execute(ctx, tool, call.Arguments, env)
	result.ExecDuration = time.Since(start)
	toolNote.Debug(fmt.Sprintf("%s %s: completed in %dms", entity.DebugPrefix, call.Name, result.ExecDuration.Milliseconds()))

	if err != nil {
		log.Error("Tool execution failed", "name", call.Name, "error", err)
		result.Err = err
		note.Notify(failureText(fmt.Sprintf("An error occurred while executing function %s.", invocationJSON(call)), err))
		return
	}

	if uc.cfg.MaxResultLen > 0 && len(out) > uc.cfg.MaxResultLen {
		out = truncate(out, uc.cfg.MaxResultLen) + "\n... (truncated)"
	}
	result.Output = out
	log.Debug("Tool completed", "name", call.Name, "resultLen", len(out), "durationMs", result.ExecDuration.Milliseconds())
	toolNote.Notify(fmt.Sprintf("%s execution result:\n\n%s", call.Name, out))
}

func (uc *UseCase) execute(ctx context.Context, tool output.ToolPort, args string, env *output.ToolEnv) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return tool.Execute(ctx, args, env)
}

func (uc *UseCase) complete(ctx context.Context, req input.DispatchRequest, withPercept bool) {
	req.Events.Publish(ctx, entity.Event{
		SessionID: req.SessionID,
		Type:      entity.EventFunctionCompleted,
	})
	if !withPercept || uc.surface == nil {
		return
	}

	b := &surfaceBroadcaster{surface: uc.surface, sink: req.Events, sessionID: req.SessionID}
	if _, err := b.Broadcast(ctx); err != nil {
		uc.logger.Warn("Post-command screenshot failed", "error", err)
	}
	if uc.cfg.FollowUpPercept > 0 {
		time.AfterFunc(uc.cfg.FollowUpPercept, func() {
			if ctx.Err() != nil {
				return
			}
			if _, err := b.Broadcast(ctx); err != nil {
				uc.logger.Debug("Follow-up screenshot failed", "error", err)
			}
		})
	}
}

func (uc *UseCase) notifier(ctx context.Context, req input.DispatchRequest, function string) *sessionNotifier {
	return &sessionNotifier{ctx: ctx, sink: req.Events, sessionID: req.SessionID, function: function}
}

func failureText(subject string, err error) string {
	return fmt.Sprintf("%s %s \n Error: %s \n %s", subject, contextBlockStart, err.Error(), contextBlockClose)
}

func invocationJSON(call entity.ToolCall) string {
	data, err := json.MarshalIndent(call, "", "  ")
	if err != nil {
		return call.Name
	}
	return string(data)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
