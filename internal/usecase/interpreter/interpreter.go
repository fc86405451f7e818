package interpreter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"
)

// NoValidResponse is returned when the model reply was not a plan.
const NoValidResponse = "Error: No valid AI response returned"

type Config struct {
	// Settle is the pause after each effectful action before the percept is taken.
	Settle time.Duration
	// LocationSettle is the extra pause once the surface location changed.
	LocationSettle time.Duration
}

func DefaultConfig() Config {
	return Config{
		Settle:         100 * time.Millisecond,
		LocationSettle: 1000 * time.Millisecond,
	}
}

// Interpreter executes one model-proposed action plan against the surface.
type Interpreter struct {
	surface  output.ActionSurface
	reasoner output.ReasoningPort
	logger   output.LoggerPort
	cfg      Config

	// one plan at a time on a surface
	mu sync.Mutex
}

func New(surface output.ActionSurface, reasoner output.ReasoningPort, logger output.LoggerPort, cfg Config) *Interpreter {
	return &Interpreter{
		surface:  surface,
		reasoner: reasoner,
		logger:   logger,
		cfg:      cfg,
	}
}

// Run perceives, plans and acts for task. The returned summary counts only
// actions that had an effect.
func (in *Interpreter) Run(ctx context.Context, task string, env *output.ToolEnv) (string, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	plan, err := in.plan(ctx, task, env)
	if err != nil {
		var parseErr *entity.PlanParseError
		if errors.As(err, &parseErr) {
			env.Notifier.Debug("AI returned invalid JSON: \n\n" + parseErr.Raw)
			return NoValidResponse, nil
		}
		return "", err
	}

	completed, err := in.act(ctx, plan, env)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("User task completed and performed %d actions.", completed), nil
}

func (in *Interpreter) plan(ctx context.Context, task string, env *output.ToolEnv) (*entity.ActionPlan, error) {
	shot, err := env.Percepts.Broadcast(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture percept: %w", err)
	}

	start := time.Now()
	plan, err := in.reasoner.ProposePlan(ctx, task, shot)
	env.Notifier.Debug(fmt.Sprintf("%s performReasoning: completed in %dms", entity.DebugPrefix, time.Since(start).Milliseconds()))
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(plan); err == nil {
		env.Notifier.Notify(string(encoded))
	}
	in.broadcast(ctx, env)

	return plan, nil
}

func (in *Interpreter) act(ctx context.Context, plan *entity.ActionPlan, env *output.ToolEnv) (int, error) {
	completed := 0
	for i, action := range plan.Actions {
		if err := ctx.Err(); err != nil {
			return completed, err
		}

		done, stop, err := in.perform(ctx, action.Interaction, env)
		if err != nil {
			return completed, fmt.Errorf("action %d (%s): %w", i+1, action.Interaction.Kind(), err)
		}
		if done {
			completed++
		}
		if stop {
			in.logger.Debug("Plan stopped by goto", "performed", i+1, "remaining", len(plan.Actions)-i-1)
			break
		}
	}
	return completed, nil
}

// perform runs the populated case of one interaction. done reports an
// observable effect; stop reports a control transfer.
func (in *Interpreter) perform(ctx context.Context, inter entity.Interaction, env *output.ToolEnv) (done, stop bool, err error) {
	if kinds := inter.Kinds(); len(kinds) > 1 {
		in.logger.Warn("Interaction has several cases, performing the first", "kinds", kinds)
	}

	oldURL := in.surface.CurrentURL(ctx)

	var msg string
	switch inter.Kind() {
	case entity.ActionClick:
		p := *inter.MouseClick
		err = in.surface.Click(ctx, p)
		msg = "Clicked at " + p.String()
	case entity.ActionHover:
		p := *inter.MouseHover
		err = in.surface.Hover(ctx, p)
		msg = "Hovered at " + p.String()
	case entity.ActionScroll:
		p := *inter.MouseScroll
		err = in.surface.Scroll(ctx, p)
		msg = "Scrolled with delta " + p.String()
	case entity.ActionKeyPress:
		err = in.surface.PressKey(ctx, inter.KeyPress.Key)
		msg = "Pressed key: " + inter.KeyPress.Key
	case entity.ActionTypeText:
		err = in.surface.TypeText(ctx, inter.TypeText.Text)
		msg = "Typed text: " + inter.TypeText.Text
	case entity.ActionWait:
		err = in.surface.Wait(ctx, time.Duration(inter.Wait.Ms)*time.Millisecond)
		msg = fmt.Sprintf("Waited for %dms", inter.Wait.Ms)
	case entity.ActionGoto:
		label := inter.Goto.Label
		env.Notifier.Notify("Goto label: " + label)
		env.Notifier.Goto(label)
		return true, true, nil
	default:
		env.Notifier.Notify("Warning: no action performed: \n\n" + inter.JSON())
	}
	if err != nil {
		return false, false, err
	}

	if msg != "" {
		if inter.Kind() != entity.ActionWait {
			if err := sleep(ctx, in.cfg.Settle); err != nil {
				return false, false, err
			}
		}
		in.broadcast(ctx, env)
		env.Notifier.Notify(msg)
		done = true
	}

	if newURL := in.surface.CurrentURL(ctx); newURL != oldURL {
		if err := sleep(ctx, in.cfg.LocationSettle); err != nil {
			return done, false, err
		}
		in.broadcast(ctx, env)
		env.Notifier.Notify("URL changed to: " + newURL)
	}

	return done, false, nil
}

// broadcast is fire-and-forget: a failed percept never fails the plan.
func (in *Interpreter) broadcast(ctx context.Context, env *output.ToolEnv) {
	if _, err := env.Percepts.Broadcast(ctx); err != nil {
		in.logger.Warn("Percept broadcast failed", "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
