package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"script-agent/internal/application/port/input"
	"script-agent/internal/domain/entity"
	"script-agent/internal/usecase/stepper"
)

var _ input.ScriptRunner = (*Runner)(nil)

// Runner plays a whole script in auto mode on a dedicated session.
type Runner struct {
	manager   *Manager
	sessionID string
}

func NewRunner(manager *Manager, sessionID string) *Runner {
	return &Runner{manager: manager, sessionID: sessionID}
}

func (r *Runner) Run(ctx context.Context, script *entity.Script, inputs map[string]string) (*input.RunResult, error) {
	commands := script.Commands()
	if len(commands) == 0 {
		return nil, fmt.Errorf("script %q: %w", script.Title, entity.ErrEmptyScript)
	}

	for _, p := range script.InputParameters {
		if !entity.ValidParameterName(p.Name) {
			return nil, fmt.Errorf("script %q input %q: %w", script.Title, p.Name, entity.ErrParameterName)
		}
	}
	for name := range inputs {
		if !entity.ValidParameterName(name) {
			return nil, fmt.Errorf("input %q: %w", name, entity.ErrParameterName)
		}
	}

	result := &input.RunResult{}
	finished := make(chan struct{})
	var (
		mu   sync.Mutex
		once sync.Once
	)
	observer := func(_ stepper.Submission, res *input.DispatchResult, active bool) {
		mu.Lock()
		result.Steps++
		if res.Failed() {
			result.Failed++
		}
		mu.Unlock()
		if !active {
			once.Do(func() { close(finished) })
		}
	}

	sess := r.manager.Open(ctx, r.sessionID, WithStepObserver(observer))
	defer r.manager.Release(sess.ID())

	for _, p := range script.InputParameters {
		if _, ok := sess.Script().Input(p.Name); !ok && p.PossibleValue != "" {
			sess.Script().SetInput(p.Name, p.PossibleValue)
		}
	}
	for name, value := range inputs {
		sess.Script().SetInput(name, value)
	}

	if err := sess.SubmitScript(ctx, strings.Join(commands, "\n")); err != nil {
		return nil, err
	}
	if err := sess.SwitchMode(ctx, entity.ModeAuto); err != nil {
		return nil, err
	}
	if !sess.stepper.Active() {
		// the script was nothing but jumps
		once.Do(func() { close(finished) })
	}

	select {
	case <-finished:
	case <-ctx.Done():
		sess.Abort(context.WithoutCancel(ctx))
		return nil, ctx.Err()
	}

	_, outputs := sess.Script().Snapshot()
	mu.Lock()
	defer mu.Unlock()
	result.Outputs = outputs
	result.Context = sess.Script().Render()
	return result, nil
}
