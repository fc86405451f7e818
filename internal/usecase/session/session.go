package session

import (
	"context"
	"fmt"
	"sync"

	"script-agent/internal/application/port/input"
	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"
	"script-agent/internal/usecase/stepper"
)

var _ input.SessionHandler = (*Session)(nil)

type Config struct {
	QueueSize int
}

func DefaultConfig() Config {
	return Config{QueueSize: 16}
}

type Deps struct {
	Dispatcher input.CommandDispatcher
	Events     output.EventSink
	// Store is optional. Without it the Script Context lives only as long as the session.
	Store  output.ContextStore
	Logger output.LoggerPort
}

// StepObserver is told about every finished script step. active reports
// whether the script still has work left.
type StepObserver func(step stepper.Submission, result *input.DispatchResult, active bool)

type Option func(*Session)

func WithStepObserver(fn StepObserver) Option {
	return func(s *Session) { s.observer = fn }
}

// job is one dispatch. epoch is the stepper epoch the job belongs to, so
// signals it raises after an abort or reload are discarded.
type job struct {
	history []entity.Message
	step    *stepper.Submission
	epoch   uint64
}

// Session is the per-operator state: Script Context, transcript, stepper
// and the single worker that runs commands in order.
type Session struct {
	id         string
	script     *entity.ScriptContext
	stepper    *stepper.Stepper
	dispatcher input.CommandDispatcher
	events     output.EventSink
	store      output.ContextStore
	logger     output.LoggerPort
	observer   StepObserver

	mu      sync.Mutex
	history []entity.Message

	jobs      chan job
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New starts the session worker. A configured store is consulted so a
// session ID seen before gets its parameters back.
func New(ctx context.Context, id string, deps Deps, cfg Config, opts ...Option) *Session {
	log := deps.Logger.WithField("session", id)
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s := &Session{
		id:         id,
		script:     entity.NewScriptContext(),
		stepper:    stepper.New(log),
		dispatcher: deps.Dispatcher,
		events:     deps.Events,
		store:      deps.Store,
		logger:     log,
		jobs:       make(chan job, cfg.QueueSize),
		ctx:        sctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store != nil {
		s.restore(ctx)
	}

	s.wg.Add(1)
	go s.loop()

	log.Info("Session started")
	return s
}

func (s *Session) restore(ctx context.Context) {
	inputs, outputs, err := s.store.Load(ctx, s.id)
	if err != nil {
		s.logger.Warn("Failed to load script context", "error", err)
	} else if len(inputs)+len(outputs) > 0 {
		s.script.Restore(inputs, outputs)
		s.logger.Info("Script context restored", "inputs", len(inputs), "outputs", len(outputs))
	}

	s.script.OnChange(func(scope entity.ParameterScope, name, value string) {
		if err := s.store.Put(s.ctx, s.id, scope, name, value); err != nil {
			s.logger.Warn("Failed to persist parameter", "scope", scope, "name", name, "error", err)
		}
	})
}

func (s *Session) ID() string { return s.id }

func (s *Session) Script() *entity.ScriptContext { return s.script }

func (s *Session) State() entity.ScriptState { return s.stepper.State() }

// HandleMessages takes the operator's full transcript and dispatches its last command.
func (s *Session) HandleMessages(ctx context.Context, history []entity.Message) error {
	if len(history) == 0 {
		return fmt.Errorf("empty message history")
	}

	s.mu.Lock()
	s.history = append([]entity.Message(nil), history...)
	snapshot := append([]entity.Message(nil), s.history...)
	s.mu.Unlock()

	return s.enqueue(ctx, job{history: snapshot, epoch: s.stepper.Epoch()})
}

func (s *Session) SubmitScript(ctx context.Context, text string) error {
	state := s.stepper.Load(text)
	if len(state.Commands) == 0 {
		return entity.ErrEmptyScript
	}

	s.mu.Lock()
	s.history = append(s.history, entity.Message{Role: entity.RoleUser, Content: entity.ScriptMarker(text)})
	s.mu.Unlock()

	s.publishState(ctx)
	return nil
}

func (s *Session) NextStep(ctx context.Context) error {
	sub, ok := s.stepper.Next()
	s.publishState(ctx)
	if !ok {
		return nil
	}
	return s.submit(ctx, sub)
}

func (s *Session) SwitchMode(ctx context.Context, mode entity.StepMode) error {
	sub, ok := s.stepper.SetMode(mode)
	s.publishState(ctx)
	if !ok {
		return nil
	}
	return s.submit(ctx, sub)
}

// Abort clears the script. A command already running is not interrupted.
func (s *Session) Abort(ctx context.Context) {
	s.stepper.Abort()
	s.publishState(ctx)
}

func (s *Session) EditStep(ctx context.Context, text string) error {
	if !s.stepper.Edit(text) {
		return entity.ErrNoEditableStep
	}
	s.publishState(ctx)
	return nil
}

// Close stops the worker and waits for the running command to return.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.logger.Info("Session closed")
	})
}

func (s *Session) submit(ctx context.Context, sub *stepper.Submission) error {
	if err := s.enqueue(ctx, s.stepJob(sub)); err != nil {
		// nothing will ever complete this step
		s.stepper.Abort()
		s.publishState(ctx)
		return err
	}
	return nil
}

func (s *Session) stepJob(sub *stepper.Submission) job {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entity.Message{Role: entity.RoleUser, Content: sub.Command})
	return job{history: append([]entity.Message(nil), s.history...), step: sub, epoch: sub.Epoch}
}

func (s *Session) enqueue(ctx context.Context, j job) error {
	if s.ctx.Err() != nil {
		return entity.ErrSessionClosed
	}
	select {
	case s.jobs <- j:
		return nil
	case <-s.ctx.Done():
		return entity.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case j := <-s.jobs:
			s.process(j)
		}
	}
}

// process runs a job and, in auto mode, the steps that follow it.
func (s *Session) process(j job) {
	for {
		res := s.dispatcher.Dispatch(s.ctx, input.DispatchRequest{
			SessionID: s.id,
			Script:    s.script,
			History:   j.history,
			Events:    &sessionSink{session: s, epoch: j.epoch},
		})
		if res.Failed() {
			s.logger.Debug("Command failed", "tool", res.Tool, "error", res.Err)
		}
		if j.step == nil {
			return
		}

		next, ok := s.stepper.Complete(j.step.Epoch)
		s.publishState(s.ctx)
		if s.observer != nil {
			s.observer(*j.step, res, s.stepper.Active())
		}
		if !ok || s.ctx.Err() != nil {
			return
		}
		j = s.stepJob(next)
	}
}

func (s *Session) publishState(ctx context.Context) {
	state := s.stepper.State()
	s.events.Publish(ctx, entity.Event{
		SessionID: s.id,
		Type:      entity.EventScriptState,
		Script:    &state,
	})
}

func (s *Session) appendAssistant(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entity.Message{Role: entity.RoleAssistant, Content: text})
}

// History returns a copy of the transcript as the session sees it.
func (s *Session) History() []entity.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.Message(nil), s.history...)
}

// sessionSink records answers into the transcript and routes goto signals
// to the stepper before forwarding every event.
type sessionSink struct {
	session *Session
	epoch   uint64
}

func (k *sessionSink) Publish(ctx context.Context, e entity.Event) {
	s := k.session

	switch e.Type {
	case entity.EventServerResponse:
		if !e.Debug {
			s.appendAssistant(e.Text)
		}
	case entity.EventGoto:
		if err := s.stepper.Goto(k.epoch, e.Label); err != nil {
			s.logger.Debug("Goto ignored", "error", err)
		}
	}

	s.events.Publish(ctx, e)

	if e.Type == entity.EventGoto {
		s.publishState(ctx)
	}
}
