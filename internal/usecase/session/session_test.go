package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"script-agent/internal/application/port/input"
	"script-agent/internal/domain/entity"
	"script-agent/internal/infrastructure/logger"
	"script-agent/internal/infrastructure/storage/memory"
	"script-agent/internal/usecase/stepper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const waitFor = 2 * time.Second

type fakeDispatcher struct {
	mu        sync.Mutex
	commands  []string
	histories [][]entity.Message
	gotos     map[string]string
	fails     map[string]error
	started   chan string
	release   chan struct{}
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, req input.DispatchRequest) *input.DispatchResult {
	cmd := req.History[len(req.History)-1].Content

	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.histories = append(f.histories, req.History)
	label, jump := f.gotos[cmd]
	failure := f.fails[cmd]
	f.mu.Unlock()

	if f.started != nil {
		f.started <- cmd
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
		}
	}

	if name, value, ok := entity.ParseAssignment(cmd); ok {
		req.Script.SetInput(name, value)
	}
	if jump {
		req.Events.Publish(ctx, entity.Event{SessionID: req.SessionID, Type: entity.EventGoto, Label: label})
	}
	if failure != nil {
		req.Events.Publish(ctx, entity.Event{SessionID: req.SessionID, Type: entity.EventServerResponse, Text: "failed: " + failure.Error()})
		req.Events.Publish(ctx, entity.Event{SessionID: req.SessionID, Type: entity.EventFunctionCompleted})
		return &input.DispatchResult{Err: failure}
	}
	req.Events.Publish(ctx, entity.Event{SessionID: req.SessionID, Type: entity.EventServerResponse, Text: "done: " + cmd})
	req.Events.Publish(ctx, entity.Event{SessionID: req.SessionID, Type: entity.EventFunctionCompleted})
	return &input.DispatchResult{Output: cmd}
}

func (f *fakeDispatcher) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

type sinkRecorder struct {
	mu     sync.Mutex
	events []entity.Event
}

func (s *sinkRecorder) Publish(_ context.Context, e entity.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *sinkRecorder) states() []entity.ScriptState {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.ScriptState
	for _, e := range s.events {
		if e.Type == entity.EventScriptState {
			out = append(out, *e.Script)
		}
	}
	return out
}

func (s *sinkRecorder) count(match func(entity.Event) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if match(e) {
			n++
		}
	}
	return n
}

func newSession(t *testing.T, d *fakeDispatcher, opts ...Option) (*Session, *sinkRecorder) {
	t.Helper()
	sink := &sinkRecorder{}
	s := New(context.Background(), "s1", Deps{
		Dispatcher: d,
		Events:     sink,
		Logger:     logger.NewNop(),
	}, DefaultConfig(), opts...)
	t.Cleanup(s.Close)
	return s, sink
}

func TestHandleMessages_DispatchesTranscript(t *testing.T) {
	d := &fakeDispatcher{}
	s, _ := newSession(t, d)

	history := []entity.Message{
		{Role: entity.RoleUser, Content: "open example.com"},
		{Role: entity.RoleAssistant, Content: "visitUrl execution result:\n\nVisited"},
		{Role: entity.RoleUser, Content: "click login"},
	}
	require.NoError(t, s.HandleMessages(context.Background(), history))

	require.Eventually(t, func() bool { return len(d.seen()) == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, "click login", d.seen()[0])
	assert.Equal(t, history, d.histories[0])

	// the answer is recorded as an assistant turn
	require.Eventually(t, func() bool { return len(s.History()) == 4 }, waitFor, time.Millisecond)
	assert.Equal(t, "done: click login", s.History()[3].Content)
}

func TestScript_AutoRunsEveryStepInOrder(t *testing.T) {
	d := &fakeDispatcher{}
	var mu sync.Mutex
	var actives []bool
	s, sink := newSession(t, d, WithStepObserver(func(_ stepper.Submission, _ *input.DispatchResult, active bool) {
		mu.Lock()
		actives = append(actives, active)
		mu.Unlock()
	}))
	ctx := context.Background()

	require.NoError(t, s.SubmitScript(ctx, "1. open\n2. search\n3. buy"))
	assert.Equal(t, entity.Message{Role: entity.RoleUser, Content: "script execution:\n\n```\n1. open\n2. search\n3. buy\n```"}, s.History()[0])

	require.NoError(t, s.SwitchMode(ctx, entity.ModeAuto))

	require.Eventually(t, func() bool { return len(d.seen()) == 3 }, waitFor, time.Millisecond)
	assert.Equal(t, []string{"1. open", "2. search", "3. buy"}, d.seen())

	require.Eventually(t, func() bool { return !s.stepper.Active() }, waitFor, time.Millisecond)
	mu.Lock()
	assert.Equal(t, []bool{true, true, false}, actives)
	mu.Unlock()

	require.Eventually(t, func() bool {
		states := sink.states()
		return len(states[len(states)-1].Commands) == 0
	}, waitFor, time.Millisecond)
}

func TestScript_ManualWaitsForNextStep(t *testing.T) {
	d := &fakeDispatcher{}
	s, _ := newSession(t, d)
	ctx := context.Background()

	require.NoError(t, s.SubmitScript(ctx, "a\nb"))
	require.NoError(t, s.NextStep(ctx))
	require.Eventually(t, func() bool { return s.State().Cursor == 1 && !s.State().Busy }, waitFor, time.Millisecond)

	assert.Equal(t, []string{"a"}, d.seen())
	require.NoError(t, s.NextStep(ctx))
	require.Eventually(t, func() bool { return len(d.seen()) == 2 }, waitFor, time.Millisecond)
}

func TestScript_GotoFromToolJumps(t *testing.T) {
	d := &fakeDispatcher{gotos: map[string]string{"1. check the page": "exit"}}
	s, _ := newSession(t, d)
	ctx := context.Background()

	require.NoError(t, s.SubmitScript(ctx, "1. check the page\n2. never\nexit. done"))
	require.NoError(t, s.SwitchMode(ctx, entity.ModeAuto))

	require.Eventually(t, func() bool { return !s.stepper.Active() }, waitFor, time.Millisecond)
	assert.Equal(t, []string{"1. check the page", "exit. done"}, d.seen())
}

func TestScript_AbortWhileBusyIsNotResurrected(t *testing.T) {
	d := &fakeDispatcher{started: make(chan string, 1), release: make(chan struct{})}
	s, _ := newSession(t, d)
	ctx := context.Background()

	require.NoError(t, s.SubmitScript(ctx, "slow\nnext"))
	require.NoError(t, s.SwitchMode(ctx, entity.ModeAuto))
	assert.Equal(t, "slow", <-d.started)

	s.Abort(ctx)
	close(d.release)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"slow"}, d.seen())
	assert.False(t, s.stepper.Active())
	assert.False(t, s.State().Busy)
}

func TestScript_FailedStepReportsOnceAndAutoContinues(t *testing.T) {
	d := &fakeDispatcher{fails: map[string]error{"2. pay": errors.New("card declined")}}
	var mu sync.Mutex
	var failed []bool
	s, sink := newSession(t, d, WithStepObserver(func(_ stepper.Submission, res *input.DispatchResult, _ bool) {
		mu.Lock()
		failed = append(failed, res.Failed())
		mu.Unlock()
	}))
	ctx := context.Background()

	require.NoError(t, s.SubmitScript(ctx, "1. open\n2. pay\n3. logout"))
	require.NoError(t, s.SwitchMode(ctx, entity.ModeAuto))

	require.Eventually(t, func() bool { return !s.stepper.Active() }, waitFor, time.Millisecond)
	assert.Equal(t, []string{"1. open", "2. pay", "3. logout"}, d.seen())

	mu.Lock()
	assert.Equal(t, []bool{false, true, false}, failed)
	mu.Unlock()

	assert.Equal(t, 1, sink.count(func(e entity.Event) bool {
		return e.Type == entity.EventServerResponse && strings.HasPrefix(e.Text, "failed: ")
	}))
	assert.Equal(t, 3, sink.count(func(e entity.Event) bool { return e.Type == entity.EventFunctionCompleted }))
}

func TestScript_GotoFromOrphanedCommandIgnored(t *testing.T) {
	d := &fakeDispatcher{
		gotos:   map[string]string{"1. slow": "c"},
		started: make(chan string, 1),
		release: make(chan struct{}),
	}
	s, sink := newSession(t, d)
	ctx := context.Background()

	require.NoError(t, s.SubmitScript(ctx, "1. slow\n2. next"))
	require.NoError(t, s.NextStep(ctx))
	assert.Equal(t, "1. slow", <-d.started)

	s.Abort(ctx)
	require.NoError(t, s.SubmitScript(ctx, "a. first\nb. second\nc. third"))
	close(d.release)

	require.Eventually(t, func() bool {
		return sink.count(func(e entity.Event) bool { return e.Type == entity.EventFunctionCompleted }) == 1
	}, waitFor, time.Millisecond)

	state := s.State()
	assert.Equal(t, []string{"a. first", "b. second", "c. third"}, state.Commands)
	assert.Equal(t, 0, state.Cursor)
	assert.False(t, state.Busy)
}

func TestEditStep(t *testing.T) {
	d := &fakeDispatcher{}
	s, _ := newSession(t, d)
	ctx := context.Background()

	assert.ErrorIs(t, s.EditStep(ctx, "x"), entity.ErrNoEditableStep)

	require.NoError(t, s.SubmitScript(ctx, "typo comand\nnext"))
	require.NoError(t, s.EditStep(ctx, "fixed command"))
	require.NoError(t, s.NextStep(ctx))

	require.Eventually(t, func() bool { return len(d.seen()) == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, "fixed command", d.seen()[0])
}

func TestSession_PersistsAndResumesContext(t *testing.T) {
	store := memory.New()
	deps := Deps{Dispatcher: &fakeDispatcher{}, Events: &sinkRecorder{}, Store: store, Logger: logger.NewNop()}
	ctx := context.Background()

	first := New(ctx, "resume-me", deps, DefaultConfig())
	require.NoError(t, first.HandleMessages(ctx, []entity.Message{{Role: entity.RoleUser, Content: "{{city}}=Berlin"}}))
	require.Eventually(t, func() bool {
		v, _ := first.Script().Input("city")
		return v == "Berlin"
	}, waitFor, time.Millisecond)
	first.Script().SetOutput("price", "10")
	first.Close()

	second := New(ctx, "resume-me", deps, DefaultConfig())
	defer second.Close()

	v, ok := second.Script().Input("city")
	require.True(t, ok)
	assert.Equal(t, "Berlin", v)
	out, _ := second.Script().Output("price")
	assert.Equal(t, "10", out)
}

func TestSession_ClosedRejectsWork(t *testing.T) {
	s, _ := newSession(t, &fakeDispatcher{})
	s.Close()

	err := s.HandleMessages(context.Background(), []entity.Message{{Role: entity.RoleUser, Content: "x"}})
	assert.ErrorIs(t, err, entity.ErrSessionClosed)
}
