package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"script-agent/internal/application/port/input"
	"script-agent/internal/application/port/output"
	"script-agent/internal/application/service"
	"script-agent/internal/domain/entity"
	"script-agent/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkRecorder struct {
	mu     sync.Mutex
	events []entity.Event
}

func (s *sinkRecorder) Publish(_ context.Context, e entity.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *sinkRecorder) ofType(t entity.EventType) []entity.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (s *sinkRecorder) texts() []string {
	var out []string
	for _, e := range s.ofType(entity.EventServerResponse) {
		out = append(out, e.Text)
	}
	return out
}

type selector struct {
	output.ReasoningPort
	calls   []entity.ToolCall
	err     error
	history []entity.Message
}

func (s *selector) SelectTools(_ context.Context, req output.SelectionRequest) ([]entity.ToolCall, error) {
	s.history = req.History
	return s.calls, s.err
}

type stubTool struct {
	name  entity.ToolName
	out   string
	err   error
	panic bool
	got   string
	env   *output.ToolEnv
}

func (t *stubTool) Name() entity.ToolName { return t.name }
func (t *stubTool) Description() string   { return "stub" }
func (t *stubTool) Constraint() string    { return "" }
func (t *stubTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}

func (t *stubTool) Execute(_ context.Context, args string, env *output.ToolEnv) (string, error) {
	t.got = args
	t.env = env
	if t.panic {
		panic("boom")
	}
	env.Notifier.Notify("working")
	return t.out, t.err
}

type shotSurface struct {
	output.ActionSurface
	mu    sync.Mutex
	shots int
}

func (s *shotSurface) Screenshot(context.Context) (*entity.Screenshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shots++
	return &entity.Screenshot{Data: []byte{1}, Format: "jpeg"}, nil
}

func (s *shotSurface) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shots
}

func newUseCase(sel *selector, tools ...output.ToolPort) (*UseCase, *shotSurface) {
	registry := service.NewToolRegistry()
	for _, t := range tools {
		registry.Register(t)
	}
	surface := &shotSurface{}
	cfg := DefaultConfig("base instruction")
	cfg.FollowUpPercept = 0
	return New(sel, registry, surface, logger.NewNop(), cfg), surface
}

func request(sink output.EventSink, script *entity.ScriptContext, history ...entity.Message) input.DispatchRequest {
	return input.DispatchRequest{SessionID: "s1", Script: script, History: history, Events: sink}
}

func user(text string) entity.Message {
	return entity.Message{Role: entity.RoleUser, Content: text}
}

func TestDispatch_AssignmentNeverReachesModel(t *testing.T) {
	sel := &selector{err: errors.New("must not be called")}
	uc, surface := newUseCase(sel)
	sink := &sinkRecorder{}
	script := entity.NewScriptContext()

	res := uc.Dispatch(context.Background(), request(sink, script, user("{{city}}= Berlin ")))

	require.False(t, res.Failed())
	v, ok := script.Input("city")
	require.True(t, ok)
	assert.Equal(t, "Berlin", v)
	assert.Nil(t, sel.history)
	assert.Equal(t, entity.ToolSetInputParameter, res.Tool)
	assert.Equal(t, []string{"setInputParameter function answers: {{city}} is linked to the script context."}, sink.texts())
	assert.Len(t, sink.ofType(entity.EventFunctionCompleted), 1)
	assert.Zero(t, surface.count())
}

func TestDispatch_AssignmentWithPunctuatedName(t *testing.T) {
	sel := &selector{err: errors.New("must not be called")}
	uc, _ := newUseCase(sel)
	sink := &sinkRecorder{}
	script := entity.NewScriptContext()

	res := uc.Dispatch(context.Background(), request(sink, script, user("{{first-name}}=Ann")))

	require.False(t, res.Failed())
	assert.Nil(t, sel.history)
	v, _ := script.Input("first-name")
	assert.Equal(t, "Ann", v)
	assert.Equal(t, "Hi Ann", script.Substitute("Hi {{first-name}}"))
}

func TestDispatch_RunsFirstCallOnly(t *testing.T) {
	first := &stubTool{name: entity.ToolVisitURL, out: "opened"}
	second := &stubTool{name: entity.ToolPressKey, out: "pressed"}
	sel := &selector{calls: []entity.ToolCall{
		{ID: "1", Name: "visitUrl", Arguments: `{"url":"https://a.test"}`},
		{ID: "2", Name: "pressKey", Arguments: `{"key":"Enter"}`},
	}}
	uc, surface := newUseCase(sel, first, second)
	sink := &sinkRecorder{}

	res := uc.Dispatch(context.Background(), request(sink, entity.NewScriptContext(), user("open a")))

	require.False(t, res.Failed())
	assert.Equal(t, `{"url":"https://a.test"}`, first.got)
	assert.Empty(t, second.got)
	assert.Equal(t, "opened", res.Output)

	texts := sink.texts()
	assert.Contains(t, texts, "visitUrl execution result:\n\nopened")
	assert.Contains(t, texts, "//// execute: visitUrl")
	assert.Contains(t, texts, "working")
	assert.Len(t, sink.ofType(entity.EventFunctionCompleted), 1)
	assert.Len(t, sink.ofType(entity.EventBrowserScreenshot), 1)
	assert.Equal(t, 1, surface.count())
}

func TestDispatch_DebugEventsAreFlagged(t *testing.T) {
	tool := &stubTool{name: entity.ToolRefreshScreen, out: "ok"}
	sel := &selector{calls: []entity.ToolCall{{Name: "refreshScreen"}}}
	uc, _ := newUseCase(sel, tool)
	sink := &sinkRecorder{}

	uc.Dispatch(context.Background(), request(sink, entity.NewScriptContext(), user("refresh")))

	for _, e := range sink.ofType(entity.EventServerResponse) {
		assert.Equal(t, e.Debug, entity.Message{Content: e.Text}.IsDebug(), e.Text)
	}
}

func TestDispatch_SubstitutesAndFiltersHistory(t *testing.T) {
	tool := &stubTool{name: entity.ToolComment, out: "noted"}
	sel := &selector{calls: []entity.ToolCall{{Name: "comment", Arguments: `{}`}}}
	uc, _ := newUseCase(sel, tool)
	script := entity.NewScriptContext()
	script.SetInput("city", "Paris")

	history := []entity.Message{
		{Role: entity.RoleSystem, Content: "old system"},
		{Role: entity.RoleUser, Content: "script execution:\n\n```\nfoo\n```"},
		{Role: entity.RoleAssistant, Content: "//// selectTool: completed in 3ms"},
		{Role: entity.RoleAssistant, Content: "earlier answer {{city}}"},
		user("weather in {{city}}"),
	}
	uc.Dispatch(context.Background(), request(&sinkRecorder{}, script, history...))

	require.Len(t, sel.history, 2)
	assert.Equal(t, "earlier answer {{city}}", sel.history[0].Content)
	assert.Equal(t, "weather in Paris", sel.history[1].Content)
	assert.Equal(t, "weather in Paris", tool.env.Task())
	assert.Same(t, script, tool.env.Script)
}

func TestDispatch_NoToolSelected(t *testing.T) {
	uc, surface := newUseCase(&selector{})
	sink := &sinkRecorder{}

	res := uc.Dispatch(context.Background(), request(sink, entity.NewScriptContext(), user("gibberish")))

	assert.ErrorIs(t, res.Err, entity.ErrNoToolSelected)
	assert.Contains(t, sink.texts(), NotUnderstood)
	assert.Len(t, sink.ofType(entity.EventFunctionCompleted), 1)
	assert.Equal(t, 1, surface.count())
}

func TestDispatch_UnknownTool(t *testing.T) {
	uc, _ := newUseCase(&selector{calls: []entity.ToolCall{{Name: "launchRocket"}}})
	sink := &sinkRecorder{}

	res := uc.Dispatch(context.Background(), request(sink, entity.NewScriptContext(), user("launch")))

	assert.ErrorIs(t, res.Err, entity.ErrToolNotFound)
	assert.Contains(t, sink.texts(), "launchRocket is not supported.")
	assert.Len(t, sink.ofType(entity.EventFunctionCompleted), 1)
}

func TestDispatch_ToolErrorIsWrapped(t *testing.T) {
	tool := &stubTool{name: entity.ToolCheck, err: errors.New("page is blank")}
	sel := &selector{calls: []entity.ToolCall{{ID: "c1", Name: "check", Arguments: `{"requirement":"x"}`}}}
	uc, _ := newUseCase(sel, tool)
	sink := &sinkRecorder{}

	res := uc.Dispatch(context.Background(), request(sink, entity.NewScriptContext(), user("check x")))

	require.True(t, res.Failed())
	texts := sink.texts()
	last := texts[len(texts)-1]
	assert.Contains(t, last, "An error occurred while executing function {")
	assert.Contains(t, last, `"name": "check"`)
	assert.Contains(t, last, "<details><summary>Context</summary>")
	assert.Contains(t, last, "page is blank")
	assert.Contains(t, last, "</details>")
	assert.Len(t, sink.ofType(entity.EventFunctionCompleted), 1)

	failures := 0
	for _, text := range texts {
		if strings.HasPrefix(text, "An error occurred while executing function") {
			failures++
		}
	}
	assert.Equal(t, 1, failures)
}

func TestDispatch_ToolPanicIsRecovered(t *testing.T) {
	tool := &stubTool{name: entity.ToolPressKey, panic: true}
	uc, _ := newUseCase(&selector{calls: []entity.ToolCall{{Name: "pressKey"}}}, tool)
	sink := &sinkRecorder{}

	res := uc.Dispatch(context.Background(), request(sink, entity.NewScriptContext(), user("press")))

	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "boom")
	assert.Len(t, sink.ofType(entity.EventFunctionCompleted), 1)
}

func TestDispatch_SelectionError(t *testing.T) {
	uc, _ := newUseCase(&selector{err: errors.New("rate limited")})
	sink := &sinkRecorder{}

	res := uc.Dispatch(context.Background(), request(sink, entity.NewScriptContext(), user("anything")))

	require.Error(t, res.Err)
	texts := sink.texts()
	assert.Contains(t, texts[len(texts)-1], "rate limited")
	assert.Len(t, sink.ofType(entity.EventFunctionCompleted), 1)
}

func TestDispatch_FollowUpPercept(t *testing.T) {
	tool := &stubTool{name: entity.ToolRefreshScreen, out: "ok"}
	uc, surface := newUseCase(&selector{calls: []entity.ToolCall{{Name: "refreshScreen"}}}, tool)
	uc.cfg.FollowUpPercept = 10 * time.Millisecond

	uc.Dispatch(context.Background(), request(&sinkRecorder{}, entity.NewScriptContext(), user("refresh")))

	assert.Eventually(t, func() bool { return surface.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestDispatch_TruncatesLongResults(t *testing.T) {
	tool := &stubTool{name: entity.ToolReadPageText, out: string(make([]byte, 50))}
	uc, _ := newUseCase(&selector{calls: []entity.ToolCall{{Name: "readPageText"}}}, tool)
	uc.cfg.MaxResultLen = 10

	res := uc.Dispatch(context.Background(), request(&sinkRecorder{}, entity.NewScriptContext(), user("read")))
	assert.Equal(t, 10+len("\n... (truncated)"), len(res.Output))
}

func TestDispatch_TruncationKeepsRunesWhole(t *testing.T) {
	// "é" is two bytes, so a cut at 11 lands inside the sixth rune
	tool := &stubTool{name: entity.ToolReadPageText, out: strings.Repeat("é", 20)}
	uc, _ := newUseCase(&selector{calls: []entity.ToolCall{{Name: "readPageText"}}}, tool)
	uc.cfg.MaxResultLen = 11
	sink := &sinkRecorder{}

	res := uc.Dispatch(context.Background(), request(sink, entity.NewScriptContext(), user("read")))

	assert.True(t, utf8.ValidString(res.Output))
	assert.Equal(t, strings.Repeat("é", 5)+"\n... (truncated)", res.Output)
	for _, text := range sink.texts() {
		assert.True(t, utf8.ValidString(text), text)
	}
}
