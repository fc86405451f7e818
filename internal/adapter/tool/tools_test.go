package tool

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"script-agent/internal/application/port/output"
	"script-agent/internal/application/service"
	"script-agent/internal/domain/entity"
	"script-agent/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSurface struct {
	output.ActionSurface
	calls []string
	html  string
	err   error
}

func (f *fakeSurface) do(call string) error {
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeSurface) Navigate(_ context.Context, url string) error { return f.do("navigate " + url) }
func (f *fakeSurface) Click(_ context.Context, p entity.Point) error {
	return f.do("click " + p.String())
}
func (f *fakeSurface) Scroll(_ context.Context, d entity.Point) error {
	return f.do("scroll " + d.String())
}
func (f *fakeSurface) PressKey(_ context.Context, key string) error  { return f.do("key " + key) }
func (f *fakeSurface) TypeText(_ context.Context, text string) error { return f.do("type " + text) }
func (f *fakeSurface) Reset(context.Context) error                   { return f.do("reset") }
func (f *fakeSurface) Wait(_ context.Context, d time.Duration) error {
	return f.do(fmt.Sprintf("wait %d", d.Milliseconds()))
}
func (f *fakeSurface) Screenshot(context.Context) (*entity.Screenshot, error) {
	return &entity.Screenshot{Data: []byte{1}, Format: "jpeg"}, nil
}
func (f *fakeSurface) GetPageContent(context.Context) (*entity.PageContent, error) {
	return &entity.PageContent{URL: "https://shop.test/", Title: "Shop", HTML: f.html}, f.err
}

type fakeReasoner struct {
	output.ReasoningPort
	verdict  *entity.CheckResult
	answer   string
	elements []entity.ElementAnnotation
	raw      string
	question string
}

func (f *fakeReasoner) Verify(_ context.Context, req string, _ *entity.Screenshot) (*entity.CheckResult, error) {
	f.question = req
	return f.verdict, nil
}

func (f *fakeReasoner) Describe(_ context.Context, q string, _ *entity.Screenshot) (string, error) {
	f.question = q
	return f.answer, nil
}

func (f *fakeReasoner) FindElements(context.Context, []entity.Message, *entity.Screenshot) ([]entity.ElementAnnotation, string, error) {
	return f.elements, f.raw, nil
}

type envRecorder struct {
	debug      []string
	broadcasts int
}

func (r *envRecorder) Notify(string)     {}
func (r *envRecorder) Debug(text string) { r.debug = append(r.debug, text) }
func (r *envRecorder) Goto(string)       {}
func (r *envRecorder) Broadcast(context.Context) (*entity.Screenshot, error) {
	r.broadcasts++
	return nil, nil
}

func newEnv(task string) (*output.ToolEnv, *envRecorder) {
	rec := &envRecorder{}
	return &output.ToolEnv{
		Script:   entity.NewScriptContext(),
		Notifier: rec,
		Percepts: rec,
		Messages: []entity.Message{{Role: entity.RoleUser, Content: task}},
	}, rec
}

func TestRegisterAll_CatalogOrderAndConstraints(t *testing.T) {
	registry := service.NewToolRegistry()
	RegisterAll(registry, &fakeSurface{}, &fakeReasoner{}, nil, logger.NewNop(), DefaultCatalogConfig())

	var names []string
	var constrained []string
	for _, tool := range registry.All() {
		names = append(names, tool.Name().String())
		if tool.Constraint() != "" {
			constrained = append(constrained, tool.Name().String())
		}
		assert.Equal(t, "object", tool.Parameters()["type"], tool.Name())
	}

	assert.Equal(t, []string{
		"analyzeScreenshotAndAct", "visitUrl", "comment", "setOutputParameter", "resetBrowser",
		"check", "describeWhatYouSee", "findUIElements", "enterTextValue", "pressKey",
		"clickCoordinates", "scrollPage", "refreshScreen", "readPageText",
	}, names)
	assert.Equal(t, []string{"comment", "check", "enterTextValue"}, constrained)

	_, ok := registry.Get(entity.ToolSetInputParameter)
	assert.False(t, ok)
}

func TestVisitURL(t *testing.T) {
	surface := &fakeSurface{}
	env, rec := newEnv("open shop")

	out, err := NewVisitURLTool(surface, 500*time.Millisecond).Execute(context.Background(), `{"url":"https://shop.test"}`, env)
	require.NoError(t, err)
	assert.Equal(t, "Visited https://shop.test", out)
	assert.Equal(t, []string{"navigate https://shop.test", "wait 500"}, surface.calls)
	assert.Equal(t, 1, rec.broadcasts)
}

func TestVisitURL_BadArguments(t *testing.T) {
	env, _ := newEnv("x")
	_, err := NewVisitURLTool(&fakeSurface{}, 0).Execute(context.Background(), `{"url":`, env)
	assert.ErrorContains(t, err, "invalid arguments")

	_, err = NewVisitURLTool(&fakeSurface{}, 0).Execute(context.Background(), ``, env)
	assert.ErrorContains(t, err, "url is required")
}

func TestEnterText_SubstitutesPlaceholders(t *testing.T) {
	surface := &fakeSurface{}
	env, _ := newEnv("enter {{city}} weather")
	env.Script.SetInput("city", "Berlin")

	out, err := NewEnterTextTool(surface).Execute(context.Background(), `{"text":"{{city}} weather"}`, env)
	require.NoError(t, err)
	assert.Equal(t, "Successfully entered text.", out)
	assert.Equal(t, []string{"type Berlin weather"}, surface.calls)
}

func TestPressKeyAndClick(t *testing.T) {
	surface := &fakeSurface{}
	env, _ := newEnv("x")
	ctx := context.Background()

	out, err := NewPressKeyTool(surface).Execute(ctx, `{"key":"Enter"}`, env)
	require.NoError(t, err)
	assert.Equal(t, `Successfully pressed key "Enter" on the currently focused element.`, out)

	out, err = NewClickCoordinatesTool(surface).Execute(ctx, `{"x":396,"y":707.5}`, env)
	require.NoError(t, err)
	assert.Equal(t, "Successfully clicked at coordinates (396, 707.5)", out)

	_, err = NewClickCoordinatesTool(surface).Execute(ctx, `{"x":1}`, env)
	assert.Error(t, err)

	assert.Equal(t, []string{"key Enter", "click (396,707.5)"}, surface.calls)
}

func TestScrollPage(t *testing.T) {
	surface := &fakeSurface{}
	env, _ := newEnv("x")

	out, err := NewScrollPageTool(surface).Execute(context.Background(), `{"direction":"vertical","distance":-300}`, env)
	require.NoError(t, err)
	assert.Equal(t, "Successfully scrolled the page -300px vertically.", out)
	assert.Equal(t, []string{"scroll (0,-300)"}, surface.calls)

	_, err = NewScrollPageTool(surface).Execute(context.Background(), `{"direction":"diagonal","distance":1}`, env)
	assert.Error(t, err)
}

func TestSurfaceErrorPropagates(t *testing.T) {
	surface := &fakeSurface{err: errors.New("page crashed")}
	env, _ := newEnv("x")

	_, err := NewResetBrowserTool(surface).Execute(context.Background(), "", env)
	assert.ErrorContains(t, err, "page crashed")
}

func TestCommentAndOutputParameter(t *testing.T) {
	env, _ := newEnv("note: login works")
	ctx := context.Background()

	out, err := NewCommentTool().Execute(ctx, "", env)
	require.NoError(t, err)
	assert.Equal(t, "Comment stored: note: login works", out)

	out, err = NewSetOutputParameterTool(logger.NewNop()).Execute(ctx, `{"outParameterName":"age","outParameterValue":"61"}`, env)
	require.NoError(t, err)
	assert.Equal(t, "Set output parameter: {{age}}=61", out)
	v, _ := env.Script.Output("age")
	assert.Equal(t, "61", v)
}

func TestCheck(t *testing.T) {
	env, rec := newEnv("verify the cart is empty")
	reasoner := &fakeReasoner{verdict: &entity.CheckResult{Passed: false, Explanation: "cart shows 2 items"}}

	out, err := NewCheckTool(&fakeSurface{}, reasoner, logger.NewNop()).Execute(context.Background(), "{}", env)
	require.NoError(t, err)
	assert.Equal(t, "Check failed. This is not true.", out)
	assert.Equal(t, "verify the cart is empty", reasoner.question)
	assert.Equal(t, []string{"cart shows 2 items"}, rec.debug)

	reasoner.verdict = &entity.CheckResult{Passed: true}
	out, err = NewCheckTool(&fakeSurface{}, reasoner, logger.NewNop()).Execute(context.Background(), "{}", env)
	require.NoError(t, err)
	assert.Equal(t, "Ok", out)
}

func TestDescribe_FallsBackToTask(t *testing.T) {
	env, _ := newEnv("what is on the page?")
	reasoner := &fakeReasoner{answer: "A login form."}

	out, err := NewDescribeTool(&fakeSurface{}, reasoner).Execute(context.Background(), `{}`, env)
	require.NoError(t, err)
	assert.Equal(t, "A login form.", out)
	assert.Equal(t, "what is on the page?", reasoner.question)
}

func TestFindUIElements_ClicksRequested(t *testing.T) {
	surface := &fakeSurface{}
	env, rec := newEnv("find and click reject all")
	reasoner := &fakeReasoner{
		raw: `[{"description":"Reject all","x":396,"y":707,"userRequestedToClick":true}]`,
		elements: []entity.ElementAnnotation{
			{Description: "Reject all", X: 396, Y: 707, UserRequestedToClick: true},
			{Description: "Accept all", X: 500, Y: 707},
		},
	}

	out, err := NewFindUIElementsTool(surface, reasoner, logger.NewNop()).Execute(context.Background(), "", env)
	require.NoError(t, err)
	assert.Equal(t, reasoner.raw, out)
	assert.Equal(t, []string{"click (396,707)"}, surface.calls)
	assert.Equal(t, 1, rec.broadcasts)
}

func TestReadPageText(t *testing.T) {
	surface := &fakeSurface{html: `<html><body><h1>Cart</h1><p>Total: 42 EUR</p><script>x()</script></body></html>`}
	env, _ := newEnv("read the total")

	out, err := NewReadPageTextTool(surface, 0).Execute(context.Background(), "", env)
	require.NoError(t, err)
	assert.Equal(t, "Title: Shop\nURL: https://shop.test/\n\nCart\nTotal: 42 EUR", out)
}

type fakeRunner struct{ task string }

func (f *fakeRunner) Run(_ context.Context, task string, _ *output.ToolEnv) (string, error) {
	f.task = task
	return "User task completed and performed 0 actions.", nil
}

func TestAnalyzeAndAct_RunsLastUserCommand(t *testing.T) {
	runner := &fakeRunner{}
	env, _ := newEnv("click the blue button")

	out, err := NewAnalyzeAndActTool(runner).Execute(context.Background(), "", env)
	require.NoError(t, err)
	assert.Equal(t, "User task completed and performed 0 actions.", out)
	assert.Equal(t, "click the blue button", runner.task)
}
