package userinteraction

import (
	"bytes"
	"context"
	"testing"

	"script-agent/internal/domain/entity"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func init() {
	color.NoColor = true
}

func TestWatch_RendersRun(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsole(&buf, false)

	events := make(chan entity.Event, 16)
	commands := []string{"{{user}}=alice", "open example.com", "exit. done"}
	events <- entity.Event{Type: entity.EventScriptState, Script: &entity.ScriptState{Commands: commands, Cursor: 0, Busy: true}}
	events <- entity.Event{Type: entity.EventServerResponse, FunctionName: "setInputParameter", Text: "linked"}
	events <- entity.Event{Type: entity.EventScriptState, Script: &entity.ScriptState{Commands: commands, Cursor: 1, Busy: true}}
	events <- entity.Event{Type: entity.EventServerResponse, Debug: true, Text: "//// selectTool: completed in 3ms"}
	events <- entity.Event{Type: entity.EventServerResponse, Text: "An error occurred while selecting a tool. <details>\n boom"}
	events <- entity.Event{Type: entity.EventGoto, Label: "exit"}
	events <- entity.Event{Type: entity.EventBrowserScreenshot}
	close(events)

	Watch(context.Background(), events, console)
	out := buf.String()

	assert.Contains(t, out, "Step 1/3 ━━━ {{user}}=\n")
	assert.Contains(t, out, "📥 Input ✓ linked")
	assert.Contains(t, out, "Step 2/3 ━━━ open example.com")
	assert.NotContains(t, out, "selectTool")
	assert.Contains(t, out, "✗ An error occurred while selecting a tool. <details>\n")
	assert.Contains(t, out, "↪ goto exit")
	assert.NotContains(t, out, "alice")
}

func TestWatch_VerboseShowsDebug(t *testing.T) {
	var buf bytes.Buffer
	events := make(chan entity.Event, 1)
	events <- entity.Event{Type: entity.EventServerResponse, Debug: true, Text: "//// execute: visitUrl"}
	close(events)

	Watch(context.Background(), events, NewConsole(&buf, true))
	assert.Equal(t, "  execute: visitUrl\n", buf.String())
}

func TestShowSummary(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf, false).ShowSummary(context.Background(), 3, 1, "{{city}}=Oslo")
	assert.Contains(t, buf.String(), "Finished: 3 steps, 1 failed")
	assert.Contains(t, buf.String(), "{{city}}=Oslo")
}

func TestIsFailure(t *testing.T) {
	assert.True(t, isFailure("Check failed. This is not true."))
	assert.True(t, isFailure("teleport is not supported."))
	assert.False(t, isFailure("Visited https://example.com"))
}
