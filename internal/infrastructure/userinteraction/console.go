package userinteraction

import (
	"context"
	"fmt"
	"io"
	"strings"

	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"

	"github.com/fatih/color"
)

var _ output.ProgressPort = (*Console)(nil)

// failure prefixes of coordinator and tool replies
var failurePrefixes = []string{
	"An error occurred",
	"I'm sorry, error occurred",
	"Check failed",
	"Error:",
	"Warning:",
}

type Console struct {
	out     io.Writer
	verbose bool

	step    *color.Color
	tool    *color.Color
	ok      *color.Color
	fail    *color.Color
	jump    *color.Color
	dim     *color.Color
	heading *color.Color
}

// NewConsole writes to out. verbose also prints debug lines.
func NewConsole(out io.Writer, verbose bool) *Console {
	return &Console{
		out:     out,
		verbose: verbose,
		step:    color.New(color.FgCyan, color.Bold),
		tool:    color.New(color.FgYellow, color.Bold),
		ok:      color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		jump:    color.New(color.FgMagenta),
		dim:     color.New(color.Faint),
		heading: color.New(color.Bold),
	}
}

func (c *Console) ShowStep(_ context.Context, index, total int, command string) {
	c.step.Fprintf(c.out, "\n━━━ Step %d/%d ━━━ ", index, total)
	fmt.Fprintln(c.out, entity.MaskAssignment(command))
}

func (c *Console) ShowMessage(_ context.Context, functionName, text string, isError bool) {
	if isError {
		c.fail.Fprint(c.out, "✗ ")
		fmt.Fprintln(c.out, truncate(firstLine(text), 300))
		return
	}
	if functionName != "" {
		icon, name := toolDisplay(functionName)
		c.tool.Fprintf(c.out, "%s %s ", icon, name)
	}
	c.ok.Fprintf(c.out, "✓ %s\n", truncate(text, 300))
}

func (c *Console) ShowDebug(_ context.Context, text string) {
	if !c.verbose {
		return
	}
	c.dim.Fprintln(c.out, "  "+strings.TrimSpace(strings.TrimPrefix(text, entity.DebugPrefix)))
}

func (c *Console) ShowJump(_ context.Context, label string) {
	c.jump.Fprintf(c.out, "↪ goto %s\n", label)
}

func (c *Console) ShowSummary(_ context.Context, steps, failed int, rendered string) {
	c.heading.Fprintf(c.out, "\n━━━ Finished: %d steps, %d failed ━━━\n", steps, failed)
	if rendered != "" {
		fmt.Fprintln(c.out, rendered)
	}
}

// Watch renders session events until the channel closes or ctx ends.
func Watch(ctx context.Context, events <-chan entity.Event, p output.ProgressPort) {
	lastCursor, lastBusy := -1, false
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			switch e.Type {
			case entity.EventScriptState:
				if e.Script == nil {
					continue
				}
				st := e.Script
				if st.Busy && (!lastBusy || st.Cursor != lastCursor) && st.Cursor < len(st.Commands) {
					p.ShowStep(ctx, st.Cursor+1, len(st.Commands), st.Commands[st.Cursor])
				}
				lastCursor, lastBusy = st.Cursor, st.Busy
			case entity.EventServerResponse:
				if e.Debug {
					p.ShowDebug(ctx, e.Text)
					continue
				}
				p.ShowMessage(ctx, e.FunctionName, e.Text, isFailure(e.Text))
			case entity.EventGoto:
				p.ShowJump(ctx, e.Label)
			}
		}
	}
}

func isFailure(text string) bool {
	for _, prefix := range failurePrefixes {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return strings.HasSuffix(text, " is not supported.")
}

func toolDisplay(name string) (string, string) {
	displays := map[entity.ToolName][2]string{
		entity.ToolAnalyzeAndAct:      {"🤖", "Act"},
		entity.ToolVisitURL:           {"🌐", "Visit"},
		entity.ToolComment:            {"📝", "Comment"},
		entity.ToolSetOutputParameter: {"📤", "Output"},
		entity.ToolSetInputParameter:  {"📥", "Input"},
		entity.ToolResetBrowser:       {"♻️", "Reset"},
		entity.ToolCheck:              {"🔎", "Check"},
		entity.ToolDescribe:           {"👁️", "Describe"},
		entity.ToolFindUIElements:     {"🧭", "Find elements"},
		entity.ToolEnterText:          {"✏️", "Enter text"},
		entity.ToolPressKey:           {"⌨️", "Key"},
		entity.ToolClickCoordinates:   {"🖱️", "Click"},
		entity.ToolScrollPage:         {"📜", "Scroll"},
		entity.ToolRefreshScreen:      {"📸", "Screenshot"},
		entity.ToolReadPageText:       {"📄", "Page text"},
	}
	if d, ok := displays[entity.ToolName(name)]; ok {
		return d[0], d[1]
	}
	return "🔧", name
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
