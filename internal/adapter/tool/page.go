package tool

import (
	"context"
	"fmt"
	"strings"

	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"
	"script-agent/internal/infrastructure/browser/htmlclean"
)

type ReadPageTextTool struct {
	surface output.ActionSurface
	cfg     htmlclean.Config
}

func NewReadPageTextTool(surface output.ActionSurface, maxChars int) *ReadPageTextTool {
	cfg := htmlclean.DefaultConfig()
	if maxChars > 0 {
		cfg.MaxOutputSize = maxChars
	}
	return &ReadPageTextTool{surface: surface, cfg: cfg}
}

func (t *ReadPageTextTool) Name() entity.ToolName { return entity.ToolReadPageText }
func (t *ReadPageTextTool) Description() string {
	return "Reads the visible text of the current page. Use it to answer questions about long text or values not visible in the screenshot."
}
func (t *ReadPageTextTool) Constraint() string { return "" }
func (t *ReadPageTextTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{})
}

func (t *ReadPageTextTool) Execute(ctx context.Context, _ string, _ *output.ToolEnv) (string, error) {
	page, err := t.surface.GetPageContent(ctx)
	if err != nil {
		return "", err
	}

	text, err := htmlclean.Text(page.HTML, t.cfg)
	if err != nil {
		return "", fmt.Errorf("extract page text: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\nURL: %s\n\n", page.Title, page.URL)
	sb.WriteString(text)
	return sb.String(), nil
}
