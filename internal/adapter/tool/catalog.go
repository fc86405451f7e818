package tool

import (
	"time"

	"script-agent/internal/application/port/output"
)

type CatalogConfig struct {
	VisitSettle  time.Duration
	PageTextSize int
}

func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		VisitSettle:  500 * time.Millisecond,
		PageTextSize: 20000,
	}
}

// RegisterAll registers the full tool catalog in the order the model sees it.
func RegisterAll(
	registry output.ToolRegistry,
	surface output.ActionSurface,
	reasoner output.ReasoningPort,
	runner PlanRunner,
	logger output.LoggerPort,
	cfg CatalogConfig,
) {
	registry.Register(NewAnalyzeAndActTool(runner))
	registry.Register(NewVisitURLTool(surface, cfg.VisitSettle))
	registry.Register(NewCommentTool())
	registry.Register(NewSetOutputParameterTool(logger))
	registry.Register(NewResetBrowserTool(surface))
	registry.Register(NewCheckTool(surface, reasoner, logger))
	registry.Register(NewDescribeTool(surface, reasoner))
	registry.Register(NewFindUIElementsTool(surface, reasoner, logger))
	registry.Register(NewEnterTextTool(surface))
	registry.Register(NewPressKeyTool(surface))
	registry.Register(NewClickCoordinatesTool(surface))
	registry.Register(NewScrollPageTool(surface))
	registry.Register(NewRefreshScreenTool())
	registry.Register(NewReadPageTextTool(surface, cfg.PageTextSize))
}
