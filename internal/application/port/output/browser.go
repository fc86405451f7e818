package output

import (
	"context"
	"time"

	"script-agent/internal/domain/entity"
)

// ActionSurface is the controlled target: one page, driven by coordinates.
type ActionSurface interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, p entity.Point) error
	Hover(ctx context.Context, p entity.Point) error
	Scroll(ctx context.Context, delta entity.Point) error
	PressKey(ctx context.Context, key string) error
	TypeText(ctx context.Context, text string) error
	Wait(ctx context.Context, d time.Duration) error

	Screenshot(ctx context.Context) (*entity.Screenshot, error)
	GetPageContent(ctx context.Context) (*entity.PageContent, error)
	CurrentURL(ctx context.Context) string

	Reset(ctx context.Context) error
	Close()
}
