package playwright

import (
	"context"
	"fmt"
	"sync"
	"time"

	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"

	pw "github.com/playwright-community/playwright-go"
)

var _ output.ActionSurface = (*Adapter)(nil)

type Config struct {
	Headless       bool
	SlowMotion     time.Duration
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	JPEGQuality    int
	// InstallDriver downloads the driver and Chromium when they are missing.
	InstallDriver bool
}

func DefaultConfig() Config {
	return Config{
		Headless:       true,
		Timeout:        30 * time.Second,
		ViewportWidth:  1000,
		ViewportHeight: 800,
		JPEGQuality:    80,
	}
}

// Adapter drives one Chromium page through Playwright.
type Adapter struct {
	mu      sync.Mutex
	pw      *pw.Playwright
	browser pw.Browser
	bctx    pw.BrowserContext
	page    pw.Page
	cfg     Config
	closed  bool
}

func New(cfg Config) (*Adapter, error) {
	if cfg.InstallDriver {
		if err := pw.Install(&pw.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	runner, err := pw.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := runner.Chromium.Launch(pw.BrowserTypeLaunchOptions{
		Headless: pw.Bool(cfg.Headless),
		SlowMo:   pw.Float(float64(cfg.SlowMotion.Milliseconds())),
		Timeout:  pw.Float(float64(cfg.Timeout.Milliseconds())),
	})
	if err != nil {
		_ = runner.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	a := &Adapter{pw: runner, browser: browser, cfg: cfg}
	if err := a.openContext(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Adapter) openContext() error {
	bctx, err := a.browser.NewContext(pw.BrowserNewContextOptions{
		Viewport: &pw.Size{Width: a.cfg.ViewportWidth, Height: a.cfg.ViewportHeight},
	})
	if err != nil {
		return fmt.Errorf("failed to create context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(a.cfg.Timeout.Milliseconds()))
	page.OnDialog(func(d pw.Dialog) { _ = d.Accept() })

	a.bctx = bctx
	a.page = page
	return nil
}

// current returns the page unless the adapter is closed or ctx is done.
func (a *Adapter) current(ctx context.Context) (pw.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.closed || a.page == nil {
		return nil, entity.ErrSurfaceClosed
	}
	return a.page, nil
}

func (a *Adapter) Navigate(ctx context.Context, url string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	page, err := a.current(ctx)
	if err != nil {
		return err
	}
	if _, err := page.Goto(url, pw.PageGotoOptions{WaitUntil: pw.WaitUntilStateLoad}); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (a *Adapter) Click(ctx context.Context, p entity.Point) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	page, err := a.current(ctx)
	if err != nil {
		return err
	}
	if err := page.Mouse().Click(p.X, p.Y); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

func (a *Adapter) Hover(ctx context.Context, p entity.Point) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	page, err := a.current(ctx)
	if err != nil {
		return err
	}
	if err := page.Mouse().Move(p.X, p.Y); err != nil {
		return fmt.Errorf("hover failed: %w", err)
	}
	return nil
}

func (a *Adapter) Scroll(ctx context.Context, delta entity.Point) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	page, err := a.current(ctx)
	if err != nil {
		return err
	}
	if err := page.Mouse().Wheel(delta.X, delta.Y); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}

// PressKey takes Playwright key names, which already cover combos like "Control+A".
func (a *Adapter) PressKey(ctx context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	page, err := a.current(ctx)
	if err != nil {
		return err
	}
	if err := page.Keyboard().Press(key); err != nil {
		return fmt.Errorf("key press failed: %w", err)
	}
	return nil
}

func (a *Adapter) TypeText(ctx context.Context, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	page, err := a.current(ctx)
	if err != nil {
		return err
	}
	if err := page.Keyboard().Type(text); err != nil {
		return fmt.Errorf("typing failed: %w", err)
	}
	return nil
}

func (a *Adapter) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Adapter) Screenshot(ctx context.Context) (*entity.Screenshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	page, err := a.current(ctx)
	if err != nil {
		return nil, err
	}
	data, err := page.Screenshot(pw.PageScreenshotOptions{
		Type:    pw.ScreenshotTypeJpeg,
		Quality: pw.Int(a.cfg.JPEGQuality),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}

	return &entity.Screenshot{
		Data:       data,
		Format:     "jpeg",
		Width:      a.cfg.ViewportWidth,
		Height:     a.cfg.ViewportHeight,
		URL:        page.URL(),
		CapturedAt: time.Now(),
	}, nil
}

func (a *Adapter) GetPageContent(ctx context.Context) (*entity.PageContent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	page, err := a.current(ctx)
	if err != nil {
		return nil, err
	}
	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to get HTML: %w", err)
	}
	title, err := page.Title()
	if err != nil {
		return nil, fmt.Errorf("failed to get title: %w", err)
	}
	return &entity.PageContent{URL: page.URL(), Title: title, HTML: html}, nil
}

func (a *Adapter) CurrentURL(ctx context.Context) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	page, err := a.current(ctx)
	if err != nil {
		return ""
	}
	return page.URL()
}

// Reset discards cookies, storage and history by replacing the browser context.
func (a *Adapter) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.current(ctx); err != nil {
		return err
	}
	if err := a.bctx.Close(); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	a.page = nil
	if err := a.openContext(); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	return nil
}

func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	a.closed = true
	if a.bctx != nil {
		_ = a.bctx.Close()
	}
	if a.browser != nil {
		_ = a.browser.Close()
	}
	if a.pw != nil {
		_ = a.pw.Stop()
	}
}
