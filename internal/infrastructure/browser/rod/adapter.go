package rod

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"
	"sync"
	"time"

	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

var _ output.ActionSurface = (*BrowserAdapter)(nil)

const (
	defaultTimeout    = 10 * time.Second
	defaultSlowMotion = 0
)

type BrowserAdapter struct {
	// one browser, many sessions: every call holds mu
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	cfg      BrowserConfig
	closed   bool
}

type BrowserConfig struct {
	Headless   bool
	SlowMotion time.Duration
	Timeout    time.Duration
	NoSandbox  bool
	DevTools   bool
	// ControlURL attaches to a running browser instead of launching one.
	ControlURL     string
	ViewportWidth  int
	ViewportHeight int
	JPEGQuality    int
	// Screenshots wider than this are scaled down. Zero keeps the original size.
	MaxWidth int
}

func DefaultConfig() BrowserConfig {
	return BrowserConfig{
		Headless:       false,
		SlowMotion:     defaultSlowMotion,
		Timeout:        defaultTimeout,
		NoSandbox:      false,
		DevTools:       false,
		ViewportWidth:  1000,
		ViewportHeight: 800,
		JPEGQuality:    80,
	}
}

func NewBrowserAdapter(ctx context.Context, cfg BrowserConfig) (*BrowserAdapter, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	b := &BrowserAdapter{cfg: cfg}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().
			Headless(cfg.Headless).
			Devtools(cfg.DevTools).
			NoSandbox(cfg.NoSandbox).
			Delete("use-mock-keychain").
			Set("window-size", fmt.Sprintf("%d,%d", cfg.ViewportWidth, cfg.ViewportHeight+120))

		url, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		b.launcher = l
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).SlowMotion(cfg.SlowMotion)
	if ctx != nil {
		browser = browser.Context(ctx)
	}
	if err := browser.Connect(); err != nil {
		b.killLauncher()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	// the launch context must not bound the browser lifetime
	b.browser = browser.Context(context.Background())

	page, err := b.newPage()
	if err != nil {
		b.Close()
		return nil, err
	}
	b.page = page
	return b, nil
}

func (b *BrowserAdapter) newPage() (*rod.Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	if b.cfg.ViewportWidth > 0 && b.cfg.ViewportHeight > 0 {
		err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             b.cfg.ViewportWidth,
			Height:            b.cfg.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to set viewport: %w", err)
		}
	}
	return page, nil
}

// use returns the page bound to ctx, or an error once the adapter is closed.
func (b *BrowserAdapter) use(ctx context.Context) (*rod.Page, error) {
	if b.closed || b.page == nil {
		return nil, entity.ErrSurfaceClosed
	}
	return b.page.Context(ctx), nil
}

func (b *BrowserAdapter) Navigate(ctx context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.use(ctx)
	if err != nil {
		return err
	}
	if err := page.Timeout(b.cfg.Timeout).Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := page.Timeout(b.cfg.Timeout).WaitLoad(); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	_ = page.WaitIdle(5 * time.Second)
	return nil
}

func (b *BrowserAdapter) Click(ctx context.Context, p entity.Point) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.use(ctx)
	if err != nil {
		return err
	}
	if err := page.Mouse.MoveTo(proto.Point{X: p.X, Y: p.Y}); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	if err := page.Mouse.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

func (b *BrowserAdapter) Hover(ctx context.Context, p entity.Point) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.use(ctx)
	if err != nil {
		return err
	}
	if err := page.Mouse.MoveTo(proto.Point{X: p.X, Y: p.Y}); err != nil {
		return fmt.Errorf("hover failed: %w", err)
	}
	return nil
}

func (b *BrowserAdapter) Scroll(ctx context.Context, delta entity.Point) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.use(ctx)
	if err != nil {
		return err
	}
	if err := page.Mouse.Scroll(delta.X, delta.Y, 1); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}

// PressKey accepts names like "Enter" or combinations like "Control+A".
func (b *BrowserAdapter) PressKey(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.use(ctx)
	if err != nil {
		return err
	}

	modifiers, main, err := parseKeyCombo(key)
	if err != nil {
		return err
	}
	if err := page.KeyActions().Press(modifiers...).Type(main).Do(); err != nil {
		return fmt.Errorf("key press failed: %w", err)
	}
	return nil
}

func (b *BrowserAdapter) TypeText(ctx context.Context, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.use(ctx)
	if err != nil {
		return err
	}
	if err := page.InsertText(text); err != nil {
		return fmt.Errorf("typing failed: %w", err)
	}
	return nil
}

func (b *BrowserAdapter) Wait(ctx context.Context, d time.Duration) error {
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

func (b *BrowserAdapter) Screenshot(ctx context.Context) (*entity.Screenshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.use(ctx)
	if err != nil {
		return nil, err
	}

	imgBytes, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(b.cfg.JPEGQuality),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}

	shot := &entity.Screenshot{
		Data:       imgBytes,
		Format:     "jpeg",
		Width:      img.Bounds().Dx(),
		Height:     img.Bounds().Dy(),
		CapturedAt: time.Now(),
	}
	if info, err := page.Info(); err == nil {
		shot.URL = info.URL
	}

	if b.cfg.MaxWidth > 0 && shot.Width > b.cfg.MaxWidth {
		img = imaging.Resize(img, b.cfg.MaxWidth, 0, imaging.Lanczos)
		buf := new(bytes.Buffer)
		if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: b.cfg.JPEGQuality}); err != nil {
			return nil, fmt.Errorf("jpeg encode failed: %w", err)
		}
		shot.Data = buf.Bytes()
		shot.Width = img.Bounds().Dx()
		shot.Height = img.Bounds().Dy()
	}
	return shot, nil
}

func (b *BrowserAdapter) GetPageContent(ctx context.Context) (*entity.PageContent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.use(ctx)
	if err != nil {
		return nil, err
	}

	info, err := page.Info()
	if err != nil {
		return nil, fmt.Errorf("page info failed: %w", err)
	}
	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to get HTML: %w", err)
	}

	return &entity.PageContent{
		URL:   info.URL,
		Title: info.Title,
		HTML:  html,
	}, nil
}

func (b *BrowserAdapter) CurrentURL(ctx context.Context) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.use(ctx)
	if err != nil {
		return ""
	}
	info, err := page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Reset drops the current page with its state and opens a blank one.
func (b *BrowserAdapter) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return entity.ErrSurfaceClosed
	}
	if b.page != nil {
		_ = b.page.Close()
	}
	if err := b.browser.SetCookies(nil); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}

	page, err := b.newPage()
	if err != nil {
		b.page = nil
		return fmt.Errorf("reset failed: %w", err)
	}
	b.page = page
	return nil
}

func (b *BrowserAdapter) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	if b.browser != nil {
		_ = b.browser.Close()
	}
	b.killLauncher()
}

func (b *BrowserAdapter) killLauncher() {
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
}

var namedKeys = map[string]input.Key{
	"enter":      input.Enter,
	"return":     input.Enter,
	"tab":        input.Tab,
	"escape":     input.Escape,
	"esc":        input.Escape,
	"backspace":  input.Backspace,
	"delete":     input.Delete,
	"space":      input.Space,
	"arrowup":    input.ArrowUp,
	"arrowdown":  input.ArrowDown,
	"arrowleft":  input.ArrowLeft,
	"arrowright": input.ArrowRight,
	"home":       input.Home,
	"end":        input.End,
	"pageup":     input.PageUp,
	"pagedown":   input.PageDown,
	"control":    input.ControlLeft,
	"ctrl":       input.ControlLeft,
	"shift":      input.ShiftLeft,
	"alt":        input.AltLeft,
	"meta":       input.MetaLeft,
	"f5":         input.F5,
}

func lookupKey(name string) (input.Key, error) {
	if k, ok := namedKeys[strings.ToLower(name)]; ok {
		return k, nil
	}
	if r := []rune(name); len(r) == 1 {
		return input.Key(r[0]), nil
	}
	return 0, fmt.Errorf("unsupported key %q", name)
}

func parseKeyCombo(combo string) ([]input.Key, input.Key, error) {
	parts := strings.Split(combo, "+")
	if combo == "+" {
		parts = []string{"+"}
	}

	keys := make([]input.Key, 0, len(parts))
	for _, part := range parts {
		k, err := lookupKey(strings.TrimSpace(part))
		if err != nil {
			return nil, 0, err
		}
		keys = append(keys, k)
	}
	return keys[:len(keys)-1], keys[len(keys)-1], nil
}
