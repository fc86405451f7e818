package di

import (
	"context"
	"fmt"

	"script-agent/internal/adapter/tool"
	"script-agent/internal/application/port/input"
	"script-agent/internal/application/port/output"
	"script-agent/internal/application/service"
	"script-agent/internal/config"
	"script-agent/internal/infrastructure/browser/playwright"
	"script-agent/internal/infrastructure/browser/rod"
	"script-agent/internal/infrastructure/events"
	"script-agent/internal/infrastructure/llm/langchain"
	"script-agent/internal/infrastructure/llm/openrouter"
	"script-agent/internal/infrastructure/logger"
	"script-agent/internal/infrastructure/prompts"
	"script-agent/internal/infrastructure/storage/memory"
	"script-agent/internal/infrastructure/storage/redis"
	"script-agent/internal/infrastructure/storage/sqlite"
	"script-agent/internal/usecase/dispatch"
	"script-agent/internal/usecase/extractor"
	"script-agent/internal/usecase/interpreter"
	"script-agent/internal/usecase/reasoning"
	"script-agent/internal/usecase/session"
)

type Container struct {
	Logger     output.LoggerPort
	Surface    output.ActionSurface
	LLM        output.LLMPort
	Reasoner   output.ReasoningPort
	Tools      output.ToolRegistry
	Dispatcher input.CommandDispatcher
	Extractor  input.ScriptExtractor
	Bus        *events.Bus
	Store      output.ContextStore
	Sessions   *session.Manager

	closers []func()
}

// Overrides replaces adapters that would otherwise be built from config.
type Overrides struct {
	Logger  output.LoggerPort
	Surface output.ActionSurface
	LLM     output.LLMPort
	Store   output.ContextStore
}

func NewContainer(ctx context.Context, cfg *config.Config, ov Overrides) (*Container, error) {
	c := &Container{}
	ready := false
	defer func() {
		if !ready {
			c.Close()
		}
	}()

	var err error

	c.Logger = ov.Logger
	if c.Logger == nil {
		l, err := logger.NewLoggerAdapter(logger.Config{
			Level:       cfg.Log.Level,
			Format:      cfg.Log.Format,
			ServiceName: "script-agent",
			File:        cfg.Log.File,
			MaxSizeMB:   cfg.Log.MaxSizeMB,
			MaxBackups:  cfg.Log.MaxBackups,
			MaxAgeDays:  cfg.Log.MaxAgeDays,
			Compress:    cfg.Log.Compress,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		c.Logger = l
		c.onClose(func() { _ = l.Close() })
	}

	c.Store = ov.Store
	if c.Store == nil {
		if c.Store, err = newStore(ctx, cfg.Store); err != nil {
			return nil, err
		}
	}
	store := c.Store
	c.onClose(func() { _ = store.Close() })

	c.Surface = ov.Surface
	if c.Surface == nil {
		if c.Surface, err = newSurface(ctx, cfg.Browser); err != nil {
			return nil, fmt.Errorf("failed to create browser: %w", err)
		}
		surface := c.Surface
		c.onClose(surface.Close)
	}

	c.LLM = ov.LLM
	if c.LLM == nil {
		if err := cfg.RequireLLM(); err != nil {
			return nil, err
		}
		if c.LLM, err = newLLM(cfg.LLM, c.Logger); err != nil {
			return nil, err
		}
	}

	reasonerCfg := reasoning.DefaultConfig()
	reasonerCfg.Temperature = cfg.LLM.Temperature
	reasonerCfg.ViewportWidth = cfg.Browser.ViewportWidth
	reasonerCfg.ViewportHeight = cfg.Browser.ViewportHeight
	c.Reasoner = reasoning.New(c.LLM, c.Logger.WithField("component", "reasoning"), reasonerCfg)

	plans := interpreter.New(c.Surface, c.Reasoner, c.Logger.WithField("component", "interpreter"), interpreter.Config{
		Settle:         cfg.Session.Settle,
		LocationSettle: cfg.Session.LocationSettle,
	})

	registry := service.NewToolRegistry()
	tool.RegisterAll(registry, c.Surface, c.Reasoner, plans, c.Logger.WithField("component", "tools"), tool.CatalogConfig{
		VisitSettle:  cfg.Session.VisitSettle,
		PageTextSize: cfg.Session.PageTextSize,
	})
	c.Tools = registry

	systemPrompt, err := prompts.GenerateCoordinatorPrompt(prompts.CoordinatorBase, registry.All())
	if err != nil {
		return nil, fmt.Errorf("failed to build coordinator prompt: %w", err)
	}

	dispatchCfg := dispatch.DefaultConfig(systemPrompt)
	dispatchCfg.FollowUpPercept = cfg.Session.FollowUpPercept
	dispatchCfg.MaxResultLen = cfg.Session.MaxResultLen
	c.Dispatcher = dispatch.New(c.Reasoner, registry, c.Surface, c.Logger.WithField("component", "dispatch"), dispatchCfg)

	c.Extractor = extractor.New(c.LLM, c.Logger.WithField("component", "extractor"))

	c.Bus = events.NewBus(c.Logger.WithField("component", "events"), cfg.Session.EventBuffer)
	bus := c.Bus
	c.onClose(bus.Shutdown)

	c.Sessions = session.NewManager(session.Deps{
		Dispatcher: c.Dispatcher,
		Events:     c.Bus,
		Store:      c.Store,
		Logger:     c.Logger,
	}, session.Config{QueueSize: cfg.Session.QueueSize})
	sessions := c.Sessions
	c.onClose(sessions.CloseAll)

	c.Logger.Info("Container ready",
		"browser", cfg.Browser.Driver,
		"llm", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"store", cfg.Store.Driver,
		"tools", len(registry.All()))
	ready = true
	return c, nil
}

// Runner plays scripts on the session id. An empty id uses a fresh session.
func (c *Container) Runner(sessionID string) input.ScriptRunner {
	return session.NewRunner(c.Sessions, sessionID)
}

// onClose registers cleanup run by Close in reverse order.
func (c *Container) onClose(fn func()) {
	c.closers = append(c.closers, fn)
}

func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func newSurface(ctx context.Context, cfg config.BrowserConfig) (output.ActionSurface, error) {
	switch cfg.Driver {
	case "playwright":
		pwCfg := playwright.DefaultConfig()
		pwCfg.Headless = cfg.Headless
		pwCfg.Timeout = cfg.Timeout
		pwCfg.ViewportWidth = cfg.ViewportWidth
		pwCfg.ViewportHeight = cfg.ViewportHeight
		pwCfg.JPEGQuality = cfg.JPEGQuality
		pwCfg.InstallDriver = cfg.InstallDriver
		s, err := playwright.New(pwCfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		rodCfg := rod.DefaultConfig()
		rodCfg.Headless = cfg.Headless
		rodCfg.NoSandbox = cfg.NoSandbox
		rodCfg.ControlURL = cfg.ControlURL
		rodCfg.Timeout = cfg.Timeout
		rodCfg.ViewportWidth = cfg.ViewportWidth
		rodCfg.ViewportHeight = cfg.ViewportHeight
		rodCfg.JPEGQuality = cfg.JPEGQuality
		rodCfg.MaxWidth = cfg.MaxWidth
		s, err := rod.NewBrowserAdapter(ctx, rodCfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func newLLM(cfg config.LLMConfig, log output.LoggerPort) (output.LLMPort, error) {
	switch cfg.Provider {
	case "langchain":
		a, err := langchain.NewOpenAI(langchain.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		}, log.WithField("component", "llm"))
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		llmCfg := openrouter.DefaultConfig(cfg.APIKey, cfg.Model)
		if cfg.BaseURL != "" {
			llmCfg.BaseURL = cfg.BaseURL
		}
		if cfg.ImageDetail != "" {
			llmCfg.ImageDetail = cfg.ImageDetail
		}
		llmCfg.Logger = log.WithField("component", "llm")
		return openrouter.New(llmCfg), nil
	}
}

func newStore(ctx context.Context, cfg config.StoreConfig) (output.ContextStore, error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open context store: %w", err)
		}
		return s, nil
	case "redis":
		s, err := redis.New(ctx, redis.Config{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open context store: %w", err)
		}
		return s, nil
	default:
		return memory.New(), nil
	}
}
