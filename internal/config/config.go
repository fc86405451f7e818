package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"script-agent/internal/application/port/output"

	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "SCRIPT_AGENT"
	FileName       = "script-agent"
	apiKeyEnv      = "OPENROUTER_API_KEY"
	modelEnv       = "OPENROUTER_MODEL_NAME"
	defaultModel   = "openai/gpt-4o"
	defaultBaseURL = "https://openrouter.ai/api/v1"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Browser BrowserConfig `mapstructure:"browser"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Store   StoreConfig   `mapstructure:"store"`
	Log     LogConfig     `mapstructure:"log"`
	Session SessionConfig `mapstructure:"session"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	MessagesPerSecond float64       `mapstructure:"messages_per_second"`
	Burst             int           `mapstructure:"burst"`
	AccessLogJSON     bool          `mapstructure:"access_log_json"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type BrowserConfig struct {
	// Driver is "rod" or "playwright".
	Driver         string        `mapstructure:"driver"`
	Headless       bool          `mapstructure:"headless"`
	NoSandbox      bool          `mapstructure:"no_sandbox"`
	ControlURL     string        `mapstructure:"control_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ViewportWidth  int           `mapstructure:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height"`
	JPEGQuality    int           `mapstructure:"jpeg_quality"`
	MaxWidth       int           `mapstructure:"max_width"`
	InstallDriver  bool          `mapstructure:"install_driver"`
}

type LLMConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "langchain".
	Provider    string  `mapstructure:"provider"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	ImageDetail string  `mapstructure:"image_detail"`
	Temperature float32 `mapstructure:"temperature"`
}

type StoreConfig struct {
	// Driver is "memory", "sqlite" or "redis".
	Driver string      `mapstructure:"driver"`
	Path   string      `mapstructure:"path"`
	Redis  RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type SessionConfig struct {
	QueueSize       int           `mapstructure:"queue_size"`
	FollowUpPercept time.Duration `mapstructure:"follow_up_percept"`
	MaxResultLen    int           `mapstructure:"max_result_len"`
	Settle          time.Duration `mapstructure:"settle"`
	LocationSettle  time.Duration `mapstructure:"location_settle"`
	VisitSettle     time.Duration `mapstructure:"visit_settle"`
	PageTextSize    int           `mapstructure:"page_text_size"`
	EventBuffer     int           `mapstructure:"event_buffer"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.messages_per_second", 10.0)
	v.SetDefault("server.burst", 20)
	v.SetDefault("server.access_log_json", false)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("browser.driver", "rod")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.control_url", "")
	v.SetDefault("browser.timeout", 30*time.Second)
	v.SetDefault("browser.viewport_width", 1000)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.jpeg_quality", 80)
	v.SetDefault("browser.max_width", 0)
	v.SetDefault("browser.install_driver", false)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", defaultBaseURL)
	v.SetDefault("llm.image_detail", "high")
	v.SetDefault("llm.temperature", 0.0)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.path", "script-agent.db")
	v.SetDefault("store.redis.address", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.ttl", 7*24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "log/script-agent.log")
	v.SetDefault("log.max_size_mb", 20)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)
	v.SetDefault("log.compress", false)

	v.SetDefault("session.queue_size", 16)
	v.SetDefault("session.follow_up_percept", time.Second)
	v.SetDefault("session.max_result_len", 20000)
	v.SetDefault("session.settle", 100*time.Millisecond)
	v.SetDefault("session.location_settle", time.Second)
	v.SetDefault("session.visit_settle", 500*time.Millisecond)
	v.SetDefault("session.page_text_size", 20000)
	v.SetDefault("session.event_buffer", 64)
}

// Load reads defaults, then the config file, then SCRIPT_AGENT_* variables.
// An empty file searches for script-agent.yaml in the working directory.
// env supplies the OpenRouter credentials when the config has none.
func Load(v *viper.Viper, file string, env output.ConfigPort) (*Config, error) {
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if env != nil {
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = env.Get(apiKeyEnv)
		}
		if cfg.LLM.Model == "" {
			cfg.LLM.Model = env.GetWithDefault(modelEnv, defaultModel)
		}
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Browser.Driver {
	case "rod", "playwright":
	default:
		errs = append(errs, fmt.Errorf("browser.driver: unknown driver %q", c.Browser.Driver))
	}
	switch c.LLM.Provider {
	case "openai", "langchain":
	default:
		errs = append(errs, fmt.Errorf("llm.provider: unknown provider %q", c.LLM.Provider))
	}
	switch c.Store.Driver {
	case "memory", "sqlite", "redis":
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver))
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		errs = append(errs, errors.New("browser viewport must be positive"))
	}
	if c.Session.QueueSize <= 0 {
		errs = append(errs, errors.New("session.queue_size must be positive"))
	}
	return errors.Join(errs...)
}

// RequireLLM reports a missing API key. Only commands that talk to a model call it.
func (c *Config) RequireLLM() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is missing: set %s_LLM_API_KEY or %s", EnvPrefix, apiKeyEnv)
	}
	return nil
}
