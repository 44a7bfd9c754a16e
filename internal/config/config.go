package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/investeai/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Models   ModelsConfig   `mapstructure:"models"`
	Session  SessionConfig  `mapstructure:"session"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	APIKey       string `mapstructure:"api_key"`
	TemplatesDir string `mapstructure:"templates_dir"` // empty uses embedded templates
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// BacktestConfig selects and configures the backtest entry point.
type BacktestConfig struct {
	Provider  string        `mapstructure:"provider"` // "python", "remote" or "" (none)
	ModelFile string        `mapstructure:"model_file"`
	ModelDir  string        `mapstructure:"model_dir"` // empty means the executable's directory
	Timeout   time.Duration `mapstructure:"timeout"`
	Python    PythonConfig  `mapstructure:"python"`
	Remote    RemoteConfig  `mapstructure:"remote"`
}

type PythonConfig struct {
	Bin      string `mapstructure:"bin"` // empty auto-detects .venv then PATH
	WorkDir  string `mapstructure:"workdir"`
	Module   string `mapstructure:"module"`
	Function string `mapstructure:"function"`
}

type RemoteConfig struct {
	URL             string        `mapstructure:"url"`
	MaxRetryElapsed time.Duration `mapstructure:"max_retry_elapsed"`
}

// ModelsConfig configures where model files come from.
type ModelsConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	S3   S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// SessionConfig bounds the per-browser result cache.
type SessionConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	MaxSessions   int           `mapstructure:"max_sessions"`
	RunsPerMinute float64       `mapstructure:"runs_per_minute"`
	RunBurst      int           `mapstructure:"run_burst"`
}

type LLMConfig struct {
	Provider string       `mapstructure:"provider"`
	Claude   ClaudeConfig `mapstructure:"claude"`
	OpenAI   OpenAIConfig `mapstructure:"openai"`
	Ollama   OllamaConfig `mapstructure:"ollama"`
}

type ClaudeConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"` // OpenAI-compatible gateways
}

type OllamaConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	// Support environment variable overrides
	v.SetEnvPrefix("INVESTEAI")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults mirrors Defaults so partial files keep sane values.
func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("backtest.model_file", d.Backtest.ModelFile)
	v.SetDefault("backtest.timeout", d.Backtest.Timeout)
	v.SetDefault("backtest.python.module", d.Backtest.Python.Module)
	v.SetDefault("backtest.python.function", d.Backtest.Python.Function)
	v.SetDefault("backtest.remote.max_retry_elapsed", d.Backtest.Remote.MaxRetryElapsed)
	v.SetDefault("models.type", d.Models.Type)
	v.SetDefault("session.ttl", d.Session.TTL)
	v.SetDefault("session.max_sessions", d.Session.MaxSessions)
	v.SetDefault("session.runs_per_minute", d.Session.RunsPerMinute)
	v.SetDefault("session.run_burst", d.Session.RunBurst)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8501,
		},
		Log: LogConfig{
			Level: "info",
		},
		Backtest: BacktestConfig{
			Provider:  "python",
			ModelFile: "model_ep30.keras",
			Timeout:   5 * time.Minute,
			Python: PythonConfig{
				Module:   "deepqlearning_investeai",
				Function: "rodar_modelo_backtest",
			},
			Remote: RemoteConfig{
				MaxRetryElapsed: 30 * time.Second,
			},
		},
		Models: ModelsConfig{
			Type: "localfs",
		},
		Session: SessionConfig{
			TTL:           2 * time.Hour,
			MaxSessions:   500,
			RunsPerMinute: 6,
			RunBurst:      2,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Backtest.Provider {
	case "", "python":
	case "remote":
		if c.Backtest.Remote.URL == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("backtest.remote.url required when provider is remote"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown backtest provider %q", c.Backtest.Provider))
	}

	if c.Backtest.ModelFile == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("backtest.model_file required"))
	}
	if c.Backtest.Timeout < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest.timeout cannot be negative, got %s", c.Backtest.Timeout))
	}

	switch c.Models.Type {
	case "", "localfs":
	case "s3":
		if c.Models.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("models.s3.bucket required when models type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown models type %q", c.Models.Type))
	}

	if c.Session.MaxSessions < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("session.max_sessions must be positive, got %d", c.Session.MaxSessions))
	}
	if c.Session.RunsPerMinute < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("session.runs_per_minute cannot be negative, got %f", c.Session.RunsPerMinute))
	}

	// LLM validation - if provider set, check config exists
	if c.LLM.Provider != "" {
		switch c.LLM.Provider {
		case "claude":
			if c.LLM.Claude.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("claude api_key required when provider is claude"))
			}
		case "openai":
			if c.LLM.OpenAI.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("openai api_key required when provider is openai"))
			}
		case "ollama":
			if c.LLM.Ollama.Endpoint == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("ollama endpoint required when provider is ollama"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
		}
	}

	return nil
}
