// Package settings loads config.toml, applies defaults and environment
// overrides, and validates the result.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"GamePartner/pkg/assistant"
	"GamePartner/pkg/overlay"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"

	envPrefix = "GAMEPARTNER"

	// MinCooldown is the floor applied to ai.cooldown_seconds.
	MinCooldown = 5 * time.Second

	defaultAnthropicModel = "claude-sonnet-4-5"
	defaultOllamaModel    = "llava"
)

type API struct {
	Provider              string `mapstructure:"provider" json:"provider"`
	ClaudeAPIKey          string `mapstructure:"claude_api_key" json:"claude_api_key"`
	Model                 string `mapstructure:"model" json:"model"`
	Endpoint              string `mapstructure:"endpoint" json:"endpoint"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" json:"request_timeout_seconds"`
}

type AI struct {
	Temperature         float64 `mapstructure:"temperature" json:"temperature"`
	MaxTokens           int     `mapstructure:"max_tokens" json:"max_tokens"`
	MaxResponseLength   int     `mapstructure:"max_response_length" json:"max_response_length"`
	MemoryWindowSize    int     `mapstructure:"memory_window_size" json:"memory_window_size"`
	CooldownSeconds     float64 `mapstructure:"cooldown_seconds" json:"cooldown_seconds"`
	InitialDelaySeconds float64 `mapstructure:"initial_delay_seconds" json:"initial_delay_seconds"`
	GameName            string  `mapstructure:"game_name" json:"game_name"`
	DetectGame          bool    `mapstructure:"detect_game" json:"detect_game"`
}

type ScreenCapture struct {
	CaptureInterval float64 `mapstructure:"capture_interval" json:"capture_interval"`
	MaxScreenshots  int     `mapstructure:"max_screenshots" json:"max_screenshots"`
	Directory       string  `mapstructure:"directory" json:"directory"`
}

type Overlay struct {
	Position        string `mapstructure:"position" json:"position"`
	VisibleMessages int    `mapstructure:"visible_messages" json:"visible_messages"`
	Width           int    `mapstructure:"width" json:"width"`
	PumpIntervalMS  int    `mapstructure:"pump_interval_ms" json:"pump_interval_ms"`
}

type Server struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Listen  string `mapstructure:"listen" json:"listen"`
}

type Logging struct {
	File  string `mapstructure:"file" json:"file"`
	Level string `mapstructure:"level" json:"level"`
}

// Settings is the full application configuration.
type Settings struct {
	API           API           `mapstructure:"api" json:"api"`
	AI            AI            `mapstructure:"ai" json:"ai"`
	ScreenCapture ScreenCapture `mapstructure:"screen_capture" json:"screen_capture"`
	Overlay       Overlay       `mapstructure:"overlay" json:"overlay"`
	Server        Server        `mapstructure:"server" json:"server"`
	Logging       Logging       `mapstructure:"logging" json:"logging"`
}

// ConfigError reports an invalid or unreadable setting.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.provider", ProviderAnthropic)
	v.SetDefault("api.claude_api_key", "")
	v.SetDefault("api.model", "")
	v.SetDefault("api.endpoint", assistant.DefaultOllamaEndpoint)
	v.SetDefault("api.request_timeout_seconds", 30)

	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.max_tokens", 150)
	v.SetDefault("ai.max_response_length", 150)
	v.SetDefault("ai.memory_window_size", 5)
	v.SetDefault("ai.cooldown_seconds", 10.0)
	v.SetDefault("ai.initial_delay_seconds", 2.0)
	v.SetDefault("ai.game_name", "")
	v.SetDefault("ai.detect_game", true)

	v.SetDefault("screen_capture.capture_interval", 1.0)
	v.SetDefault("screen_capture.max_screenshots", 5)
	v.SetDefault("screen_capture.directory", "")

	v.SetDefault("overlay.position", overlay.BottomRight.String())
	v.SetDefault("overlay.visible_messages", 5)
	v.SetDefault("overlay.width", 60)
	v.SetDefault("overlay.pump_interval_ms", 50)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.listen", "127.0.0.1:8765")

	v.SetDefault("logging.file", "game_partner.log")
	v.SetDefault("logging.level", "info")
}

// Default returns the settings used when no config file or environment
// override is present.
func Default() *Settings {
	v := viper.New()
	setDefaults(v)
	var s Settings
	// Defaults always decode.
	_ = v.Unmarshal(&s)
	s.applyProviderDefaults()
	return &s
}

// Load reads the TOML file at path, or only defaults and environment when
// path is empty, and validates the result.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api.claude_api_key", envPrefix+"_API_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, &ConfigError{Field: "api.claude_api_key", Reason: "binding environment", Err: err}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, &ConfigError{Field: "file", Reason: "reading " + path, Err: err}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, &ConfigError{Field: "file", Reason: "decoding settings", Err: err}
	}
	s.applyProviderDefaults()

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) applyProviderDefaults() {
	s.API.Provider = strings.ToLower(strings.TrimSpace(s.API.Provider))
	if s.API.Model != "" {
		return
	}
	switch s.API.Provider {
	case ProviderOllama:
		s.API.Model = defaultOllamaModel
	default:
		s.API.Model = defaultAnthropicModel
	}
}

// Validate checks every field and returns the first problem as *ConfigError.
func (s *Settings) Validate() error {
	switch s.API.Provider {
	case ProviderAnthropic:
		if strings.TrimSpace(s.API.ClaudeAPIKey) == "" {
			return &ConfigError{Field: "api.claude_api_key", Reason: "required for the anthropic provider (or set ANTHROPIC_API_KEY)"}
		}
	case ProviderOllama:
		if s.API.Endpoint == "" {
			return &ConfigError{Field: "api.endpoint", Reason: "required for the ollama provider"}
		}
	default:
		return &ConfigError{Field: "api.provider", Reason: fmt.Sprintf("unknown provider %q", s.API.Provider)}
	}
	if s.API.RequestTimeoutSeconds <= 0 {
		return &ConfigError{Field: "api.request_timeout_seconds", Reason: "must be positive"}
	}

	maxTemperature := 1.0
	if s.API.Provider == ProviderOllama {
		maxTemperature = 2.0
	}
	if s.AI.Temperature < 0 || s.AI.Temperature > maxTemperature {
		return &ConfigError{Field: "ai.temperature", Reason: fmt.Sprintf("must be between 0 and %g for the %s provider", maxTemperature, s.API.Provider)}
	}
	if s.AI.MaxTokens <= 0 {
		return &ConfigError{Field: "ai.max_tokens", Reason: "must be positive"}
	}
	if s.AI.MaxResponseLength <= 0 {
		return &ConfigError{Field: "ai.max_response_length", Reason: "must be positive"}
	}
	if s.AI.MemoryWindowSize < 1 {
		return &ConfigError{Field: "ai.memory_window_size", Reason: "must be at least 1"}
	}
	if s.AI.CooldownSeconds < 0 {
		return &ConfigError{Field: "ai.cooldown_seconds", Reason: "must not be negative"}
	}
	if s.AI.InitialDelaySeconds < 0 {
		return &ConfigError{Field: "ai.initial_delay_seconds", Reason: "must not be negative"}
	}

	if s.ScreenCapture.CaptureInterval <= 0 {
		return &ConfigError{Field: "screen_capture.capture_interval", Reason: "must be positive"}
	}
	if s.ScreenCapture.MaxScreenshots < 1 {
		return &ConfigError{Field: "screen_capture.max_screenshots", Reason: "must be at least 1"}
	}

	if _, err := overlay.ParsePosition(s.Overlay.Position); err != nil {
		return &ConfigError{Field: "overlay.position", Reason: "invalid", Err: err}
	}
	if s.Overlay.VisibleMessages < 1 {
		return &ConfigError{Field: "overlay.visible_messages", Reason: "must be at least 1"}
	}
	if s.Overlay.Width < 20 {
		return &ConfigError{Field: "overlay.width", Reason: "must be at least 20 columns"}
	}
	if s.Overlay.PumpIntervalMS <= 0 {
		return &ConfigError{Field: "overlay.pump_interval_ms", Reason: "must be positive"}
	}

	if s.Server.Enabled && s.Server.Listen == "" {
		return &ConfigError{Field: "server.listen", Reason: "required when the server is enabled"}
	}
	return nil
}

// Cooldown is the minimum spacing of automatic analyses, never below
// MinCooldown.
func (s *Settings) Cooldown() time.Duration {
	return max(seconds(s.AI.CooldownSeconds), MinCooldown)
}

func (s *Settings) InitialDelay() time.Duration {
	return seconds(s.AI.InitialDelaySeconds)
}

func (s *Settings) CaptureInterval() time.Duration {
	return seconds(s.ScreenCapture.CaptureInterval)
}

func (s *Settings) RequestTimeout() time.Duration {
	return time.Duration(s.API.RequestTimeoutSeconds) * time.Second
}

func (s *Settings) PumpInterval() time.Duration {
	return time.Duration(s.Overlay.PumpIntervalMS) * time.Millisecond
}

// Redacted returns a copy safe to print or serve.
func (s *Settings) Redacted() Settings {
	out := *s
	if out.API.ClaudeAPIKey != "" {
		out.API.ClaudeAPIKey = "[redacted]"
	}
	return out
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
