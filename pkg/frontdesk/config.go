package frontdesk

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/voxline/frontdesk/pkg/call"
)

type Config struct {
	Transport     VendorConfig  `mapstructure:"transport"`
	Completion    VendorConfig  `mapstructure:"completion"`
	Transcription VendorConfig  `mapstructure:"transcription"`
	Session       SessionConfig `mapstructure:"session"`
	Turn          TurnConfig    `mapstructure:"turn"`
	Policy        PolicyConfig  `mapstructure:"policy"`
	Prompts       PromptsConfig `mapstructure:"prompts"`
	Call          CallConfig    `mapstructure:"call"`
	CallLog       CallLogConfig `mapstructure:"call_log"`
	ClientsFile   string        `mapstructure:"clients_file"`
	Monitor       MonitorConfig `mapstructure:"monitor"`
	Privacy       PrivacyConfig `mapstructure:"privacy"`
	Environment   string        `mapstructure:"environment"`
	LogLevel      string        `mapstructure:"log_level"`
	LogFormat     string        `mapstructure:"log_format"`
	BasePrompt    string        `mapstructure:"base_prompt"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type SessionConfig struct {
	IdleTimeoutMS   int `mapstructure:"idle_timeout_ms"`
	SweepIntervalMS int `mapstructure:"sweep_interval_ms"`
}

type TurnConfig struct {
	MaxTokens int `mapstructure:"max_tokens"`
	TimeoutMS int `mapstructure:"timeout_ms"`
	Attempts  int `mapstructure:"attempts"`
}

type PolicyConfig struct {
	MaxTurns       int      `mapstructure:"max_turns"`
	TriggerPhrases []string `mapstructure:"trigger_phrases"`
}

type PromptsConfig struct {
	Greeting       string `mapstructure:"greeting"`
	Apology        string `mapstructure:"apology"`
	Expired        string `mapstructure:"expired"`
	Connect        string `mapstructure:"connect"`
	VoicemailIntro string `mapstructure:"voicemail_intro"`
	AfterHours     string `mapstructure:"after_hours"`
	Goodbye        string `mapstructure:"goodbye"`
}

type CallConfig struct {
	RecordMaxSeconds int `mapstructure:"record_max_seconds"`
}

type CallLogConfig struct {
	Path           string `mapstructure:"path"`
	Buffer         int    `mapstructure:"buffer"`
	Retries        int    `mapstructure:"retries"`
	RetryBackoffMS int    `mapstructure:"retry_backoff_ms"`
}

type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type PrivacyConfig struct {
	// RedactPII strips emails and phone numbers from transcripts
	// before they reach the durable call log.
	RedactPII bool `mapstructure:"redact_pii"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("transport.provider", "twilio")
	v.SetDefault("completion.provider", "openai")
	v.SetDefault("session.idle_timeout_ms", 600000)
	v.SetDefault("session.sweep_interval_ms", 30000)
	v.SetDefault("turn.max_tokens", 150)
	v.SetDefault("turn.timeout_ms", 10000)
	v.SetDefault("turn.attempts", 1)
	v.SetDefault("policy.max_turns", 12)
	v.SetDefault("call.record_max_seconds", 120)
	v.SetDefault("call_log.path", "calls.jsonl")
	v.SetDefault("call_log.buffer", 64)
	v.SetDefault("call_log.retries", 2)
	v.SetDefault("call_log.retry_backoff_ms", 200)
	v.SetDefault("clients_file", "clients.yaml")
	v.SetDefault("monitor.enabled", true)
	v.SetDefault("privacy.redact_pii", false)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Transport.Provider) == "" {
		return fmt.Errorf("transport.provider is required")
	}
	if strings.TrimSpace(c.Completion.Provider) == "" {
		return fmt.Errorf("completion.provider is required")
	}
	if strings.TrimSpace(c.CallLog.Path) == "" {
		return fmt.Errorf("call_log.path is required")
	}
	return nil
}

func (c Config) callPrompts() call.Prompts {
	return call.Prompts{
		Greeting:       c.Prompts.Greeting,
		Apology:        c.Prompts.Apology,
		Expired:        c.Prompts.Expired,
		Connect:        c.Prompts.Connect,
		VoicemailIntro: c.Prompts.VoicemailIntro,
		AfterHours:     c.Prompts.AfterHours,
		Goodbye:        c.Prompts.Goodbye,
	}
}

// expandEnvStrings substitutes ${VAR} references so secrets can stay
// out of the config file.
func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Transport.Settings = expandSettings(cfg.Transport.Settings)
	cfg.Completion.Settings = expandSettings(cfg.Completion.Settings)
	cfg.Transcription.Settings = expandSettings(cfg.Transcription.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	}
}
