// Package config loads the margo YAML configuration with .env loading,
// environment variable expansion, structural validation, and OS-keyring
// secret resolution.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} or $VAR_NAME in config values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Z_][A-Z0-9_]*)`)

// Duration wraps time.Duration with YAML support for values like "30m".
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration back to its string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std converts to the standard duration type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full margo configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Vault    VaultConfig    `yaml:"vault"`
	LLM      LLMConfig      `yaml:"llm"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Channels ChannelsConfig `yaml:"channels"`
	Events   EventsConfig   `yaml:"events"`
	History  HistoryConfig  `yaml:"history"`

	// Persona is appended to the assistant's system prompt.
	Persona string `yaml:"persona,omitempty"`
}

// LoggingConfig selects log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// VaultConfig locates the note vault. An empty path disables the vault and
// every subsystem that depends on it (reminders, file tools, watching).
type VaultConfig struct {
	Path     string `yaml:"path,omitempty"`
	TasksDir string `yaml:"tasks_dir,omitempty"` // vault-relative, default "tasks"
}

// LLMConfig configures the Gemini backend.
type LLMConfig struct {
	APIKey string `yaml:"api_key,omitempty"`
	Model  string `yaml:"model,omitempty"`
}

// TrackerConfig configures the task tracker. An empty token disables the
// tracker tools and the day planner.
type TrackerConfig struct {
	APIToken string `yaml:"api_token,omitempty"`
}

// ChannelsConfig configures the chat transports and the fallback reminder
// target.
type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Discord  DiscordConfig  `yaml:"discord"`
	Primary  PrimaryUser    `yaml:"primary"`
}

// TelegramConfig holds the Telegram bot settings.
type TelegramConfig struct {
	Token        string  `yaml:"token,omitempty"`
	AllowedChats []int64 `yaml:"allowed_chats,omitempty"`
}

// DiscordConfig holds the Discord bot settings.
type DiscordConfig struct {
	Token           string   `yaml:"token,omitempty"`
	AllowedChannels []string `yaml:"allowed_channels,omitempty"`
}

// PrimaryUser is where scheduled reminders go when nobody is actively
// chatting.
type PrimaryUser struct {
	Channel string `yaml:"channel,omitempty"` // "telegram" or "discord"
	ChatID  string `yaml:"chat_id,omitempty"`
}

// EventsConfig tunes the recurring events engine.
type EventsConfig struct {
	File      string   `yaml:"file,omitempty"` // global events YAML path
	Debounce  Duration `yaml:"debounce,omitempty"`
	LeadLong  Duration `yaml:"lead_long,omitempty"`
	LeadShort Duration `yaml:"lead_short,omitempty"`
}

// HistoryConfig locates the conversation history file.
type HistoryConfig struct {
	File string `yaml:"file,omitempty"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Vault:   VaultConfig{TasksDir: "tasks"},
		LLM:     LLMConfig{Model: "gemini-2.0-flash"},
		Events:  EventsConfig{File: "events.yaml"},
		History: HistoryConfig{File: "history.json"},
	}
}

// Validate checks structural constraints. Secrets are not required here;
// subsystems self-disable when their credentials are absent.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Logging),
		validation.Field(&c.Channels),
	)
}

// Validate restricts level and format to the supported values.
func (l LoggingConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.In("text", "json")),
	)
}

// Validate cascades into the primary user.
func (c ChannelsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Primary),
	)
}

// Validate restricts the channel name when set.
func (p PrimaryUser) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Channel, validation.In("telegram", "discord")),
	)
}

// Load reads the config file, loading .env files first and expanding
// ${VAR}-style references before parsing.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Vault.TasksDir == "" {
		cfg.Vault.TasksDir = "tasks"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration with owner-only permissions.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Find searches the standard locations for a config file.
func Find() string {
	candidates := []string{
		"config.yaml",
		"config.yml",
		"margo.yaml",
		"margo.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			home+"/.config/margo/config.yaml",
			home+"/.margo/config.yaml",
		)
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// CheckPermissions warns if the config file is readable by other users.
func CheckPermissions(path string, logger *slog.Logger) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if mode := info.Mode().Perm(); mode&0o044 != 0 {
		logger.Warn("config file has open permissions, consider restricting",
			"path", path,
			"current", fmt.Sprintf("%04o", mode),
			"recommended", "0600")
	}
}

// loadEnvFiles loads .env files without overwriting existing env vars.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces ${VAR} and $VAR references with environment values,
// leaving unset references intact so placeholders survive a round trip.
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}
