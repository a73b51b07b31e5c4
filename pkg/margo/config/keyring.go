package config

import (
	"log/slog"
	"os"

	"github.com/zalando/go-keyring"
)

// keyringService is the service name used in the OS keyring.
const keyringService = "margo"

// Keyring key names for each secret.
const (
	KeyGemini   = "gemini_api_key"
	KeyTelegram = "telegram_token"
	KeyDiscord  = "discord_token"
	KeyTodoist  = "todoist_token"
)

// envNames maps each keyring key to the environment variables consulted
// before the keyring, in order.
var envNames = map[string][]string{
	KeyGemini:   {"MARGO_GEMINI_API_KEY", "GEMINI_API_KEY"},
	KeyTelegram: {"MARGO_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN"},
	KeyDiscord:  {"MARGO_DISCORD_TOKEN", "DISCORD_BOT_TOKEN"},
	KeyTodoist:  {"MARGO_TODOIST_TOKEN", "TODOIST_API_TOKEN"},
}

// StoreSecret saves a secret to the OS keyring.
func StoreSecret(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

// GetSecret retrieves a secret from the OS keyring, or "" if not found.
func GetSecret(key string) string {
	val, err := keyring.Get(keyringService, key)
	if err != nil {
		return ""
	}
	return val
}

// DeleteSecret removes a secret from the OS keyring.
func DeleteSecret(key string) error {
	return keyring.Delete(keyringService, key)
}

// KeyringAvailable probes the OS keyring with a write+delete cycle.
func KeyringAvailable() bool {
	const probe = "__margo_probe__"
	if err := keyring.Set(keyringService, probe, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, probe)
	return true
}

// ResolveSecrets fills in each empty secret, consulting environment
// variables first, then the OS keyring, then the config value. Missing
// secrets are left empty; the dependent subsystem self-disables.
func ResolveSecrets(cfg *Config, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.LLM.APIKey = resolveSecret(KeyGemini, cfg.LLM.APIKey, logger)
	cfg.Channels.Telegram.Token = resolveSecret(KeyTelegram, cfg.Channels.Telegram.Token, logger)
	cfg.Channels.Discord.Token = resolveSecret(KeyDiscord, cfg.Channels.Discord.Token, logger)
	cfg.Tracker.APIToken = resolveSecret(KeyTodoist, cfg.Tracker.APIToken, logger)
}

func resolveSecret(key, configValue string, logger *slog.Logger) string {
	for _, env := range envNames[key] {
		if val := os.Getenv(env); val != "" {
			logger.Debug("secret loaded from environment", "key", key, "env", env)
			return val
		}
	}
	if val := GetSecret(key); val != "" {
		logger.Debug("secret loaded from OS keyring", "key", key)
		return val
	}
	return configValue
}
