package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "llm:\n  api_key: test\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
	if cfg.Vault.TasksDir != "tasks" {
		t.Errorf("TasksDir = %q, want tasks", cfg.Vault.TasksDir)
	}
	if cfg.LLM.Model != "gemini-2.0-flash" {
		t.Errorf("Model = %q", cfg.LLM.Model)
	}
	if cfg.History.File != "history.json" {
		t.Errorf("History.File = %q", cfg.History.File)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("MARGO_TEST_TOKEN", "secret-token")
	path := writeConfig(t, "channels:\n  telegram:\n    token: ${MARGO_TEST_TOKEN}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Channels.Telegram.Token != "secret-token" {
		t.Errorf("Token = %q", cfg.Channels.Telegram.Token)
	}
}

func TestLoadKeepsUnsetReferences(t *testing.T) {
	path := writeConfig(t, "channels:\n  telegram:\n    token: ${MARGO_DEFINITELY_UNSET_VAR}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Channels.Telegram.Token != "${MARGO_DEFINITELY_UNSET_VAR}" {
		t.Errorf("Token = %q, want the placeholder preserved", cfg.Channels.Telegram.Token)
	}
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: verbose\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted invalid log level")
	}
}

func TestLoadRejectsBadPrimaryChannel(t *testing.T) {
	path := writeConfig(t, "channels:\n  primary:\n    channel: whatsapp\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted invalid primary channel")
	}
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeConfig(t, "events:\n  debounce: 2s\n  lead_long: 45m\n  lead_short: 10m\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Events.Debounce.Std() != 2*time.Second {
		t.Errorf("Debounce = %v", cfg.Events.Debounce.Std())
	}
	if cfg.Events.LeadLong.Std() != 45*time.Minute {
		t.Errorf("LeadLong = %v", cfg.Events.LeadLong.Std())
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "events:\n  debounce: soon\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted invalid duration")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := Default()
	cfg.Vault.Path = "/notes"
	cfg.Events.Debounce = Duration(3 * time.Second)
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("permissions = %04o, want 0600", perm)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Vault.Path != "/notes" || loaded.Events.Debounce.Std() != 3*time.Second {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}
