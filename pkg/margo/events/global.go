package events

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// GlobalDefinition is one statically configured recurring event, keyed by id
// in the global events file.
type GlobalDefinition struct {
	Schedule    string `yaml:"schedule_time"`
	Prompt      string `yaml:"prompt"`
	Description string `yaml:"description,omitempty"`
	LastRun     string `yaml:"last_run,omitempty"`
	CreatedAt   string `yaml:"created_at,omitempty"`
}

// Validate checks the definition's required fields.
func (d GlobalDefinition) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Schedule, validation.Required),
		validation.Field(&d.Prompt, validation.Required),
	)
}

// defaultGlobalEvents seeds a fresh installation with one example entry so
// the file documents its own format.
func defaultGlobalEvents() map[string]GlobalDefinition {
	return map[string]GlobalDefinition{
		"morning_briefing": {
			Schedule:    "daily at 08:00",
			Prompt:      "Good morning. Summarize today's tasks and upcoming reminders for the user in a short, friendly message.",
			Description: "Example event created on first run. Edit or remove freely.",
			CreatedAt:   time.Now().Format(time.RFC3339),
		},
	}
}

// LoadGlobalEvents reads the global events file. A missing file is
// regenerated with the default example entry. Entries that fail validation
// are skipped with a logged diagnostic, never fatal.
func LoadGlobalEvents(path string, logger *slog.Logger) (map[string]GlobalDefinition, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		defs := defaultGlobalEvents()
		if err := SaveGlobalEvents(path, defs); err != nil {
			return nil, fmt.Errorf("events: write default global events: %w", err)
		}
		logger.Info("created default global events file", "path", path)
		return defs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("events: read global events: %w", err)
	}

	var defs map[string]GlobalDefinition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("events: parse global events: %w", err)
	}

	valid := make(map[string]GlobalDefinition, len(defs))
	for id, def := range defs {
		if err := def.Validate(); err != nil {
			logger.Warn("skipping invalid global event", "id", id, "error", err)
			continue
		}
		valid[id] = def
	}
	return valid, nil
}

// SaveGlobalEvents rewrites the global events file.
func SaveGlobalEvents(path string, defs map[string]GlobalDefinition) error {
	data, err := yaml.Marshal(defs)
	if err != nil {
		return fmt.Errorf("events: marshal global events: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("events: create events dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("events: write global events: %w", err)
	}
	return nil
}
