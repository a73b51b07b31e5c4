// Package history persists the assistant's conversation log. The log is an
// ordered list of role-tagged entries kept in memory and fully rewritten to
// a JSON file on every mutation; the cache and the file are never allowed to
// diverge.
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Roles used in history entries.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Part is one content block of an entry.
type Part struct {
	Text string `json:"text"`
}

// Entry is a single role-tagged message in the conversation log.
type Entry struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Text creates an Entry with a single text part.
func Text(role, text string) Entry {
	return Entry{Role: role, Parts: []Part{{Text: text}}}
}

// Store is a file-backed conversation log. The zero value is not usable;
// construct with New.
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	entries []Entry
	loaded  bool
}

// New creates a Store backed by the given file path. Nothing is read until
// the first access.
func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger.With("component", "history")}
}

// Load reads the backing file into memory. A missing or malformed file
// starts an empty log; this is never a fatal condition. Repeated calls are
// no-ops until Clear or Set resets state.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked()
}

func (s *Store) ensureLoadedLocked() {
	if s.loaded {
		return
	}
	s.loaded = true
	s.entries = nil

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read history file", "path", s.path, "error", err)
		}
		return
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("malformed history file, starting empty", "path", s.path, "error", err)
		return
	}
	s.entries = entries
}

// History returns a copy of the ordered entry list.
func (s *Store) History() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Append adds an entry and synchronously persists the full log.
func (s *Store) Append(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked()

	s.entries = append(s.entries, e)
	return s.persistLocked()
}

// AppendText adds a single-part text entry.
func (s *Store) AppendText(role, text string) error {
	return s.Append(Text(role, text))
}

// Set replaces the entire log and persists it.
func (s *Store) Set(entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loaded = true
	s.entries = make([]Entry, len(entries))
	copy(s.entries, entries)
	return s.persistLocked()
}

// Clear resets the log and removes the backing file if present.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loaded = true
	s.entries = nil
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("history: remove %s: %w", s.path, err)
	}
	return nil
}

// persistLocked rewrites the backing file with the full in-memory log.
// Callers must hold s.mu.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("history: marshal: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("history: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".history-tmp-*")
	if err != nil {
		return fmt.Errorf("history: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("history: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("history: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("history: rename: %w", err)
	}
	return nil
}
