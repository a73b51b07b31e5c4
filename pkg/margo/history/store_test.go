package history

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.json")
	s := New(path, nil)

	entries := []Entry{
		Text(RoleUser, "remind me to water the plants"),
		Text(RoleModel, `[{"tool": "reply", "data": {"message": "Done!"}}]`),
		Text(RoleUser, "[Tool response: \"ok\"]"),
	}
	for _, e := range entries {
		if err := s.Append(e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	// Simulated restart: a fresh store reading the same file.
	restarted := New(path, nil)
	restarted.Load()
	if got := restarted.History(); !reflect.DeepEqual(got, entries) {
		t.Fatalf("reloaded history = %+v, want %+v", got, entries)
	}
}

func TestMissingFileStartsEmpty(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "nope.json"), nil)
	if got := s.History(); len(got) != 0 {
		t.Fatalf("History = %v, want empty", got)
	}
}

func TestMalformedFileStartsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte(`{"not": "a list"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(path, nil)
	if got := s.History(); len(got) != 0 {
		t.Fatalf("History = %v, want empty", got)
	}
	// The store must remain usable for writes.
	if err := s.AppendText(RoleUser, "hello"); err != nil {
		t.Fatalf("Append after malformed load: %v", err)
	}
}

func TestClearRemovesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.json")
	s := New(path, nil)
	if err := s.AppendText(RoleUser, "hello"); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("backing file still exists after Clear")
	}
	if got := s.History(); len(got) != 0 {
		t.Fatalf("History after Clear = %v", got)
	}
	// Clearing an already-clear store is fine.
	if err := s.Clear(); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
}

func TestSetReplacesLog(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.json")
	s := New(path, nil)
	_ = s.AppendText(RoleUser, "old")

	replacement := []Entry{Text(RoleModel, "new")}
	if err := s.Set(replacement); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := s.History(); !reflect.DeepEqual(got, replacement) {
		t.Fatalf("History = %+v, want %+v", got, replacement)
	}
}
