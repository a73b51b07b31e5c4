package vault

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestResolveRejectsTraversal(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)

	bad := []string{
		"..",
		"../outside.md",
		"notes/../../outside.md",
		"a/b/../../../etc/passwd",
		"/../outside.md",
	}
	for _, p := range bad {
		if _, err := v.Resolve(p); !errors.Is(err, ErrPathTraversal) {
			t.Errorf("Resolve(%q) = %v, want ErrPathTraversal", p, err)
		}
	}
}

func TestResolveAcceptsInside(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)

	good := []string{
		"notes/todo.md",
		"/leading-slash.md", // leading slashes are stripped, not rejected
		"a/b/../c.md",       // normalizes to a/c.md, still inside
		"",
	}
	for _, p := range good {
		abs, err := v.Resolve(p)
		if err != nil {
			t.Errorf("Resolve(%q) unexpected error: %v", p, err)
			continue
		}
		if !v.contained(abs) {
			t.Errorf("Resolve(%q) = %q, outside root %q", p, abs, v.root)
		}
	}
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	outside := t.TempDir()
	v, err := New(root, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	if _, err := v.Resolve("escape/secret.md"); !errors.Is(err, ErrPathTraversal) {
		t.Fatalf("Resolve through symlink = %v, want ErrPathTraversal", err)
	}
}

func TestWriteReadDelete(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)

	if err := v.Write("tasks/call-bank.md", []byte("# Call bank\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !v.Exists("tasks/call-bank.md") {
		t.Fatal("Exists = false after Write")
	}
	data, err := v.Read("tasks/call-bank.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "# Call bank\n" {
		t.Fatalf("Read = %q", data)
	}
	if err := v.Delete("tasks/call-bank.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if v.Exists("tasks/call-bank.md") {
		t.Fatal("Exists = true after Delete")
	}
}

func TestDeleteFolderRejectsRoot(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)

	for _, p := range []string{"", ".", "/"} {
		if err := v.DeleteFolder(p); !errors.Is(err, ErrVaultRoot) {
			t.Errorf("DeleteFolder(%q) = %v, want ErrVaultRoot", p, err)
		}
	}
}

func TestList(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)

	files := []string{"tasks/a.md", "tasks/sub/b.md", "notes/c.md", "tasks/skip.txt"}
	for _, f := range files {
		if err := v.Write(f, []byte("x")); err != nil {
			t.Fatalf("Write %s: %v", f, err)
		}
	}

	got, err := v.List("tasks", ".md")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := map[string]bool{"tasks/a.md": true, "tasks/sub/b.md": true}
	if len(got) != len(want) {
		t.Fatalf("List = %v, want %v", got, want)
	}
	for _, p := range got {
		if !want[p] {
			t.Errorf("List returned unexpected path %q", p)
		}
	}

	// Listing a missing directory is a miss, not an error.
	none, err := v.List("does-not-exist", ".md")
	if err != nil || none != nil {
		t.Fatalf("List(missing) = %v, %v; want nil, nil", none, err)
	}
}

func TestMove(t *testing.T) {
	t.Parallel()
	v := newTestVault(t)

	if err := v.Write("inbox/idea.md", []byte("idea")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := v.Move("inbox/idea.md", "archive/idea.md"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if v.Exists("inbox/idea.md") || !v.Exists("archive/idea.md") {
		t.Fatal("Move did not relocate the file")
	}
}
