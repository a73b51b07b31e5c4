package assistant

import (
	"context"
)

// registerVaultTools exposes the note vault's file and folder operations.
// Every path is relative to the vault root and sandboxed by the vault itself.
func (t *Toolset) registerVaultTools(reg *Registry) {
	reg.Register(Tool{
		Name:        "read_file",
		Description: "Read a note from the vault.",
		Example:     `{"path": "tasks/review.md"}`,
		Handler:     t.readFile,
	})
	reg.Register(Tool{
		Name:        "write_file",
		Description: "Create or overwrite a note in the vault.",
		Example:     `{"path": "tasks/review.md", "content": "---\nstatus: todo\n---\n"}`,
		Handler:     t.writeFile,
	})
	reg.Register(Tool{
		Name:        "delete_file",
		Description: "Delete a note from the vault.",
		Example:     `{"path": "tasks/old.md"}`,
		Handler:     t.deleteFile,
	})
	reg.Register(Tool{
		Name:        "move_file",
		Description: "Move or rename a note inside the vault.",
		Example:     `{"from": "inbox/idea.md", "to": "projects/idea.md"}`,
		Handler:     t.moveFile,
	})
	reg.Register(Tool{
		Name:        "create_folder",
		Description: "Create a folder in the vault.",
		Example:     `{"path": "projects/margo"}`,
		Handler:     t.createFolder,
	})
	reg.Register(Tool{
		Name:        "delete_folder",
		Description: "Delete a folder and its contents from the vault.",
		Example:     `{"path": "archive/2024"}`,
		Handler:     t.deleteFolder,
	})
	reg.Register(Tool{
		Name:        "list_files",
		Description: "List notes in a vault folder, optionally filtered by extension.",
		Example:     `{"folder": "tasks", "extension": ".md"}`,
		Handler:     t.listFiles,
	})
}

func (t *Toolset) readFile(ctx context.Context, sess *Session, args map[string]any) (any, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	content, err := t.Vault.Read(path)
	if err != nil {
		return nil, err
	}
	return map[string]any{"path": path, "content": string(content)}, nil
}

func (t *Toolset) writeFile(ctx context.Context, sess *Session, args map[string]any) (any, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	content, ok := args["content"].(string)
	if !ok {
		return nil, errMissingContent
	}
	if err := t.Vault.Write(path, []byte(content)); err != nil {
		return nil, err
	}
	return map[string]any{"status": "written", "path": path}, nil
}

func (t *Toolset) deleteFile(ctx context.Context, sess *Session, args map[string]any) (any, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	if err := t.Vault.Delete(path); err != nil {
		return nil, err
	}
	return map[string]any{"status": "deleted", "path": path}, nil
}

func (t *Toolset) moveFile(ctx context.Context, sess *Session, args map[string]any) (any, error) {
	from, err := stringArg(args, "from")
	if err != nil {
		return nil, err
	}
	to, err := stringArg(args, "to")
	if err != nil {
		return nil, err
	}
	if err := t.Vault.Move(from, to); err != nil {
		return nil, err
	}
	return map[string]any{"status": "moved", "from": from, "to": to}, nil
}

func (t *Toolset) createFolder(ctx context.Context, sess *Session, args map[string]any) (any, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	if err := t.Vault.CreateFolder(path); err != nil {
		return nil, err
	}
	return map[string]any{"status": "created", "path": path}, nil
}

func (t *Toolset) deleteFolder(ctx context.Context, sess *Session, args map[string]any) (any, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	if err := t.Vault.DeleteFolder(path); err != nil {
		return nil, err
	}
	return map[string]any{"status": "deleted", "path": path}, nil
}

func (t *Toolset) listFiles(ctx context.Context, sess *Session, args map[string]any) (any, error) {
	folder := optionalString(args, "folder")
	ext := optionalString(args, "extension")
	paths, err := t.Vault.List(folder, ext)
	if err != nil {
		return nil, err
	}
	return map[string]any{"folder": folder, "files": paths}, nil
}
