package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileWriteTool writes a file under a fixed root directory. Paths escaping
// the root are rejected.
type FileWriteTool struct {
	root string
}

// NewFileWriteTool constructs the file writer rooted at dir.
func NewFileWriteTool(dir string) *FileWriteTool {
	return &FileWriteTool{root: dir}
}

func (t *FileWriteTool) Name() string { return "file_write" }

func (t *FileWriteTool) Description() string {
	return "Write content to a file inside the workspace. Args: path (string), content (string)."
}

func (t *FileWriteTool) Execute(_ context.Context, args map[string]any) (any, error) {
	rel, err := StringArg(args, "path")
	if err != nil {
		return "", err
	}
	content, err := StringArg(args, "content")
	if err != nil {
		return "", err
	}
	path, err := resolveUnder(t.root, rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create parent dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(content), rel), nil
}

// FileReadTool reads a file under a fixed root directory.
type FileReadTool struct {
	root string
}

// NewFileReadTool constructs the file reader rooted at dir.
func NewFileReadTool(dir string) *FileReadTool {
	return &FileReadTool{root: dir}
}

func (t *FileReadTool) Name() string { return "file_read" }

func (t *FileReadTool) Description() string {
	return "Read a file inside the workspace. Args: path (string)."
}

func (t *FileReadTool) Execute(_ context.Context, args map[string]any) (any, error) {
	rel, err := StringArg(args, "path")
	if err != nil {
		return "", err
	}
	path, err := resolveUnder(t.root, rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rel, err)
	}
	return string(data), nil
}

func resolveUnder(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute paths are not allowed: %s", rel)
	}
	path := filepath.Join(root, rel)
	cleanRoot := filepath.Clean(root)
	if path != cleanRoot && !strings.HasPrefix(path, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace: %s", rel)
	}
	return path, nil
}
