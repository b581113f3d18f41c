package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type FilesystemTool struct {
	Root string
}

func NewFilesystemTool(root string) *FilesystemTool {
	absRoot, _ := filepath.Abs(root)
	return &FilesystemTool{Root: absRoot}
}

func (f *FilesystemTool) Name() string {
	return "filesystem"
}

func (f *FilesystemTool) Description() string {
	return "Manage files in the local workspace: read, write, list, delete, and mkdir. Returns {filename, ...}; read adds content, list adds entries."
}

func (f *FilesystemTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"enum":        []string{"read", "write", "list", "delete", "mkdir"},
				"description": "The operation to perform",
			},
			"filename": map[string]any{
				"type":        "string",
				"description": "The name of the file or directory",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "The content to write (only for 'write' command)",
			},
		},
		"required": []string{"command", "filename"},
	}
}

func (f *FilesystemTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		Command  string `json:"command"`
		Filename string `json:"filename"`
		Content  string `json:"content"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}

	targetPath := filepath.Join(f.Root, in.Filename)

	// targetPath must stay inside f.Root
	rel, err := filepath.Rel(f.Root, targetPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("unsafe path attempt: %s", in.Filename)
	}

	out := map[string]any{"filename": in.Filename}

	switch in.Command {
	case "read":
		data, err := os.ReadFile(targetPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		out["content"] = string(data)
	case "write":
		if err := os.WriteFile(targetPath, []byte(in.Content), 0644); err != nil {
			return nil, fmt.Errorf("failed to write file: %w", err)
		}
		out["bytes"] = len(in.Content)
	case "list":
		entries, err := os.ReadDir(targetPath)
		if err != nil {
			return nil, fmt.Errorf("failed to list directory: %w", err)
		}
		list := make([]string, 0, len(entries))
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() {
				name += "/"
			}
			list = append(list, name)
		}
		out["entries"] = list
	case "delete":
		if err := os.Remove(targetPath); err != nil {
			return nil, fmt.Errorf("failed to delete: %w", err)
		}
	case "mkdir":
		if err := os.MkdirAll(targetPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	default:
		return nil, fmt.Errorf("invalid command %q: use 'read', 'write', 'list', 'delete', or 'mkdir'", in.Command)
	}

	return out, nil
}
