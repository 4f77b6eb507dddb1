package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/helmsman-ai/helmsman/internal/permission"
	"github.com/helmsman-ai/helmsman/internal/registry"
)

// NewFileReadDefinition reads the contents of a file.
func NewFileReadDefinition() *registry.Definition {
	return &registry.Definition{
		Name:        "file_read",
		Description: "Read the contents of a file at the specified path.",
		Group:       GroupFilesystem,
		Level:       permission.ReadOnly,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "The path to the file to read",
				},
			},
			"required": []string{"path"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path := expandPath(GetString(args, "path", ""))
			content, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					return "", fmt.Errorf("file not found: %s", path)
				}
				return "", fmt.Errorf("read %s: %w", path, err)
			}
			return string(content), nil
		},
	}
}

// NewFileListDefinition lists a directory.
func NewFileListDefinition() *registry.Definition {
	return &registry.Definition{
		Name:        "file_list",
		Description: "List the entries of a directory. Defaults to the current directory.",
		Group:       GroupFilesystem,
		Level:       permission.ReadOnly,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "The directory to list",
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path := expandPath(GetString(args, "path", "."))
			entries, err := os.ReadDir(path)
			if err != nil {
				return "", fmt.Errorf("list %s: %w", path, err)
			}
			var sb strings.Builder
			for _, entry := range entries {
				if entry.IsDir() {
					sb.WriteString(entry.Name() + "/\n")
				} else {
					sb.WriteString(entry.Name() + "\n")
				}
			}
			if sb.Len() == 0 {
				return "(empty directory)", nil
			}
			return strings.TrimRight(sb.String(), "\n"), nil
		},
	}
}

// NewGlobDefinition matches files by pattern under a root.
func NewGlobDefinition() *registry.Definition {
	return &registry.Definition{
		Name:        "glob",
		Description: "Find files matching a glob pattern, e.g. '**/*.go' or 'src/*.ts'.",
		Group:       GroupFilesystem,
		Level:       permission.ReadOnly,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{
					"type":        "string",
					"description": "The glob pattern to match",
				},
				"root": map[string]any{
					"type":        "string",
					"description": "Directory to search from (default: current directory)",
				},
			},
			"required": []string{"pattern"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			pattern := GetString(args, "pattern", "")
			root := expandPath(GetString(args, "root", "."))

			var matches []string
			err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return nil // unreadable entries are skipped, not fatal
				}
				if d.IsDir() {
					if d.Name() == ".git" || d.Name() == "node_modules" {
						return filepath.SkipDir
					}
					return nil
				}
				rel, err := filepath.Rel(root, path)
				if err != nil {
					return nil
				}
				if globMatch(pattern, rel) {
					matches = append(matches, rel)
				}
				return nil
			})
			if err != nil {
				return "", fmt.Errorf("walk %s: %w", root, err)
			}
			if len(matches) == 0 {
				return "(no matches)", nil
			}
			sort.Strings(matches)
			return strings.Join(matches, "\n"), nil
		},
	}
}

// globMatch supports '**/' prefixes on top of path.Match semantics.
func globMatch(pattern, rel string) bool {
	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		if ok, _ := filepath.Match(suffix, filepath.Base(rel)); ok {
			return true
		}
	}
	ok, _ := filepath.Match(pattern, rel)
	return ok
}

// NewFileWriteDefinition writes a file, restricted to the workspace.
func NewFileWriteDefinition(workspace string) *registry.Definition {
	return &registry.Definition{
		Name:        "file_write",
		Description: "Write content to a file. Creates parent directories if needed. Writes are restricted to the workspace.",
		Group:       GroupFilesystem,
		Level:       permission.FileWrite,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "The path to the file to write",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "The content to write",
				},
			},
			"required": []string{"path", "content"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path := expandPath(GetString(args, "path", ""))
			content := GetString(args, "content", "")

			if workspace != "" && !isWithin(workspace, path) {
				return "", fmt.Errorf("path outside workspace: %s", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return "", fmt.Errorf("create directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return "", fmt.Errorf("write %s: %w", path, err)
			}
			return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
		},
	}
}

// NewFileEditDefinition replaces an exact substring in a file.
func NewFileEditDefinition(workspace string) *registry.Definition {
	return &registry.Definition{
		Name:        "file_edit",
		Description: "Replace an exact text fragment in a file. The fragment must occur exactly once.",
		Group:       GroupFilesystem,
		Level:       permission.FileWrite,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "The path to the file to edit",
				},
				"old": map[string]any{
					"type":        "string",
					"description": "The exact text to replace",
				},
				"new": map[string]any{
					"type":        "string",
					"description": "The replacement text",
				},
			},
			"required": []string{"path", "old", "new"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path := expandPath(GetString(args, "path", ""))
			oldText := GetString(args, "old", "")
			newText := GetString(args, "new", "")

			if workspace != "" && !isWithin(workspace, path) {
				return "", fmt.Errorf("path outside workspace: %s", path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("read %s: %w", path, err)
			}
			content := string(data)
			switch strings.Count(content, oldText) {
			case 0:
				return "", fmt.Errorf("text not found in %s", path)
			case 1:
				// Unique, proceed.
			default:
				return "", fmt.Errorf("text occurs more than once in %s; provide more context", path)
			}
			content = strings.Replace(content, oldText, newText, 1)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return "", fmt.Errorf("write %s: %w", path, err)
			}
			return fmt.Sprintf("Edited %s", path), nil
		},
	}
}
