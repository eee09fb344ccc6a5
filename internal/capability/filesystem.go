package capability

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileSystem manages files rooted in a workspace directory. Every path
// argument is resolved relative to the root and rejected if it escapes it.
type FileSystem struct {
	Root string
}

func NewFileSystem(root string) *FileSystem {
	absRoot, _ := filepath.Abs(root)
	return &FileSystem{Root: absRoot}
}

func (f *FileSystem) Register(r *Registry) error {
	funcs := map[string]Func{
		"read_file": {
			Description: "Read a file from the workspace and return its content.",
			Parameters: objSchema(map[string]any{
				"path": strProp("Path relative to the workspace root"),
			}, []string{"path"}),
			Run: f.readFile,
		},
		"write_file": {
			Description: "Write content to a file in the workspace, creating it if needed.",
			Parameters: objSchema(map[string]any{
				"path":    strProp("Path relative to the workspace root"),
				"content": strProp("The content to write"),
			}, []string{"path", "content"}),
			Run: f.writeFile,
		},
		"list_directory": {
			Description: "List entries in a workspace directory.",
			Parameters: objSchema(map[string]any{
				"path": strProp("Directory path relative to the workspace root, default '.'"),
			}, nil),
			Run: f.listDirectory,
		},
		"move_file": {
			Description: "Move or rename a file within the workspace.",
			Parameters: objSchema(map[string]any{
				"source":      strProp("Current path relative to the workspace root"),
				"destination": strProp("New path relative to the workspace root"),
			}, []string{"source", "destination"}),
			Run: f.moveFile,
		},
		"delete_file": {
			Description: "Delete a file or empty directory. Destructive: requires confirmation.",
			Parameters: objSchema(map[string]any{
				"path": strProp("Path relative to the workspace root"),
			}, []string{"path"}),
			Run: f.deleteFile,
		},
		"zip_files": {
			Description: "Compress a workspace file or directory into a zip archive.",
			Parameters: objSchema(map[string]any{
				"path":   strProp("File or directory to compress, relative to the workspace root"),
				"output": strProp("Archive path, default '<path>.zip'"),
			}, []string{"path"}),
			Run: f.zipFiles,
		},
		"find_files": {
			Description: "Find workspace files whose names contain a pattern.",
			Parameters: objSchema(map[string]any{
				"pattern": strProp("Substring to match against file names"),
			}, []string{"pattern"}),
			Run: f.findFiles,
		},
	}
	for name, fn := range funcs {
		if err := r.Register("file_system", name, fn); err != nil {
			return err
		}
	}
	return nil
}

// resolve joins name onto the root and rejects paths that escape it.
func (f *FileSystem) resolve(name string) (string, error) {
	target := filepath.Join(f.Root, name)
	rel, err := filepath.Rel(f.Root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe path attempt: %s", name)
	}
	return target, nil
}

func (f *FileSystem) readFile(ctx context.Context, args map[string]any) (map[string]any, error) {
	name, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}
	target, err := f.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return map[string]any{"text": string(data), "path": target}, nil
}

func (f *FileSystem) writeFile(ctx context.Context, args map[string]any) (map[string]any, error) {
	name, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}
	content := argString(args, "content")
	target, err := f.resolve(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.WriteFile(target, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	return map[string]any{"text": "Wrote " + name, "path": target}, nil
}

func (f *FileSystem) listDirectory(ctx context.Context, args map[string]any) (map[string]any, error) {
	name := argString(args, "path")
	if name == "" {
		name = "."
	}
	target, err := f.resolve(name)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}
	var b strings.Builder
	for _, entry := range entries {
		typeStr := "file"
		if entry.IsDir() {
			typeStr = "dir"
		}
		fmt.Fprintf(&b, "[%s] %s\n", typeStr, entry.Name())
	}
	if b.Len() == 0 {
		return map[string]any{"text": "Directory is empty"}, nil
	}
	return map[string]any{"text": b.String()}, nil
}

func (f *FileSystem) moveFile(ctx context.Context, args map[string]any) (map[string]any, error) {
	src, err := requireString(args, "source")
	if err != nil {
		return nil, err
	}
	dst, err := requireString(args, "destination")
	if err != nil {
		return nil, err
	}
	srcPath, err := f.resolve(src)
	if err != nil {
		return nil, err
	}
	dstPath, err := f.resolve(dst)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.Rename(srcPath, dstPath); err != nil {
		return nil, fmt.Errorf("failed to move: %w", err)
	}
	return map[string]any{"text": fmt.Sprintf("Moved %s to %s", src, dst), "path": dstPath}, nil
}

func (f *FileSystem) deleteFile(ctx context.Context, args map[string]any) (map[string]any, error) {
	name, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}
	target, err := f.resolve(name)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(target); err != nil {
		return nil, fmt.Errorf("failed to delete: %w", err)
	}
	return map[string]any{"text": "Deleted " + name}, nil
}

func (f *FileSystem) zipFiles(ctx context.Context, args map[string]any) (map[string]any, error) {
	name, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}
	target, err := f.resolve(name)
	if err != nil {
		return nil, err
	}
	outName := argString(args, "output")
	if outName == "" {
		outName = name + ".zip"
	}
	outPath, err := f.resolve(outName)
	if err != nil {
		return nil, err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	defer zw.Close()

	base := filepath.Dir(target)
	walkErr := filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path == outPath {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(w, in)
		return err
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to compress %s: %w", name, walkErr)
	}
	return map[string]any{"text": "Created " + outName, "path": outPath}, nil
}

func (f *FileSystem) findFiles(ctx context.Context, args map[string]any) (map[string]any, error) {
	pattern, err := requireString(args, "pattern")
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(pattern)
	var matches []string
	filepath.WalkDir(f.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.Contains(strings.ToLower(d.Name()), lower) {
			if rel, err := filepath.Rel(f.Root, path); err == nil {
				matches = append(matches, rel)
			}
		}
		return nil
	})
	if len(matches) == 0 {
		return map[string]any{"text": "No files matched " + pattern}, nil
	}
	return map[string]any{"text": strings.Join(matches, "\n")}, nil
}
