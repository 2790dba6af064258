package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNotFound is returned by Read when no layer can serve the file.
var ErrNotFound = errors.New("workspace file not found")

// Layer identifies which layer would serve a bootstrap file.
type Layer string

const (
	LayerCustom   Layer = "custom"
	LayerTemplate Layer = "template"
	LayerBuiltin  Layer = "builtin"
	LayerMissing  Layer = "missing"
)

const (
	dirMode  = 0o700
	fileMode = 0o600
)

// Resolver reads and writes a tenant's bootstrap files with layered
// precedence: custom > template > built-in default. It is a by-value handle
// bound to paths; it holds no reference back to the manager.
type Resolver struct {
	userID        string
	workspacePath string
	templatePath  string
}

// NewResolver binds a resolver to a tenant workspace. templatePath may be
// empty when the deployment ships no template layer.
func NewResolver(userID, workspacePath, templatePath string) *Resolver {
	return &Resolver{
		userID:        userID,
		workspacePath: workspacePath,
		templatePath:  templatePath,
	}
}

// UserID returns the tenant this resolver is bound to.
func (r *Resolver) UserID() string { return r.userID }

// WorkspacePath returns the root of the bound workspace.
func (r *Resolver) WorkspacePath() string { return r.workspacePath }

func (r *Resolver) customPath(name string) string {
	return filepath.Join(r.workspacePath, "custom", name)
}

// Read returns the content of a bootstrap file, consulting the custom layer,
// then the template, then the built-in defaults. ErrNotFound is returned only
// when all three layers miss.
func (r *Resolver) Read(filename string) (string, error) {
	name := filepath.Base(filename)

	if content, ok, err := readIfExists(r.customPath(name)); err != nil {
		return "", err
	} else if ok {
		return content, nil
	}

	if r.templatePath != "" {
		if content, ok, err := readIfExists(filepath.Join(r.templatePath, name)); err != nil {
			return "", err
		} else if ok {
			return content, nil
		}
	}

	if content, ok := BuiltinDefault(name); ok {
		return content, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Write stores a tenant-specific override in the custom layer.
func (r *Resolver) Write(filename, content string) error {
	name := filepath.Base(filename)
	path := r.customPath(name)
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("create custom dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), fileMode); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Resolve reports which layer would serve a read of filename.
func (r *Resolver) Resolve(filename string) (Layer, error) {
	name := filepath.Base(filename)

	if ok, err := fileExists(r.customPath(name)); err != nil {
		return LayerMissing, err
	} else if ok {
		return LayerCustom, nil
	}
	if r.templatePath != "" {
		if ok, err := fileExists(filepath.Join(r.templatePath, name)); err != nil {
			return LayerMissing, err
		} else if ok {
			return LayerTemplate, nil
		}
	}
	if _, ok := BuiltinDefault(name); ok {
		return LayerBuiltin, nil
	}
	return LayerMissing, nil
}

// todayMemoryPath returns memory/YYYY-MM-DD.md for the local calendar date.
func (r *Resolver) todayMemoryPath() string {
	return filepath.Join(r.workspacePath, "memory", time.Now().Format("2006-01-02")+".md")
}

// ReadTodayMemory returns today's memory file, or ErrNotFound if none exists.
func (r *Resolver) ReadTodayMemory() (string, error) {
	content, ok, err := readIfExists(r.todayMemoryPath())
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotFound
	}
	return content, nil
}

// WriteTodayMemory replaces today's memory file.
func (r *Resolver) WriteTodayMemory(content string) error {
	path := r.todayMemoryPath()
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), fileMode); err != nil {
		return fmt.Errorf("write today memory: %w", err)
	}
	return nil
}

// ListFiles lists the workspace root, or a subdirectory of it when subdir is
// non-empty. A missing directory yields an empty list, not an error.
func (r *Resolver) ListFiles(subdir string) ([]string, error) {
	dir := r.workspacePath
	if subdir != "" {
		dir = filepath.Join(r.workspacePath, filepath.Base(subdir))
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func readIfExists(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), true, nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return true, nil
}
