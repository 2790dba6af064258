package tenant

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrInvalidUserID is returned when a raw user ID sanitizes to an empty
// string or exceeds the length bound.
var ErrInvalidUserID = errors.New("invalid user id")

const maxUserIDLen = 128

// Paths holds the resolved filesystem layout for a single tenant.
type Paths struct {
	UserID        string
	ConfigPath    string
	WorkspacePath string
	AgentDir      string
	SessionsPath  string
	MemoryPath    string
}

// Roots holds the gateway-wide root directories that tenant paths are
// derived from.
type Roots struct {
	ConfigRoot    string
	WorkspaceRoot string
	TemplatePath  string
}

// SanitizeUserID reduces an untrusted identifier to a filesystem-safe form.
// Path separators and ".." sequences are mapped to "_", and any character
// outside [A-Za-z0-9_-] is dropped.
func SanitizeUserID(raw string) (string, error) {
	s := strings.ReplaceAll(raw, "..", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	id := b.String()
	if id == "" || len(id) > maxUserIDLen {
		return "", ErrInvalidUserID
	}
	return id, nil
}

// Derive computes the per-tenant path layout from the roots and a raw user
// ID. The ID is sanitized before any path is built.
func Derive(roots Roots, rawUserID string) (Paths, error) {
	id, err := SanitizeUserID(rawUserID)
	if err != nil {
		return Paths{}, err
	}
	workspace := filepath.Join(roots.WorkspaceRoot, "users", id)
	return Paths{
		UserID:        id,
		ConfigPath:    filepath.Join(roots.ConfigRoot, "users", id, "config.json"),
		WorkspacePath: workspace,
		AgentDir:      filepath.Join(workspace, "agent"),
		SessionsPath:  filepath.Join(workspace, "sessions"),
		MemoryPath:    filepath.Join(workspace, "memory"),
	}, nil
}
