package manager

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/openclaw/gateway/internal/cloud"
)

// storedConfig is the on-disk shape of {configRoot}/users/{id}/config.json.
// It is the gateway's local projection of the upstream tenant record; the
// openclaw_config payload stays opaque.
type storedConfig struct {
	UserID         string          `json:"user_id"`
	GatewayToken   string          `json:"gateway_token,omitempty"`
	Status         cloud.Status    `json:"status"`
	OpenclawConfig json.RawMessage `json:"openclaw_config"`
	LLMAPIKey      string          `json:"llm_api_key,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// writeUserConfig persists a tenant config atomically: written to a temp
// file in the same directory, then renamed over the target.
func writeUserConfig(path string, sc storedConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit config: %w", err)
	}
	return nil
}

// readUserConfig loads a tenant config from disk. Returns (nil, nil) when no
// config exists.
func readUserConfig(path string) (*storedConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var sc storedConfig
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &sc, nil
}
