package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openclaw/gateway/internal/tenant"
)

// defaultProxyBaseURL is where tenant LLM traffic is routed when the
// deployment does not override it.
const defaultProxyBaseURL = "https://api.openclaw.ai/v1"

// Provisioner materializes per-tenant directory trees and credential files.
type Provisioner struct {
	ProxyBaseURL string
}

type authProfile struct {
	Type     string `json:"type"`
	Provider string `json:"provider"`
	Key      string `json:"key"`
	BaseURL  string `json:"baseURL,omitempty"`
}

type authProfileStore struct {
	Version  int                    `json:"version"`
	Profiles map[string]authProfile `json:"profiles"`
}

// Provision ensures the tenant's directory tree exists and, when an upstream
// LLM credential is present, writes the agent credential files. Credential
// files are rewritten on every call so upstream key rotations take effect;
// everything else is create-if-absent.
func (p *Provisioner) Provision(paths tenant.Paths, llmAPIKey string) error {
	dirs := []string{
		paths.WorkspacePath,
		paths.AgentDir,
		paths.SessionsPath,
		paths.MemoryPath,
		filepath.Join(paths.WorkspacePath, "custom"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	if llmAPIKey != "" {
		if err := p.writeCredentialFiles(paths, llmAPIKey); err != nil {
			return err
		}
	}

	if err := writeIfAbsent(filepath.Join(paths.AgentDir, "openclaw.json"),
		[]byte("{\n  \"agent\": {}\n}\n")); err != nil {
		return err
	}
	if err := writeIfAbsent(filepath.Join(paths.WorkspacePath, "HEARTBEAT.md"),
		[]byte(builtinDefaults["HEARTBEAT.md"])); err != nil {
		return err
	}
	if err := writeIfAbsent(filepath.Join(paths.WorkspacePath, "USER.md"),
		[]byte(builtinDefaults["USER.md"])); err != nil {
		return err
	}
	return nil
}

func (p *Provisioner) proxyURL() string {
	if p.ProxyBaseURL != "" {
		return p.ProxyBaseURL
	}
	return defaultProxyBaseURL
}

func (p *Provisioner) writeCredentialFiles(paths tenant.Paths, key string) error {
	store := authProfileStore{
		Version: 1,
		Profiles: map[string]authProfile{
			"anthropic:default": {Type: "api_key", Provider: "anthropic", Key: key, BaseURL: p.proxyURL()},
			"openai:default":    {Type: "api_key", Provider: "openai", Key: key, BaseURL: p.proxyURL()},
		},
	}
	if err := writeJSON(filepath.Join(paths.AgentDir, "auth-profiles.json"), store); err != nil {
		return err
	}

	models := map[string]map[string]string{
		"anthropic": {"baseUrl": p.proxyURL()},
		"openai":    {"baseUrl": p.proxyURL()},
	}
	return writeJSON(filepath.Join(paths.AgentDir, "models.json"), models)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), fileMode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeIfAbsent(path string, content []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, content, fileMode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
