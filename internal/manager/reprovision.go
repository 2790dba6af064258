package manager

import (
	"fmt"

	"github.com/openclaw/gateway/internal/tenant"
)

// HasDiskConfig reports whether a persisted config exists for the user.
func (m *Manager) HasDiskConfig(userID string) (bool, error) {
	paths, err := tenant.Derive(m.cfg.Roots, userID)
	if err != nil {
		return false, err
	}
	sc, err := readUserConfig(paths.ConfigPath)
	if err != nil {
		return false, err
	}
	return sc != nil, nil
}

// Reprovision rebuilds the directory tree and credential files for a user
// from its persisted config. Used when a workspace has been removed
// out-of-band while the instance stayed cached.
func (m *Manager) Reprovision(userID string) error {
	paths, err := tenant.Derive(m.cfg.Roots, userID)
	if err != nil {
		return err
	}
	sc, err := readUserConfig(paths.ConfigPath)
	if err != nil {
		return err
	}
	if sc == nil {
		return fmt.Errorf("no persisted config for %s", paths.UserID)
	}
	return m.prov.Provision(paths, sc.LLMAPIKey)
}
