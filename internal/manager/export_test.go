package manager

import (
	"time"

	"github.com/openclaw/gateway/internal/cloud"
)

// SetLastActivityForTest backdates a cached instance's activity timestamp.
func (m *Manager) SetLastActivityForTest(userID string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst, ok := m.instances[userID]; ok {
		inst.LastActivityAt = t
	}
}

// SetStatusForTest overrides a cached instance's status.
func (m *Manager) SetStatusForTest(userID string, status cloud.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst, ok := m.instances[userID]; ok {
		inst.Status = status
	}
}
