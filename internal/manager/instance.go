package manager

import (
	"encoding/json"
	"time"

	"github.com/openclaw/gateway/internal/cloud"
)

// TenantInstance is the authoritative in-memory record for a loaded user.
// All fields are guarded by the manager mutex; snapshots handed past the
// lock boundary are copies.
type TenantInstance struct {
	UserID          string
	Status          cloud.Status
	Config          json.RawMessage
	LLMAPIKey       string
	WorkspacePath   string
	ConfigPath      string
	LastActivityAt  time.Time
	PendingRequests int
}

// Snapshot is a copy of instance state safe to use outside the manager lock.
// The LLM API key is intentionally omitted.
type Snapshot struct {
	UserID          string          `json:"user_id"`
	Status          cloud.Status    `json:"status"`
	Config          json.RawMessage `json:"config,omitempty"`
	WorkspacePath   string          `json:"workspace_path"`
	LastActivityAt  time.Time       `json:"last_activity_at"`
	PendingRequests int             `json:"pending_requests"`
}

func (i *TenantInstance) snapshot() Snapshot {
	cfg := make(json.RawMessage, len(i.Config))
	copy(cfg, i.Config)
	return Snapshot{
		UserID:          i.UserID,
		Status:          i.Status,
		Config:          cfg,
		WorkspacePath:   i.WorkspacePath,
		LastActivityAt:  i.LastActivityAt,
		PendingRequests: i.PendingRequests,
	}
}
