package api

import (
	"encoding/json"
	"time"
)

// Tenant is the wire shape of a cached tenant snapshot served by the
// gateway ops API. Credentials are never present.
type Tenant struct {
	UserID          string          `json:"user_id"`
	Status          string          `json:"status"`
	Config          json.RawMessage `json:"config,omitempty"`
	WorkspacePath   string          `json:"workspace_path"`
	LastActivityAt  time.Time       `json:"last_activity_at"`
	PendingRequests int             `json:"pending_requests"`
}

// ManagerStats mirrors the manager block of /stats.
type ManagerStats struct {
	ActiveInstances int              `json:"active_instances"`
	TotalUsers      int              `json:"total_users"`
	TokenCount      int              `json:"token_count"`
	CacheHits       int64            `json:"cache_hits"`
	CacheMisses     int64            `json:"cache_misses"`
	SyncFailures    int              `json:"sync_failures"`
	LastSyncAt      time.Time        `json:"last_sync_at"`
	Evictions       map[string]int64 `json:"evictions"`
	PendingRequests int              `json:"pending_requests"`
}

// SyncStatus mirrors the sync block of /stats.
type SyncStatus struct {
	LastSyncTimestamp   string        `json:"last_sync_timestamp"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	NextRetryDelay      time.Duration `json:"next_retry_delay"`
	InFlight            bool          `json:"in_flight"`
}

// Stats is the /stats response.
type Stats struct {
	Manager ManagerStats `json:"manager"`
	Sync    SyncStatus   `json:"sync"`
}

// SyncResult is the /sync response.
type SyncResult struct {
	Success      bool   `json:"success"`
	UsersUpdated int    `json:"users_updated"`
	Error        string `json:"error,omitempty"`
}
