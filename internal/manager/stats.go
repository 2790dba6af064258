package manager

import "time"

// Stats is a point-in-time snapshot of manager counters.
type Stats struct {
	ActiveInstances int                   `json:"active_instances"`
	TotalUsers      int                   `json:"total_users"`
	TokenCount      int                   `json:"token_count"`
	CacheHits       int64                 `json:"cache_hits"`
	CacheMisses     int64                 `json:"cache_misses"`
	SyncFailures    int                   `json:"sync_failures"`
	LastSyncAt      time.Time             `json:"last_sync_at"`
	Evictions       map[EvictReason]int64 `json:"evictions"`
	PendingRequests int                   `json:"pending_requests"`
}

// Stats returns current counters. TotalUsers is the number of distinct
// users known to the token index.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make(map[string]struct{}, len(m.tokens))
	for _, userID := range m.tokens {
		users[userID] = struct{}{}
	}
	pending := 0
	for _, inst := range m.instances {
		pending += inst.PendingRequests
	}
	ev := make(map[EvictReason]int64, len(m.evictions))
	for k, v := range m.evictions {
		ev[k] = v
	}
	return Stats{
		ActiveInstances: len(m.instances),
		TotalUsers:      len(users),
		TokenCount:      len(m.tokens),
		CacheHits:       m.cacheHits,
		CacheMisses:     m.cacheMisses,
		SyncFailures:    m.syncFailures,
		LastSyncAt:      m.lastSyncAt,
		Evictions:       ev,
		PendingRequests: pending,
	}
}
