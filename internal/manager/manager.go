package manager

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/openclaw/gateway/internal/cloud"
	"github.com/openclaw/gateway/internal/tenant"
	"github.com/openclaw/gateway/internal/workspace"
	"golang.org/x/sync/singleflight"
)

const (
	defaultMaxCachedUsers  = 100
	defaultUserIdleTimeout = time.Hour
	cleanupInterval        = time.Second
)

// Config configures a Manager.
type Config struct {
	Roots           tenant.Roots
	ProxyBaseURL    string
	MaxCachedUsers  int
	UserIdleTimeout time.Duration
	Logger          *slog.Logger
}

// Manager owns the in-memory tenant cache: instance map, token index,
// workspace resolvers, and the eviction machinery. A single mutex guards all
// shared state; remote verification and singleflight loads run outside it.
type Manager struct {
	cfg     Config
	backend cloud.Backend
	prov    *workspace.Provisioner
	logger  *slog.Logger

	mu        sync.Mutex
	instances map[string]*TenantInstance
	order     []string // insertion order, for deterministic eviction scans
	tokens    map[string]string
	resolvers map[string]*workspace.Resolver
	listeners []Listener

	cacheHits    int64
	cacheMisses  int64
	syncFailures int
	lastSyncAt   time.Time
	evictions    map[EvictReason]int64

	flight singleflight.Group

	runMu   sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New creates a Manager. backend is used for verify-on-miss; it may be a
// mock in tests.
func New(cfg Config, backend cloud.Backend) *Manager {
	if cfg.MaxCachedUsers <= 0 {
		cfg.MaxCachedUsers = defaultMaxCachedUsers
	}
	if cfg.UserIdleTimeout <= 0 {
		cfg.UserIdleTimeout = defaultUserIdleTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		cfg:       cfg,
		backend:   backend,
		prov:      &workspace.Provisioner{ProxyBaseURL: cfg.ProxyBaseURL},
		logger:    cfg.Logger,
		instances: make(map[string]*TenantInstance),
		tokens:    make(map[string]string),
		resolvers: make(map[string]*workspace.Resolver),
		evictions: make(map[EvictReason]int64),
	}
}

// Start launches the periodic cleanup loop. Idempotent.
func (m *Manager) Start() {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.stopped = make(chan struct{})
	go func() {
		defer close(m.stopped)
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CleanupInactive()
			}
		}
	}()
	m.logger.Info("tenant manager started",
		"max_cached_users", m.cfg.MaxCachedUsers,
		"idle_timeout", m.cfg.UserIdleTimeout)
}

// Stop cancels the cleanup loop. Cached instances stay in memory so in-flight
// requests can drain. Idempotent.
func (m *Manager) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.stopped
	m.cancel = nil
	m.logger.Info("tenant manager stopped")
}

// AuthenticateToken resolves a gateway token to a user ID. A cached active
// tenant authenticates locally; unknown tokens are verified against the
// cloud backend and, on success, the tenant is provisioned and cached.
// The boolean result is false for unknown, suspended, or expired tenants.
func (m *Manager) AuthenticateToken(ctx context.Context, token string) (string, bool) {
	var events []Event
	defer func() { m.deliver(events) }()

	m.mu.Lock()
	if userID, ok := m.tokens[token]; ok {
		if inst, cached := m.instances[userID]; cached {
			m.cacheHits++
			ok := m.checkStatusLocked(inst, &events)
			if ok {
				inst.LastActivityAt = time.Now()
			}
			m.mu.Unlock()
			if !ok {
				return "", false
			}
			return userID, true
		}
		m.cacheMisses++
		m.mu.Unlock()

		// Known token, instance evicted: rematerialize from disk.
		inst, err := m.loadInstance(userID)
		if err != nil {
			m.logger.Error("authenticate: load instance failed", "user", userID, "err", err)
			return "", false
		}
		if inst != nil {
			m.mu.Lock()
			ok := false
			if live, cached := m.instances[userID]; cached {
				ok = m.checkStatusLocked(live, &events)
				if ok {
					live.LastActivityAt = time.Now()
				}
			}
			m.mu.Unlock()
			if !ok {
				return "", false
			}
			return userID, true
		}
		// Disk config gone out-of-band; fall through to remote verify.
	} else {
		m.cacheMisses++
		m.mu.Unlock()
	}

	return m.verifyAndMaterialize(ctx, token)
}

// checkStatusLocked returns whether the instance may authenticate, emitting
// the suspended/expired event otherwise. Caller holds m.mu.
func (m *Manager) checkStatusLocked(inst *TenantInstance, events *[]Event) bool {
	switch inst.Status {
	case cloud.StatusActive:
		return true
	case cloud.StatusSuspended:
		m.emit(events, Event{Type: EventUserSuspended, UserID: inst.UserID})
	case cloud.StatusExpired:
		m.emit(events, Event{Type: EventUserExpired, UserID: inst.UserID})
	}
	return false
}

// verifyAndMaterialize asks the backend about an unknown token. Concurrent
// calls for the same token share one verify request.
func (m *Manager) verifyAndMaterialize(ctx context.Context, token string) (string, bool) {
	v, err, _ := m.flight.Do("verify:"+token, func() (any, error) {
		return m.backend.VerifyToken(ctx, token)
	})
	if err != nil {
		if errors.Is(err, cloud.ErrUnauthorized) {
			return "", false
		}
		m.logger.Error("authenticate: verify failed", "err", err)
		return "", false
	}
	res := v.(*cloud.VerifyResult)

	paths, err := tenant.Derive(m.cfg.Roots, res.UserID)
	if err != nil {
		m.logger.Error("authenticate: bad user id from backend", "user", res.UserID, "err", err)
		return "", false
	}

	sc := storedConfig{
		UserID:         paths.UserID,
		GatewayToken:   token,
		Status:         res.Status,
		OpenclawConfig: res.Config,
		UpdatedAt:      time.Now().UTC(),
	}
	// Verify responses carry no credential; keep the key from a prior sync.
	if prev, err := readUserConfig(paths.ConfigPath); err == nil && prev != nil {
		sc.LLMAPIKey = prev.LLMAPIKey
	}
	if err := writeUserConfig(paths.ConfigPath, sc); err != nil {
		m.logger.Error("authenticate: persist config failed", "user", paths.UserID, "err", err)
		return "", false
	}
	if err := m.prov.Provision(paths, sc.LLMAPIKey); err != nil {
		m.logger.Error("authenticate: provision failed", "user", paths.UserID, "err", err)
		return "", false
	}

	var events []Event
	m.mu.Lock()
	m.tokens[token] = paths.UserID
	inst, cached := m.instances[paths.UserID]
	if !cached {
		inst = m.insertLocked(paths, sc, &events)
	} else {
		inst.Status = res.Status
		inst.Config = res.Config
	}
	ok := m.checkStatusLocked(inst, &events)
	if ok {
		inst.LastActivityAt = time.Now()
	}
	m.mu.Unlock()
	m.deliver(events)

	if !ok {
		return "", false
	}
	return paths.UserID, true
}

// GetInstance returns a snapshot of a tenant, loading it from the on-disk
// config on a cache miss. Returns (nil, nil) when the tenant is unknown.
func (m *Manager) GetInstance(userID string) (*Snapshot, error) {
	paths, err := tenant.Derive(m.cfg.Roots, userID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if inst, ok := m.instances[paths.UserID]; ok {
		m.cacheHits++
		inst.LastActivityAt = time.Now()
		snap := inst.snapshot()
		m.mu.Unlock()
		return &snap, nil
	}
	m.cacheMisses++
	m.mu.Unlock()

	inst, err := m.loadInstance(paths.UserID)
	if err != nil || inst == nil {
		return nil, err
	}
	m.mu.Lock()
	snap := inst.snapshot()
	m.mu.Unlock()
	return &snap, nil
}

// loadInstance materializes a tenant from its on-disk config. Concurrent
// loads for the same user collapse into one. Returns (nil, nil) when no
// config exists on disk.
func (m *Manager) loadInstance(userID string) (*TenantInstance, error) {
	v, err, _ := m.flight.Do("load:"+userID, func() (any, error) {
		paths, err := tenant.Derive(m.cfg.Roots, userID)
		if err != nil {
			return nil, err
		}
		sc, err := readUserConfig(paths.ConfigPath)
		if err != nil {
			return nil, err
		}
		if sc == nil {
			return (*TenantInstance)(nil), nil
		}
		if err := m.prov.Provision(paths, sc.LLMAPIKey); err != nil {
			return nil, err
		}

		var events []Event
		m.mu.Lock()
		inst, ok := m.instances[paths.UserID]
		if !ok {
			inst = m.insertLocked(paths, *sc, &events)
		}
		m.mu.Unlock()
		m.deliver(events)
		return inst, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*TenantInstance), nil
}

// insertLocked adds a freshly materialized instance to the cache. Caller
// holds m.mu and has already provisioned the directory tree.
func (m *Manager) insertLocked(paths tenant.Paths, sc storedConfig, events *[]Event) *TenantInstance {
	inst := &TenantInstance{
		UserID:         paths.UserID,
		Status:         sc.Status,
		Config:         sc.OpenclawConfig,
		LLMAPIKey:      sc.LLMAPIKey,
		WorkspacePath:  paths.WorkspacePath,
		ConfigPath:     paths.ConfigPath,
		LastActivityAt: time.Now(),
	}
	m.instances[paths.UserID] = inst
	m.order = append(m.order, paths.UserID)
	m.resolvers[paths.UserID] = workspace.NewResolver(paths.UserID, paths.WorkspacePath, m.cfg.Roots.TemplatePath)
	if sc.GatewayToken != "" {
		m.tokens[sc.GatewayToken] = paths.UserID
	}
	m.emit(events, Event{Type: EventUserLoaded, UserID: paths.UserID})
	m.logger.Info("tenant loaded", "user", paths.UserID, "status", sc.Status)
	return inst
}

// Resolver returns the workspace resolver for a cached tenant, or nil when
// the tenant is not loaded.
func (m *Manager) Resolver(userID string) *workspace.Resolver {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolvers[userID]
}

// IncrementPending marks a request in flight for the tenant. An instance
// with pending work is never evicted.
func (m *Manager) IncrementPending(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst, ok := m.instances[userID]; ok {
		inst.PendingRequests++
		inst.LastActivityAt = time.Now()
	}
}

// DecrementPending marks a request finished. A decrement with no matching
// increment is a no-op.
func (m *Manager) DecrementPending(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst, ok := m.instances[userID]; ok {
		if inst.PendingRequests > 0 {
			inst.PendingRequests--
		}
		inst.LastActivityAt = time.Now()
	}
}

// UpdateConfigs applies a batch of tenant records from sync. The manager
// lock is held across the batch so cleanup cannot interleave with it. One
// failing record is logged and skipped; the batch proceeds.
func (m *Manager) UpdateConfigs(records []cloud.TenantRecord) int {
	var events []Event
	applied := 0

	m.mu.Lock()
	for _, rec := range records {
		paths, err := tenant.Derive(m.cfg.Roots, rec.UserID)
		if err != nil {
			m.logger.Warn("sync: skipping record with invalid user id", "user", rec.UserID, "err", err)
			continue
		}
		sc := storedConfig{
			UserID:         paths.UserID,
			GatewayToken:   rec.GatewayToken,
			Status:         rec.Status,
			OpenclawConfig: rec.OpenclawConfig,
			LLMAPIKey:      rec.LLMAPIKey,
			UpdatedAt:      rec.UpdatedAt,
		}
		if err := writeUserConfig(paths.ConfigPath, sc); err != nil {
			m.logger.Error("sync: persist config failed", "user", paths.UserID, "err", err)
			continue
		}

		if rec.GatewayToken != "" {
			// Last write wins: a token shared with a different user
			// re-binds to this record's user.
			m.tokens[rec.GatewayToken] = paths.UserID
		}

		if inst, ok := m.instances[paths.UserID]; ok {
			prevStatus := inst.Status
			inst.Config = rec.OpenclawConfig
			inst.Status = rec.Status
			keyChanged := inst.LLMAPIKey != rec.LLMAPIKey
			inst.LLMAPIKey = rec.LLMAPIKey
			if keyChanged && rec.LLMAPIKey != "" {
				if err := m.prov.Provision(paths, rec.LLMAPIKey); err != nil {
					m.logger.Error("sync: credential refresh failed", "user", paths.UserID, "err", err)
				}
			}
			if prevStatus == cloud.StatusActive && rec.Status == cloud.StatusSuspended {
				m.emit(&events, Event{Type: EventUserSuspended, UserID: paths.UserID})
			}
		}
		applied++
	}
	now := time.Now()
	m.lastSyncAt = now
	m.syncFailures = 0
	m.emit(&events, Event{Type: EventConfigSynced, Count: applied})
	m.mu.Unlock()

	m.deliver(events)
	m.logger.Info("configs synced", "records", len(records), "applied", applied)
	return applied
}

// RecordSyncFailure counts a failed sync pass and publishes sync-failed.
func (m *Manager) RecordSyncFailure(msg string) {
	var events []Event
	m.mu.Lock()
	m.syncFailures++
	m.emit(&events, Event{
		Type:                EventSyncFailed,
		Error:               msg,
		ConsecutiveFailures: m.syncFailures,
	})
	m.mu.Unlock()
	m.deliver(events)
}

// CleanupInactive runs one eviction pass: idle timeout first, then LRU down
// to the cache cap. Instances with pending requests are never touched.
func (m *Manager) CleanupInactive() {
	var events []Event
	now := time.Now()

	m.mu.Lock()
	// Idle pass, in insertion order.
	for _, userID := range append([]string(nil), m.order...) {
		inst, ok := m.instances[userID]
		if !ok || inst.PendingRequests > 0 {
			continue
		}
		if now.Sub(inst.LastActivityAt) > m.cfg.UserIdleTimeout {
			m.evictLocked(userID, EvictIdle, &events)
		}
	}
	// LRU pass: oldest activity first, ties broken by scan order.
	for len(m.instances) > m.cfg.MaxCachedUsers {
		victim := ""
		var oldest time.Time
		for _, userID := range m.order {
			inst, ok := m.instances[userID]
			if !ok || inst.PendingRequests > 0 {
				continue
			}
			if victim == "" || inst.LastActivityAt.Before(oldest) {
				victim = userID
				oldest = inst.LastActivityAt
			}
		}
		if victim == "" {
			break // everyone left has pending work
		}
		m.evictLocked(victim, EvictLRU, &events)
	}
	m.mu.Unlock()

	m.deliver(events)
}

// ForceEvict removes a tenant from the cache. It refuses when the tenant has
// requests in flight unless force is set. Returns whether an instance was
// removed.
func (m *Manager) ForceEvict(userID string, force bool) bool {
	var events []Event
	m.mu.Lock()
	inst, ok := m.instances[userID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	if inst.PendingRequests > 0 && !force {
		m.mu.Unlock()
		m.logger.Warn("evict refused: requests in flight",
			"user", userID, "pending", inst.PendingRequests)
		return false
	}
	m.evictLocked(userID, EvictManual, &events)
	m.mu.Unlock()
	m.deliver(events)
	return true
}

// evictLocked removes one instance and every token bound to it. Caller
// holds m.mu.
func (m *Manager) evictLocked(userID string, reason EvictReason, events *[]Event) {
	delete(m.instances, userID)
	delete(m.resolvers, userID)
	for i, id := range m.order {
		if id == userID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	for token, owner := range m.tokens {
		if owner == userID {
			delete(m.tokens, token)
		}
	}
	m.evictions[reason]++
	m.emit(events, Event{Type: EventUserEvicted, UserID: userID, Reason: reason})
	m.logger.Info("tenant evicted", "user", userID, "reason", reason)
}

// HasToken reports whether a gateway token is present in the index.
func (m *Manager) HasToken(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tokens[token]
	return ok
}

// CachedUserIDs returns the IDs of currently cached instances in insertion
// order.
func (m *Manager) CachedUserIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Instances returns snapshots of all cached instances in insertion order.
func (m *Manager) Instances() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, 0, len(m.order))
	for _, id := range m.order {
		if inst, ok := m.instances[id]; ok {
			out = append(out, inst.snapshot())
		}
	}
	return out
}
