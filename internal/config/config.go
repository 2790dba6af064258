package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tidwall/jsonc"
)

// ErrUnavailable is returned when multi-tenant mode is disabled or not
// configured. Callers surface a clear message and stay on the single-user
// path.
var ErrUnavailable = errors.New("multi-tenant mode not configured")

const (
	envGlobalConfig = "OPENCLAW_GLOBAL_CONFIG"
	envServiceToken = "OPENCLAW_SERVICE_TOKEN"

	cacheTTL = 60 * time.Second

	defaultMaxCachedUsers = 100
	defaultIdleTimeoutMs  = 3_600_000 // 1 h
	defaultSyncIntervalMs = 300_000   // 5 min
)

// MultiTenant is the multiTenant block of the global config. All fields are
// optional; zero values fall back to defaults at access time.
type MultiTenant struct {
	Enabled           bool   `json:"enabled"`
	CloudBackendURL   string `json:"cloudBackendUrl"`
	ServiceToken      string `json:"serviceToken"`
	ConfigRoot        string `json:"configRoot"`
	WorkspaceRoot     string `json:"workspaceRoot"`
	TemplatePath      string `json:"templatePath"`
	ProxyBaseURL      string `json:"proxyBaseUrl"`
	MaxCachedUsers    int    `json:"maxCachedUsers"`
	UserIdleTimeoutMs int64  `json:"userIdleTimeoutMs"`
	SyncIntervalMs    int64  `json:"syncIntervalMs"`
}

// UserIdleTimeout returns the idle timeout with the 1 h default applied.
func (mt *MultiTenant) UserIdleTimeout() time.Duration {
	if mt.UserIdleTimeoutMs <= 0 {
		return time.Duration(defaultIdleTimeoutMs) * time.Millisecond
	}
	return time.Duration(mt.UserIdleTimeoutMs) * time.Millisecond
}

// SyncInterval returns the sync interval with the 5 min default applied.
func (mt *MultiTenant) SyncInterval() time.Duration {
	if mt.SyncIntervalMs <= 0 {
		return time.Duration(defaultSyncIntervalMs) * time.Millisecond
	}
	return time.Duration(mt.SyncIntervalMs) * time.Millisecond
}

// CacheCap returns maxCachedUsers with the default applied.
func (mt *MultiTenant) CacheCap() int {
	if mt.MaxCachedUsers <= 0 {
		return defaultMaxCachedUsers
	}
	return mt.MaxCachedUsers
}

// Global is the parsed global configuration. Blocks the gateway core does
// not own are preserved opaquely in Rest.
type Global struct {
	MultiTenant *MultiTenant               `json:"multiTenant"`
	Rest        map[string]json.RawMessage `json:"-"`

	// Path is the file the config was loaded from; empty when no config
	// file exists anywhere on the search path.
	Path string `json:"-"`
}

// ResolvedMultiTenant returns the multi-tenant block when it exists and is
// enabled, with the service-token env override applied, or ErrUnavailable.
func (g *Global) ResolvedMultiTenant() (*MultiTenant, error) {
	if g.MultiTenant == nil || !g.MultiTenant.Enabled {
		return nil, ErrUnavailable
	}
	mt := *g.MultiTenant
	if tok := os.Getenv(envServiceToken); tok != "" {
		mt.ServiceToken = tok
	}
	if mt.CloudBackendURL == "" {
		return nil, fmt.Errorf("%w: cloudBackendUrl missing", ErrUnavailable)
	}
	if mt.ConfigRoot == "" || mt.WorkspaceRoot == "" {
		return nil, fmt.Errorf("%w: configRoot/workspaceRoot missing", ErrUnavailable)
	}
	return &mt, nil
}

var cache struct {
	mu       sync.Mutex
	loaded   *Global
	loadedAt time.Time
}

// Load returns the global configuration, cached for up to a minute. A
// missing config file is not an error: an empty Global is returned and the
// multi-tenant core stays inert.
func Load() (*Global, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	if cache.loaded != nil && time.Since(cache.loadedAt) < cacheTTL {
		return cache.loaded, nil
	}
	g, err := load()
	if err != nil {
		return nil, err
	}
	cache.loaded = g
	cache.loadedAt = time.Now()
	return g, nil
}

// ResetCache drops the cached config so the next Load re-reads disk.
func ResetCache() {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.loaded = nil
	cache.loadedAt = time.Time{}
}

// searchPaths returns candidate config locations in priority order.
func searchPaths() []string {
	var paths []string
	if p := os.Getenv(envGlobalConfig); p != "" {
		paths = append(paths, p)
	}
	paths = append(paths, "/etc/openclaw/config.json")
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".clawdbot", "openclaw.json"),
			filepath.Join(home, ".openclaw", "openclaw.json"),
		)
	}
	return paths
}

func load() (*Global, error) {
	for _, path := range searchPaths() {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read global config %s: %w", path, err)
		}
		return parse(data, path)
	}
	return &Global{}, nil
}

// parse accepts JSON with comments and trailing commas.
func parse(data []byte, path string) (*Global, error) {
	stripped := jsonc.ToJSON(data)

	var rest map[string]json.RawMessage
	if err := json.Unmarshal(stripped, &rest); err != nil {
		return nil, fmt.Errorf("parse global config %s: %w", path, err)
	}

	g := &Global{Rest: rest, Path: path}
	if raw, ok := rest["multiTenant"]; ok {
		var mt MultiTenant
		if err := json.Unmarshal(raw, &mt); err != nil {
			return nil, fmt.Errorf("parse multiTenant block in %s: %w", path, err)
		}
		g.MultiTenant = &mt
		delete(rest, "multiTenant")
	}
	return g, nil
}
