package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openclaw/gateway/internal/api"
	"github.com/openclaw/gateway/internal/cloud"
	"github.com/openclaw/gateway/internal/manager"
	"github.com/openclaw/gateway/internal/syncer"
	"github.com/openclaw/gateway/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*api.Handler, *manager.Manager, *cloud.MockBackend) {
	t.Helper()
	backend := cloud.NewMockBackend()
	m := manager.New(manager.Config{
		Roots: tenant.Roots{ConfigRoot: t.TempDir(), WorkspaceRoot: t.TempDir()},
	}, backend)
	s := syncer.New(m, backend, syncer.Config{})
	return api.New(m, s, nil), m, backend
}

func loadTenant(t *testing.T, m *manager.Manager, userID string) {
	t.Helper()
	m.UpdateConfigs([]cloud.TenantRecord{{
		UserID:         userID,
		GatewayToken:   "gt_" + userID,
		OpenclawConfig: json.RawMessage(`{"m":1}`),
		Status:         cloud.StatusActive,
		LLMAPIKey:      "sk-secret",
		UpdatedAt:      time.Now().UTC(),
	}})
	_, err := m.GetInstance(userID)
	require.NoError(t, err)
}

func TestHealthz(t *testing.T) {
	h, _, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStats(t *testing.T) {
	h, m, _ := newTestHandler(t)
	loadTenant(t, m, "u-1")

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.StatsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Manager.ActiveInstances)
	assert.Equal(t, 1, resp.Manager.TotalUsers)
}

func TestListTenants_RedactsCredentials(t *testing.T) {
	h, m, _ := newTestHandler(t)
	loadTenant(t, m, "u-1")

	req := httptest.NewRequest(http.MethodGet, "/tenants", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.NotContains(t, rec.Body.String(), "sk-secret")

	var snaps []manager.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snaps))
	require.Len(t, snaps, 1)
	assert.Equal(t, "u-1", snaps[0].UserID)
}

func TestGetTenant(t *testing.T) {
	h, m, _ := newTestHandler(t)
	loadTenant(t, m, "u-1")

	req := httptest.NewRequest(http.MethodGet, "/tenants/u-1", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap manager.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Equal(t, "u-1", snap.UserID)
	assert.JSONEq(t, `{"m":1}`, string(snap.Config))
}

func TestGetTenant_NotFound(t *testing.T) {
	h, _, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/tenants/ghost", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvictTenant(t *testing.T) {
	h, m, _ := newTestHandler(t)
	loadTenant(t, m, "u-1")

	req := httptest.NewRequest(http.MethodPost, "/tenants/u-1/evict", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp["evicted"])
	assert.Empty(t, m.CachedUserIDs())
}

// TestEvictTenant_PendingRefusedWithoutForce mirrors the manager guard over
// HTTP: pending work blocks eviction unless force=true.
func TestEvictTenant_PendingRefusedWithoutForce(t *testing.T) {
	h, m, _ := newTestHandler(t)
	loadTenant(t, m, "u-1")
	m.IncrementPending("u-1")

	req := httptest.NewRequest(http.MethodPost, "/tenants/u-1/evict", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp["evicted"])

	req = httptest.NewRequest(http.MethodPost, "/tenants/u-1/evict?force=true", nil)
	rec = httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp["evicted"])
}

func TestSyncNow(t *testing.T) {
	h, m, backend := newTestHandler(t)
	backend.Pages = []*cloud.ConfigsPage{
		{Users: []cloud.TenantRecord{{
			UserID: "u-5", GatewayToken: "gt_5", Status: cloud.StatusActive,
			OpenclawConfig: json.RawMessage(`{}`), UpdatedAt: time.Now().UTC(),
		}}, SyncTimestamp: "t1"},
	}

	req := httptest.NewRequest(http.MethodPost, "/sync", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var res syncer.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.UsersUpdated)
	assert.True(t, m.HasToken("gt_5"))
}
