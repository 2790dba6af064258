package cloud_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openclaw/gateway/internal/cloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyToken_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/verify-token", r.URL.Path)
		require.Equal(t, "gt_abc", r.URL.Query().Get("token"))
		require.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"user_id":         "u-1",
				"status":          "active",
				"openclaw_config": map[string]int{"m": 1},
			},
		})
	}))
	defer srv.Close()

	c := cloud.NewClient(srv.URL, "svc-token", nil)
	res, err := c.VerifyToken(context.Background(), "gt_abc")
	require.NoError(t, err)
	assert.Equal(t, "u-1", res.UserID)
	assert.Equal(t, cloud.StatusActive, res.Status)
	assert.JSONEq(t, `{"m":1}`, string(res.Config))
}

func TestVerifyToken_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := cloud.NewClient(srv.URL, "svc-token", nil)
	_, err := c.VerifyToken(context.Background(), "gt_bad")
	assert.ErrorIs(t, err, cloud.ErrUnauthorized)
}

func TestVerifyToken_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := cloud.NewClient(srv.URL, "svc-token", nil)
	_, err := c.VerifyToken(context.Background(), "gt_abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, cloud.ErrUnauthorized)
}

func TestFetchConfigs_IncrementalCursor(t *testing.T) {
	var gotSince, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/gateway/configs", r.URL.Path)
		gotSince = r.URL.Query().Get("since")
		gotAuth = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"users": []map[string]any{{
				"user_id":         "u-1",
				"gateway_token":   "gt_abc",
				"openclaw_config": map[string]int{"m": 1},
				"status":          "active",
				"llm_api_key":     "sk-1",
				"updated_at":      "2026-08-01T00:00:00Z",
			}},
			"syncTimestamp": "2026-08-01T00:00:01Z",
			"hasMore":       true,
			"nextCursor":    "page-2",
		})
	}))
	defer srv.Close()

	c := cloud.NewClient(srv.URL, "svc-token", nil)
	page, err := c.FetchConfigs(context.Background(), "2026-07-31T00:00:00Z", "")
	require.NoError(t, err)

	assert.Equal(t, "2026-07-31T00:00:00Z", gotSince)
	assert.Equal(t, "Bearer svc-token", gotAuth)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "u-1", page.Users[0].UserID)
	assert.Equal(t, "gt_abc", page.Users[0].GatewayToken)
	assert.Equal(t, "sk-1", page.Users[0].LLMAPIKey)
	assert.True(t, page.HasMore)
	assert.Equal(t, "page-2", page.NextCursor)
	assert.Equal(t, "2026-08-01T00:00:01Z", page.SyncTimestamp)
}

// TestBreaker_OpensAfterConsecutiveFailures verifies the circuit opens after
// repeated transport failures and fails fast without hitting the backend.
func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := cloud.NewClient(srv.URL, "svc-token", nil)
	for i := 0; i < 5; i++ {
		_, err := c.FetchConfigs(context.Background(), "", "")
		require.Error(t, err)
	}
	hitsBefore := hits

	// Circuit is open now; this call must not reach the server
	_, err := c.FetchConfigs(context.Background(), "", "")
	require.Error(t, err)
	assert.Equal(t, hitsBefore, hits)
}
