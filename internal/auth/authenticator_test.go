package auth_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/openclaw/gateway/internal/auth"
	"github.com/openclaw/gateway/internal/cloud"
	"github.com/openclaw/gateway/internal/manager"
	"github.com/openclaw/gateway/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractToken_Precedence(t *testing.T) {
	h := http.Header{}
	h.Set("X-Gateway-Token", "gt_header")
	h.Set("Authorization", "Bearer gt_bearer")

	// Connect payload wins over both headers
	assert.Equal(t, "gt_connect", auth.ExtractToken("gt_connect", h))
	// X-Gateway-Token wins over Authorization
	assert.Equal(t, "gt_header", auth.ExtractToken("", h))

	h.Del("X-Gateway-Token")
	assert.Equal(t, "gt_bearer", auth.ExtractToken("", h))

	h.Del("Authorization")
	assert.Empty(t, auth.ExtractToken("", h))
	assert.Empty(t, auth.ExtractToken("", nil))
}

func TestExtractToken_NonBearerAuthorization(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, auth.ExtractToken("", h))
}

func newTestAuthenticator(t *testing.T, backend cloud.Backend) (*auth.Authenticator, *manager.Manager) {
	t.Helper()
	m := manager.New(manager.Config{
		Roots: tenant.Roots{ConfigRoot: t.TempDir(), WorkspaceRoot: t.TempDir()},
	}, backend)
	return auth.New(m, nil), m
}

func TestAuthenticate_NoToken(t *testing.T) {
	a, _ := newTestAuthenticator(t, cloud.NewMockBackend())
	_, outcome := a.Authenticate(context.Background(), "", nil)
	assert.Equal(t, auth.OutcomeNoToken, outcome)
}

func TestAuthenticate_Success(t *testing.T) {
	backend := cloud.NewMockBackend()
	backend.Tokens["gt_1"] = &cloud.VerifyResult{UserID: "u-1", Status: cloud.StatusActive}
	a, _ := newTestAuthenticator(t, backend)

	userID, outcome := a.Authenticate(context.Background(), "gt_1", nil)
	assert.Equal(t, auth.OutcomeAuthenticated, outcome)
	assert.Equal(t, "u-1", userID)
}

// TestAuthenticate_RejectedNoFallback: an offered token that fails is
// terminal, not a fall-through to single-user auth.
func TestAuthenticate_RejectedNoFallback(t *testing.T) {
	a, _ := newTestAuthenticator(t, cloud.NewMockBackend())
	userID, outcome := a.Authenticate(context.Background(), "gt_bogus", nil)
	assert.Equal(t, auth.OutcomeRejected, outcome)
	assert.Empty(t, userID)
}

// TestAuthenticate_NegativeCache: a rejected unknown token short-circuits on
// retry without a second verify call.
func TestAuthenticate_NegativeCache(t *testing.T) {
	backend := cloud.NewMockBackend()
	a, _ := newTestAuthenticator(t, backend)

	_, outcome := a.Authenticate(context.Background(), "gt_bogus", nil)
	require.Equal(t, auth.OutcomeRejected, outcome)
	require.Equal(t, 1, backend.VerifyCalls)

	_, outcome = a.Authenticate(context.Background(), "gt_bogus", nil)
	assert.Equal(t, auth.OutcomeRejected, outcome)
	assert.Equal(t, 1, backend.VerifyCalls, "second attempt served from negative cache")
}

// TestAuthenticate_SyncedTokenBypassesNegativeCache: a token that arrives
// via sync after being rejected authenticates without waiting for the
// negative-cache TTL.
func TestAuthenticate_SyncedTokenBypassesNegativeCache(t *testing.T) {
	backend := cloud.NewMockBackend()
	a, m := newTestAuthenticator(t, backend)

	_, outcome := a.Authenticate(context.Background(), "gt_new", nil)
	require.Equal(t, auth.OutcomeRejected, outcome)

	m.UpdateConfigs([]cloud.TenantRecord{{
		UserID:       "u-9",
		GatewayToken: "gt_new",
		Status:       cloud.StatusActive,
	}})

	userID, outcome := a.Authenticate(context.Background(), "gt_new", nil)
	assert.Equal(t, auth.OutcomeAuthenticated, outcome)
	assert.Equal(t, "u-9", userID)
}
