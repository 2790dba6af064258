package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/openclaw/gateway/internal/manager"
)

// Outcome classifies an authentication attempt.
type Outcome int

const (
	// OutcomeNoToken means no gateway token was offered; the caller falls
	// back to single-user authentication.
	OutcomeNoToken Outcome = iota
	// OutcomeAuthenticated carries a resolved user ID.
	OutcomeAuthenticated
	// OutcomeRejected means a gateway token was offered and failed. There
	// is no fallback: the connection is refused.
	OutcomeRejected
)

// RejectReason is the wire error code sent on a rejected connection.
const RejectReason = "gateway_token_invalid"

const (
	negCacheSize = 4096
	negCacheTTL  = 30 * time.Second
)

// ExtractToken pulls a gateway token from the three supported channels, in
// precedence order: explicit connect payload field, X-Gateway-Token header,
// Authorization bearer. Returns "" when none is present.
func ExtractToken(connectToken string, h http.Header) string {
	if connectToken != "" {
		return connectToken
	}
	if h == nil {
		return ""
	}
	if t := h.Get("X-Gateway-Token"); t != "" {
		return t
	}
	if authz := h.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return ""
}

// Authenticator resolves gateway tokens through the tenant manager. An
// unknown token whose authentication failed is remembered briefly so a client
// retry-looping on a bad token does not hammer the verify endpoint. Every
// failure is remembered, not only a backend rejection: a transport failure
// or an unreachable backend also blocks the token until the entry expires.
type Authenticator struct {
	mgr      *manager.Manager
	rejected *expirable.LRU[string, time.Time]
	logger   *slog.Logger
}

// New creates an Authenticator over the manager.
func New(mgr *manager.Manager, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		mgr:      mgr,
		rejected: expirable.NewLRU[string, time.Time](negCacheSize, nil, negCacheTTL),
		logger:   logger,
	}
}

// Authenticate resolves the token offered via the given channels. When a
// token is present, multi-tenant authentication is the sole path; a failure
// is terminal for the connection.
func (a *Authenticator) Authenticate(ctx context.Context, connectToken string, h http.Header) (string, Outcome) {
	token := ExtractToken(connectToken, h)
	if token == "" {
		return "", OutcomeNoToken
	}

	if a.mgr.HasToken(token) {
		// Known token: skip the negative cache so a just-synced tenant
		// is not shadowed by a stale rejection.
		if userID, ok := a.mgr.AuthenticateToken(ctx, token); ok {
			return userID, OutcomeAuthenticated
		}
		return "", OutcomeRejected
	}

	if _, stale := a.rejected.Get(token); stale {
		return "", OutcomeRejected
	}

	userID, ok := a.mgr.AuthenticateToken(ctx, token)
	if !ok {
		a.rejected.Add(token, time.Now())
		a.logger.Debug("gateway token rejected")
		return "", OutcomeRejected
	}
	return userID, OutcomeAuthenticated
}
