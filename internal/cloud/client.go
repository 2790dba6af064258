package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrUnauthorized is returned by VerifyToken when the backend rejects the
// token outright (401). It is terminal; the gateway never retries it.
var ErrUnauthorized = errors.New("gateway token rejected by backend")

const (
	verifyTimeout = 5 * time.Second
	fetchTimeout  = 30 * time.Second

	breakerMaxFailures uint32 = 5
	breakerTimeout            = 30 * time.Second
)

// Backend is the gateway's view of the cloud control plane.
type Backend interface {
	// VerifyToken resolves a gateway token to a tenant identity.
	// Returns ErrUnauthorized for an invalid token; other errors are
	// transport failures.
	VerifyToken(ctx context.Context, token string) (*VerifyResult, error)
	// FetchConfigs pulls one page of tenant records updated since the
	// given cursor (empty for a full pull).
	FetchConfigs(ctx context.Context, since, cursor string) (*ConfigsPage, error)
}

// Client talks to the cloud backend over HTTPS. Calls are routed through a
// circuit breaker so a dead backend fails fast instead of stacking up
// timed-out requests.
type Client struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
	breaker      *gobreaker.CircuitBreaker[any]
	logger       *slog.Logger
}

// NewClient creates a backend client. baseURL has no trailing slash.
func NewClient(baseURL, serviceToken string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "cloud-backend",
		MaxRequests: 1, // one probe in half-open
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("cloud backend breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// A definitive 401 is a healthy backend saying no.
			return err == nil || errors.Is(err, ErrUnauthorized)
		},
	})
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		serviceToken: serviceToken,
		httpClient:   &http.Client{Timeout: fetchTimeout},
		breaker:      cb,
		logger:       logger,
	}
}

type verifyEnvelope struct {
	Data VerifyResult `json:"data"`
}

// VerifyToken implements Backend.
func (c *Client) VerifyToken(ctx context.Context, token string) (*VerifyResult, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
		defer cancel()

		u := fmt.Sprintf("%s/auth/verify-token?token=%s", c.baseURL, url.QueryEscape(token))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("verify-token: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, ErrUnauthorized
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, fmt.Errorf("verify-token: unexpected status %d", resp.StatusCode)
		}

		var env verifyEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return nil, fmt.Errorf("decode verify response: %w", err)
		}
		return &env.Data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*VerifyResult), nil
}

// FetchConfigs implements Backend.
func (c *Client) FetchConfigs(ctx context.Context, since, cursor string) (*ConfigsPage, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()

		q := url.Values{}
		if since != "" {
			q.Set("since", since)
		}
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		u := c.baseURL + "/gateway/configs"
		if enc := q.Encode(); enc != "" {
			u += "?" + enc
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.serviceToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch configs: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("fetch configs: unexpected status %d", resp.StatusCode)
		}

		var page ConfigsPage
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return nil, fmt.Errorf("decode configs response: %w", err)
		}
		return &page, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*ConfigsPage), nil
}
