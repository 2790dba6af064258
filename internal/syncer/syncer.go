package syncer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openclaw/gateway/internal/cloud"
	"github.com/openclaw/gateway/internal/manager"
)

const (
	defaultInterval       = 5 * time.Minute
	defaultInitialRetry   = time.Second
	defaultMaxRetry       = 5 * time.Minute
	defaultAlertThreshold = 5
	pageFollowUpDelay     = 100 * time.Millisecond
)

// AlertFunc is invoked when consecutive sync failures reach the alert
// threshold. It runs on the goroutine of the failing pull (the Run loop, or
// the caller of SyncNow); keep it fast.
type AlertFunc func(err string, consecutiveFailures int)

// Config configures the sync service.
type Config struct {
	Interval       time.Duration
	InitialRetry   time.Duration
	MaxRetry       time.Duration
	AlertThreshold int
	OnAlert        AlertFunc
	Logger         *slog.Logger
}

// Result is the outcome of a SyncNow call.
type Result struct {
	Success      bool   `json:"success"`
	UsersUpdated int    `json:"users_updated"`
	Error        string `json:"error,omitempty"`
}

// Status is a snapshot of the sync state machine.
type Status struct {
	LastSyncTimestamp   string        `json:"last_sync_timestamp"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	NextRetryDelay      time.Duration `json:"next_retry_delay"`
	InFlight            bool          `json:"in_flight"`
}

// Service pulls tenant records from the cloud backend on a fixed interval,
// incrementally by timestamp cursor, retrying with exponential backoff.
// At most one sync is in flight at a time.
type Service struct {
	mgr     *manager.Manager
	backend cloud.Backend
	cfg     Config
	logger  *slog.Logger

	syncing atomic.Bool

	mu         sync.Mutex
	lastSync   string // opaque ISO-8601 cursor from the backend
	cursor     string // pagination cursor within a multi-page pull
	failures   int
	retryDelay time.Duration
}

// New creates a sync service bound to a manager and backend.
func New(mgr *manager.Manager, backend cloud.Backend, cfg Config) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.InitialRetry <= 0 {
		cfg.InitialRetry = defaultInitialRetry
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = defaultMaxRetry
	}
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = defaultAlertThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		mgr:        mgr,
		backend:    backend,
		cfg:        cfg,
		logger:     cfg.Logger,
		retryDelay: cfg.InitialRetry,
	}
}

// Run drives the periodic sync loop until ctx is cancelled. The first pull
// happens immediately; page follow-ups are scheduled at a short delay, and
// failures back off exponentially up to the configured maximum.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info("config sync: starting", "interval", s.cfg.Interval)

	delay := time.Duration(0)
	for {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("config sync: shutting down")
			return
		case <-timer.C:
		}
		delay = s.step(ctx)
	}
}

// step runs one page pull and returns the delay before the next one.
func (s *Service) step(ctx context.Context) time.Duration {
	if !s.syncing.CompareAndSwap(false, true) {
		// A SyncNow call is in flight; check back at the interval.
		return s.cfg.Interval
	}
	defer s.syncing.Store(false)

	hasMore, err := s.pullPage(ctx)
	if err != nil {
		return s.onFailure(err)
	}
	if hasMore {
		return pageFollowUpDelay
	}
	return s.cfg.Interval
}

// SyncNow pulls immediately from the current since cursor and drains all
// pages. A concurrent sync makes
// this a no-op reported as sync_in_progress.
func (s *Service) SyncNow(ctx context.Context) Result {
	if !s.syncing.CompareAndSwap(false, true) {
		return Result{Success: false, Error: "sync_in_progress"}
	}
	defer s.syncing.Store(false)

	total := 0
	for {
		hasMore, applied, err := s.pullPageCounted(ctx)
		if err != nil {
			s.onFailure(err)
			return Result{Success: false, UsersUpdated: total, Error: err.Error()}
		}
		total += applied
		if !hasMore {
			return Result{Success: true, UsersUpdated: total}
		}
	}
}

// pullPage fetches and applies one page of the config feed.
func (s *Service) pullPage(ctx context.Context) (bool, error) {
	hasMore, _, err := s.pullPageCounted(ctx)
	return hasMore, err
}

func (s *Service) pullPageCounted(ctx context.Context) (bool, int, error) {
	s.mu.Lock()
	since, cursor := s.lastSync, s.cursor
	s.mu.Unlock()

	page, err := s.backend.FetchConfigs(ctx, since, cursor)
	if err != nil {
		return false, 0, err
	}

	applied := 0
	if len(page.Users) > 0 {
		applied = s.mgr.UpdateConfigs(page.Users)
	} else {
		// An empty page still advances the cursor and counts as success.
		s.mgr.UpdateConfigs(nil)
	}

	s.mu.Lock()
	if page.SyncTimestamp != "" {
		s.lastSync = page.SyncTimestamp
	}
	if page.HasMore {
		s.cursor = page.NextCursor
	} else {
		s.cursor = ""
	}
	s.failures = 0
	s.retryDelay = s.cfg.InitialRetry
	s.mu.Unlock()

	s.logger.Debug("config sync: page applied",
		"users", len(page.Users), "applied", applied, "has_more", page.HasMore)
	return page.HasMore, applied, nil
}

// onFailure records a failed pass and returns the backoff delay before the
// next attempt: min(initial * 2^(k-1), max) for the k-th consecutive
// failure.
func (s *Service) onFailure(err error) time.Duration {
	s.mu.Lock()
	s.failures++
	failures := s.failures
	delay := s.retryDelay
	s.retryDelay = min(s.retryDelay*2, s.cfg.MaxRetry)
	s.mu.Unlock()

	s.mgr.RecordSyncFailure(err.Error())
	s.logger.Error("config sync: pull failed",
		"err", err, "consecutive_failures", failures, "retry_in", delay)

	if failures >= s.cfg.AlertThreshold && s.cfg.OnAlert != nil {
		s.cfg.OnAlert(err.Error(), failures)
	}
	return delay
}

// Status returns a snapshot of the sync state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		LastSyncTimestamp:   s.lastSync,
		ConsecutiveFailures: s.failures,
		NextRetryDelay:      s.retryDelay,
		InFlight:            s.syncing.Load(),
	}
}
