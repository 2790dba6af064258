package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/openclaw/gateway/internal/manager"
	"github.com/prometheus/client_golang/prometheus"
)

// Severity grades an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Alert is a threshold violation or elevated lifecycle event.
type Alert struct {
	Severity Severity
	Message  string
	At       time.Time
}

// AlertFunc receives alerts. Threshold alerts run on the goroutine calling
// Tick; alerts raised from manager events run on the goroutine that
// delivered the event.
type AlertFunc func(Alert)

// Thresholds configure when the monitor raises alerts.
type Thresholds struct {
	HeapMB             int     // alert when heap exceeds this many MB
	ActiveRatioPercent float64 // alert when activeInstances/totalUsers*100 exceeds this
	SyncFailures       int     // alert when consecutive sync failures reach this
}

// Config configures a Monitor.
type Config struct {
	Interval   time.Duration
	Thresholds Thresholds
	OnAlert    AlertFunc
	Logger     *slog.Logger
}

const defaultInterval = 60 * time.Second

func defaultThresholds() Thresholds {
	return Thresholds{HeapMB: 512, ActiveRatioPercent: 90, SyncFailures: 5}
}

// Monitor samples manager statistics and process memory on a fixed period,
// exports them as Prometheus metrics, and raises threshold alerts. It also
// subscribes to manager events to log tenant lifecycle transitions.
type Monitor struct {
	mgr    *manager.Manager
	cfg    Config
	logger *slog.Logger

	cachedInstances prometheus.Gauge
	knownUsers      prometheus.Gauge
	tokenIndexSize  prometheus.Gauge
	pendingRequests prometheus.Gauge
	heapBytes       prometheus.Gauge
	cacheHits       prometheus.Gauge
	cacheMisses     prometheus.Gauge
	syncFailures    prometheus.Gauge
	evictions       *prometheus.GaugeVec
}

// New creates a Monitor, registers its collectors with reg, and subscribes
// to the manager's event stream.
func New(mgr *manager.Manager, reg prometheus.Registerer, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = defaultThresholds()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	gauge := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "openclaw", Subsystem: "gateway", Name: name, Help: help,
		})
		reg.MustRegister(g)
		return g
	}

	m := &Monitor{
		mgr:             mgr,
		cfg:             cfg,
		logger:          cfg.Logger,
		cachedInstances: gauge("cached_instances", "Tenant instances currently in memory."),
		knownUsers:      gauge("known_users", "Distinct users in the token index."),
		tokenIndexSize:  gauge("token_index_size", "Gateway tokens in the index."),
		pendingRequests: gauge("pending_requests", "In-flight requests across all tenants."),
		heapBytes:       gauge("heap_bytes", "Process heap in use."),
		cacheHits:       gauge("cache_hits_total", "Cumulative tenant cache hits."),
		cacheMisses:     gauge("cache_misses_total", "Cumulative tenant cache misses."),
		syncFailures:    gauge("sync_failures", "Consecutive config sync failures."),
	}
	m.evictions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "openclaw", Subsystem: "gateway", Name: "evictions_total",
		Help: "Cumulative evictions by reason.",
	}, []string{"reason"})
	reg.MustRegister(m.evictions)

	mgr.Subscribe(m.onEvent)
	return m
}

// Run samples until ctx is cancelled. The first sample is immediate.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("monitor: starting", "interval", m.cfg.Interval)

	m.Tick()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor: shutting down")
			return
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Tick takes one sample: snapshot stats, update collectors, check
// thresholds.
func (m *Monitor) Tick() {
	stats := m.mgr.Stats()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m.cachedInstances.Set(float64(stats.ActiveInstances))
	m.knownUsers.Set(float64(stats.TotalUsers))
	m.tokenIndexSize.Set(float64(stats.TokenCount))
	m.pendingRequests.Set(float64(stats.PendingRequests))
	m.heapBytes.Set(float64(mem.HeapAlloc))
	m.cacheHits.Set(float64(stats.CacheHits))
	m.cacheMisses.Set(float64(stats.CacheMisses))
	m.syncFailures.Set(float64(stats.SyncFailures))
	for reason, n := range stats.Evictions {
		m.evictions.WithLabelValues(string(reason)).Set(float64(n))
	}

	heapMB := int(mem.HeapAlloc / (1 << 20))
	if t := m.cfg.Thresholds.HeapMB; t > 0 && heapMB > t {
		m.alert(SeverityWarning, fmt.Sprintf("heap %d MB exceeds threshold %d MB", heapMB, t))
	}
	if t := m.cfg.Thresholds.ActiveRatioPercent; t > 0 && stats.TotalUsers > 0 {
		ratio := float64(stats.ActiveInstances) / float64(stats.TotalUsers) * 100
		if ratio > t {
			m.alert(SeverityWarning, fmt.Sprintf("active instance ratio %.1f%% exceeds threshold %.1f%%", ratio, t))
		}
	}
	if t := m.cfg.Thresholds.SyncFailures; t > 0 && stats.SyncFailures >= t {
		m.alert(SeverityError, fmt.Sprintf("%d consecutive sync failures", stats.SyncFailures))
	}
}

func (m *Monitor) onEvent(ev manager.Event) {
	switch ev.Type {
	case manager.EventUserLoaded:
		m.logger.Info("monitor: user loaded", "user", ev.UserID)
	case manager.EventUserEvicted:
		m.logger.Info("monitor: user evicted", "user", ev.UserID, "reason", ev.Reason)
	case manager.EventUserSuspended:
		m.logger.Warn("monitor: user suspended", "user", ev.UserID)
	case manager.EventUserExpired:
		m.logger.Warn("monitor: user expired", "user", ev.UserID)
	case manager.EventConfigSynced:
		m.logger.Debug("monitor: configs synced", "count", ev.Count)
	case manager.EventSyncFailed:
		if t := m.cfg.Thresholds.SyncFailures; t > 0 && ev.ConsecutiveFailures >= t {
			m.alert(SeverityCritical, fmt.Sprintf("config sync failing (%d consecutive): %s",
				ev.ConsecutiveFailures, ev.Error))
		} else {
			m.logger.Warn("monitor: sync failed", "err", ev.Error, "consecutive", ev.ConsecutiveFailures)
		}
	}
}

func (m *Monitor) alert(sev Severity, msg string) {
	m.logger.Log(context.Background(), levelFor(sev), "monitor alert", "severity", sev, "msg", msg)
	if m.cfg.OnAlert != nil {
		m.cfg.OnAlert(Alert{Severity: sev, Message: msg, At: time.Now()})
	}
}

func levelFor(sev Severity) slog.Level {
	switch sev {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
