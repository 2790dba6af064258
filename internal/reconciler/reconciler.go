package reconciler

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/openclaw/gateway/internal/manager"
)

// Reconciler periodically checks for drift between the in-memory tenant
// cache and the filesystem. If a cached instance's persisted config has been
// deleted out-of-band, the instance is evicted, unless it has requests in
// flight, in which case it stays cached and is checked again on the next
// pass; if only its workspace tree is missing, the tree is re-provisioned
// from the persisted config.
type Reconciler struct {
	mgr      *manager.Manager
	interval time.Duration
	logger   *slog.Logger
}

// New creates a Reconciler.
func New(mgr *manager.Manager, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		mgr:      mgr,
		interval: 60 * time.Second,
		logger:   logger,
	}
}

// Run starts the reconciliation loop. It blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("reconciler: starting", "interval", r.interval)

	r.Reconcile(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler: shutting down")
			return
		case <-ticker.C:
			r.Reconcile(ctx)
		}
	}
}

// Reconcile performs a single drift-detection pass.
func (r *Reconciler) Reconcile(ctx context.Context) {
	instances := r.mgr.Instances()
	if len(instances) == 0 {
		return
	}

	r.logger.Debug("reconciler: checking cached instances", "count", len(instances))

	for _, inst := range instances {
		if ctx.Err() != nil {
			return
		}

		hasConfig, err := r.mgr.HasDiskConfig(inst.UserID)
		if err != nil {
			r.logger.Error("reconciler: config check failed",
				"user", inst.UserID, "err", err)
			continue
		}
		if !hasConfig {
			// Config deleted out-of-band: the cached instance no longer
			// has an authoritative backing record.
			r.logger.Warn("reconciler: persisted config missing, evicting",
				"user", inst.UserID)
			r.mgr.ForceEvict(inst.UserID, false)
			continue
		}

		if _, err := os.Stat(inst.WorkspacePath); os.IsNotExist(err) {
			r.logger.Warn("reconciler: workspace missing, re-provisioning",
				"user", inst.UserID, "path", inst.WorkspacePath)
			if err := r.mgr.Reprovision(inst.UserID); err != nil {
				r.logger.Error("reconciler: re-provision failed",
					"user", inst.UserID, "err", err)
			}
		}
	}
}
