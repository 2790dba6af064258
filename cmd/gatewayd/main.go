package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openclaw/gateway/internal/api"
	"github.com/openclaw/gateway/internal/cloud"
	"github.com/openclaw/gateway/internal/config"
	"github.com/openclaw/gateway/internal/manager"
	"github.com/openclaw/gateway/internal/monitor"
	"github.com/openclaw/gateway/internal/reconciler"
	"github.com/openclaw/gateway/internal/syncer"
	"github.com/openclaw/gateway/internal/tenant"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	port := getenv("OPENCLAW_GATEWAY_PORT", "8080")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	g, err := config.Load()
	if err != nil {
		slog.Error("load global config", "err", err)
		os.Exit(1)
	}
	mt, err := g.ResolvedMultiTenant()
	if err != nil {
		if errors.Is(err, config.ErrUnavailable) {
			slog.Error("multi-tenant mode is not configured; enable the multiTenant block in the global config", "err", err)
		} else {
			slog.Error("resolve multi-tenant config", "err", err)
		}
		os.Exit(1)
	}

	backend := cloud.NewClient(mt.CloudBackendURL, mt.ServiceToken, slog.Default())

	mgr := manager.New(manager.Config{
		Roots: tenant.Roots{
			ConfigRoot:    mt.ConfigRoot,
			WorkspaceRoot: mt.WorkspaceRoot,
			TemplatePath:  mt.TemplatePath,
		},
		ProxyBaseURL:    mt.ProxyBaseURL,
		MaxCachedUsers:  mt.CacheCap(),
		UserIdleTimeout: mt.UserIdleTimeout(),
	}, backend)

	sync := syncer.New(mgr, backend, syncer.Config{
		Interval: mt.SyncInterval(),
		OnAlert: func(errMsg string, failures int) {
			slog.Error("config sync alert", "err", errMsg, "consecutive_failures", failures)
		},
	})

	reg := prometheus.NewRegistry()
	mon := monitor.New(mgr, reg, monitor.Config{})
	rec := reconciler.New(mgr, slog.Default())

	mgr.Start()
	go sync.Run(ctx)
	go mon.Run(ctx)
	go rec.Run(ctx)

	h := api.New(mgr, sync, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: h.Router(),
	}

	go func() {
		slog.Info("gateway ops API listening", "port", port, "backend", mt.CloudBackendURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	mgr.Stop()
}
