// Package output provides formatting helpers for openclawctl: JSON,
// fixed-width tables, and optionally colored status lines.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openclaw/gateway/internal/cli/api"
)

// FormatJSON converts data to pretty-printed JSON with 2-space indentation.
func FormatJSON(data any) (string, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// TenantTable renders tenant snapshots as a fixed-width table.
func TenantTable(tenants []api.Tenant) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-24s %-10s %-8s %s\n", "USER", "STATUS", "PENDING", "LAST ACTIVITY")
	for _, t := range tenants {
		fmt.Fprintf(&b, "%-24s %-10s %-8d %s\n",
			t.UserID, t.Status, t.PendingRequests, humanSince(t.LastActivityAt))
	}
	return b.String()
}

// StatsTable renders the /stats response as key: value lines.
func StatsTable(s *api.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cached instances:      %d\n", s.Manager.ActiveInstances)
	fmt.Fprintf(&b, "known users:           %d\n", s.Manager.TotalUsers)
	fmt.Fprintf(&b, "tokens indexed:        %d\n", s.Manager.TokenCount)
	fmt.Fprintf(&b, "cache hits / misses:   %d / %d\n", s.Manager.CacheHits, s.Manager.CacheMisses)
	fmt.Fprintf(&b, "pending requests:      %d\n", s.Manager.PendingRequests)
	fmt.Fprintf(&b, "sync failures:         %d\n", s.Manager.SyncFailures)
	fmt.Fprintf(&b, "last sync:             %s\n", humanSince(s.Manager.LastSyncAt))
	if len(s.Manager.Evictions) > 0 {
		fmt.Fprintf(&b, "evictions:            ")
		for reason, n := range s.Manager.Evictions {
			fmt.Fprintf(&b, " %s=%d", reason, n)
		}
		fmt.Fprintln(&b)
	}
	if s.Sync.LastSyncTimestamp != "" {
		fmt.Fprintf(&b, "sync cursor:           %s\n", s.Sync.LastSyncTimestamp)
	}
	if s.Sync.ConsecutiveFailures > 0 {
		fmt.Fprintf(&b, "sync backoff:          %s (after %d failures)\n",
			s.Sync.NextRetryDelay, s.Sync.ConsecutiveFailures)
	}
	return b.String()
}

func humanSince(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t).Round(time.Second)
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%s ago", d)
}
