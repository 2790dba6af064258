package output_test

import (
	"testing"
	"time"

	"github.com/openclaw/gateway/internal/cli/api"
	"github.com/openclaw/gateway/internal/cli/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatJSON(t *testing.T) {
	s, err := output.FormatJSON(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", s)
}

func TestTenantTable(t *testing.T) {
	table := output.TenantTable([]api.Tenant{
		{UserID: "u-1", Status: "active", PendingRequests: 2, LastActivityAt: time.Now()},
		{UserID: "u-2", Status: "suspended"},
	})
	assert.Contains(t, table, "USER")
	assert.Contains(t, table, "u-1")
	assert.Contains(t, table, "active")
	assert.Contains(t, table, "never") // zero LastActivityAt
}

func TestStatsTable(t *testing.T) {
	s := &api.Stats{}
	s.Manager.ActiveInstances = 3
	s.Manager.SyncFailures = 2
	s.Sync.ConsecutiveFailures = 2
	s.Sync.NextRetryDelay = 4 * time.Second

	table := output.StatsTable(s)
	assert.Contains(t, table, "cached instances:      3")
	assert.Contains(t, table, "sync backoff:          4s (after 2 failures)")
}

func TestStyler_NoColor(t *testing.T) {
	st := output.NewStyler(true)
	assert.Equal(t, "✓ done", st.Success("done"))
	assert.Equal(t, "✗ bad", st.Error("bad"))
}

func TestStyler_Color(t *testing.T) {
	st := output.NewStyler(false)
	assert.Contains(t, st.Success("done"), "\033[0;32m")
}
