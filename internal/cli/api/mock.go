package api

import "context"

// MockClient for testing CLI commands without a running gateway.
type MockClient struct {
	StatsFunc       func(ctx context.Context) (*Stats, error)
	ListTenantsFunc func(ctx context.Context) ([]Tenant, error)
	GetTenantFunc   func(ctx context.Context, userID string) (*Tenant, error)
	EvictTenantFunc func(ctx context.Context, userID string, force bool) (bool, error)
	SyncNowFunc     func(ctx context.Context) (*SyncResult, error)
}

func (m *MockClient) Stats(ctx context.Context) (*Stats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return &Stats{}, nil
}

func (m *MockClient) ListTenants(ctx context.Context) ([]Tenant, error) {
	if m.ListTenantsFunc != nil {
		return m.ListTenantsFunc(ctx)
	}
	return nil, nil
}

func (m *MockClient) GetTenant(ctx context.Context, userID string) (*Tenant, error) {
	if m.GetTenantFunc != nil {
		return m.GetTenantFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockClient) EvictTenant(ctx context.Context, userID string, force bool) (bool, error) {
	if m.EvictTenantFunc != nil {
		return m.EvictTenantFunc(ctx, userID, force)
	}
	return false, nil
}

func (m *MockClient) SyncNow(ctx context.Context) (*SyncResult, error) {
	if m.SyncNowFunc != nil {
		return m.SyncNowFunc(ctx)
	}
	return &SyncResult{Success: true}, nil
}
