package cache

import (
	"context"
	"time"

	"hotline/backend/internal/domain"
)

type DashboardCache interface {
	Get(ctx context.Context, key string) (*domain.TechnicianDashboard, bool, error)
	Set(ctx context.Context, key string, value *domain.TechnicianDashboard, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type NoopDashboardCache struct{}

func (NoopDashboardCache) Get(_ context.Context, _ string) (*domain.TechnicianDashboard, bool, error) {
	return nil, false, nil
}

func (NoopDashboardCache) Set(_ context.Context, _ string, _ *domain.TechnicianDashboard, _ time.Duration) error {
	return nil
}

func (NoopDashboardCache) Delete(_ context.Context, _ ...string) error {
	return nil
}
