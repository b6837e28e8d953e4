package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"hotline/backend/internal/domain"
)

type mapCache struct {
	values  map[string]domain.TechnicianDashboard
	deleted []string
}

func newMapCache() *mapCache {
	return &mapCache{values: map[string]domain.TechnicianDashboard{}}
}

func (c *mapCache) Get(_ context.Context, key string) (*domain.TechnicianDashboard, bool, error) {
	v, ok := c.values[key]
	if !ok {
		return nil, false, nil
	}
	return &v, true, nil
}

func (c *mapCache) Set(_ context.Context, key string, value *domain.TechnicianDashboard, _ time.Duration) error {
	c.values[key] = *value
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(c.values, key)
		c.deleted = append(c.deleted, key)
	}
	return nil
}

func timeAt(t time.Time) *time.Time { return &t }

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 5, 12, 15, 0, 0, 0, time.UTC)
	jobs := []domain.RepairJob{
		{
			ID: "a", Status: domain.RepairStatusPending, CreatedAt: now.Add(-3 * time.Hour),
			LaborCost: decimal.NewFromInt(50), AdvancePayment: decimal.NewFromInt(10),
		},
		{
			ID: "b", Status: domain.RepairStatusInProgress, CreatedAt: now.Add(-5 * time.Hour),
			EstimatedCompletion: timeAt(now.Add(-time.Hour)),
			LaborCost:           decimal.NewFromInt(30),
		},
		{
			ID: "c", Status: domain.RepairStatusCompleted, CreatedAt: now.Add(-24 * time.Hour),
			CompletedAt:    timeAt(now.Add(-2 * time.Hour)),
			LaborCost:      decimal.NewFromInt(100),
			AdvancePayment: decimal.NewFromInt(20),
			PartsUsed: []domain.PartLineItem{
				{ProductName: "Screen", Quantity: 2, UnitPrice: decimal.NewFromInt(15)},
				{ProductName: "Battery", Quantity: 1, UnitPrice: decimal.NewFromInt(30)},
			},
		},
		{
			ID: "d", Status: domain.RepairStatusDelivered, CreatedAt: now.Add(-48 * time.Hour),
			CompletedAt: timeAt(now.Add(-30 * time.Hour)),
			LaborCost:   decimal.NewFromInt(70),
		},
	}

	got := Summarize("tech", jobs, now)

	if len(got.StatusCounts) != len(domain.RepairStatuses) {
		t.Fatalf("expected a count for every status, got %+v", got.StatusCounts)
	}
	if got.StatusCounts[0].Status != domain.RepairStatusPending || got.StatusCounts[0].Count != 1 {
		t.Fatalf("unexpected pending count %+v", got.StatusCounts[0])
	}
	if len(got.ActiveJobs) != 2 || got.ActiveJobs[0].ID != "b" {
		t.Fatalf("expected overdue job b first, got %+v", got.ActiveJobs)
	}
	if got.OverdueJobs != 1 {
		t.Fatalf("expected 1 overdue job, got %d", got.OverdueJobs)
	}
	// pending 40 + in progress 30 + completed 140
	if !got.OutstandingBalance.Equal(decimal.NewFromInt(210)) {
		t.Fatalf("expected outstanding 210, got %s", got.OutstandingBalance)
	}
	if got.CompletedToday != 1 {
		t.Fatalf("expected 1 completed today, got %d", got.CompletedToday)
	}
	if !got.LaborRevenueToday.Equal(decimal.NewFromInt(100)) || !got.PartsRevenueToday.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("unexpected revenue labor=%s parts=%s", got.LaborRevenueToday, got.PartsRevenueToday)
	}
	if !got.ActiveJobs[1].Costs.BalanceDue.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected costs filled on active jobs, got %+v", got.ActiveJobs[1].Costs)
	}
}

func TestBuildUsesCacheUntilInvalidated(t *testing.T) {
	c := newMapCache()
	engine := NewEngine(c, time.Minute)

	loads := 0
	load := func(context.Context) ([]domain.RepairJob, error) {
		loads++
		return []domain.RepairJob{{ID: "a", Status: domain.RepairStatusPending}}, nil
	}

	ctx := context.Background()
	first, err := engine.Build(ctx, "main-store", "tech", load)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if first.Cached {
		t.Fatalf("expected first build to be fresh")
	}

	second, err := engine.Build(ctx, "main-store", "tech", load)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if !second.Cached || loads != 1 {
		t.Fatalf("expected cached dashboard without reload, cached=%v loads=%d", second.Cached, loads)
	}

	if err := engine.Invalidate(ctx, "main-store", "tech"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if len(c.deleted) != 2 {
		t.Fatalf("expected store-wide and technician keys dropped, got %v", c.deleted)
	}

	if _, err := engine.Build(ctx, "main-store", "tech", load); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if loads != 2 {
		t.Fatalf("expected reload after invalidation, got %d loads", loads)
	}
}

func TestBuildPropagatesLoadError(t *testing.T) {
	engine := NewEngine(nil, 0)
	boom := errors.New("boom")
	_, err := engine.Build(context.Background(), "main-store", "", func(context.Context) ([]domain.RepairJob, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestCacheKeySeparatesScopes(t *testing.T) {
	if CacheKey("main-store", "") == CacheKey("main-store", "tech") {
		t.Fatalf("expected store-wide and technician keys to differ")
	}
	if CacheKey("main-store", "tech") == CacheKey("branch-2", "tech") {
		t.Fatalf("expected store ids to separate keys")
	}
}
