// Package dashboard summarizes repair jobs for the technician workbench.
package dashboard

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"hotline/backend/internal/cache"
	"hotline/backend/internal/costing"
	"hotline/backend/internal/domain"
)

// Loader fetches the jobs a dashboard is built from. It is only called on a
// cache miss.
type Loader func(ctx context.Context) ([]domain.RepairJob, error)

type Engine struct {
	cache    cache.DashboardCache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewEngine(cacheStore cache.DashboardCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopDashboardCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}

	return &Engine{
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Build returns the dashboard of technician within storeID. An empty
// technician means every job of the store.
func (e *Engine) Build(ctx context.Context, storeID string, technician string, load Loader) (domain.TechnicianDashboard, error) {
	cacheKey := CacheKey(storeID, technician)
	if cached, ok, err := e.cache.Get(ctx, cacheKey); err == nil && ok {
		cached.Cached = true
		return *cached, nil
	}

	jobs, err := load(ctx)
	if err != nil {
		return domain.TechnicianDashboard{}, err
	}

	dashboard := Summarize(technician, jobs, e.now())
	_ = e.cache.Set(ctx, cacheKey, &dashboard, e.cacheTTL)
	return dashboard, nil
}

// Invalidate drops the cached dashboards of technician and of the whole store.
func (e *Engine) Invalidate(ctx context.Context, storeID string, technician string) error {
	keys := []string{CacheKey(storeID, "")}
	if technician != "" {
		keys = append(keys, CacheKey(storeID, technician))
	}
	return e.cache.Delete(ctx, keys...)
}

// Summarize is the uncached dashboard computation.
func Summarize(technician string, jobs []domain.RepairJob, now time.Time) domain.TechnicianDashboard {
	now = now.UTC()
	counts := make(map[string]int, len(domain.RepairStatuses))
	active := make([]domain.RepairJob, 0, len(jobs))
	outstanding := decimal.Zero
	laborToday := decimal.Zero
	partsToday := decimal.Zero
	overdue := 0
	completedToday := 0

	for _, job := range jobs {
		counts[job.Status]++
		costs := costing.ForJob(job)
		job.Costs = costs

		switch job.Status {
		case domain.RepairStatusPending, domain.RepairStatusInProgress:
			active = append(active, job)
			if job.EstimatedCompletion != nil && job.EstimatedCompletion.Before(now) {
				overdue++
			}
			outstanding = outstanding.Add(costs.BalanceDue)
		case domain.RepairStatusCompleted:
			outstanding = outstanding.Add(costs.BalanceDue)
		}

		if job.CompletedAt != nil && sameDay(*job.CompletedAt, now) && job.Status != domain.RepairStatusCancelled {
			completedToday++
			laborToday = laborToday.Add(costs.LaborCost)
			partsToday = partsToday.Add(costs.PartsCost)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i].EstimatedCompletion, active[j].EstimatedCompletion
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})

	statusCounts := make([]domain.StatusCount, 0, len(domain.RepairStatuses))
	for _, status := range domain.RepairStatuses {
		statusCounts = append(statusCounts, domain.StatusCount{Status: status, Count: counts[status]})
	}

	return domain.TechnicianDashboard{
		Technician:         technician,
		GeneratedAt:        now.Format(time.RFC3339),
		StatusCounts:       statusCounts,
		ActiveJobs:         active,
		OverdueJobs:        overdue,
		OutstandingBalance: outstanding,
		CompletedToday:     completedToday,
		LaborRevenueToday:  laborToday,
		PartsRevenueToday:  partsToday,
	}
}

func CacheKey(storeID string, technician string) string {
	if technician == "" {
		technician = "*"
	}
	hash := sha1.Sum([]byte(storeID + "|" + technician))
	return "hotline:dashboard:" + hex.EncodeToString(hash[:])
}

func sameDay(a time.Time, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
