package store

import (
	"context"
	"errors"
	"time"

	"hotline/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStaleJob          = errors.New("repair job was changed by another request")
)

type Repository interface {
	CreateRepairJob(ctx context.Context, job domain.RepairJob) (*domain.RepairJob, error)
	GetRepairJob(ctx context.Context, id string) (*domain.RepairJob, error)
	ListRepairJobs(ctx context.Context, filter domain.RepairFilter) ([]domain.RepairJob, error)
	// UpdateRepairJob replaces the stored job, parts included, as long as it
	// is still in fromStatus, otherwise ErrInvalidTransition. job.UpdatedAt
	// must match the stored value, otherwise ErrStaleJob.
	UpdateRepairJob(ctx context.Context, job domain.RepairJob, fromStatus string) (*domain.RepairJob, error)
	// CompleteRepairJob is UpdateRepairJob plus stock consumption for every
	// part line that references a catalog part, all or nothing.
	CompleteRepairJob(ctx context.Context, job domain.RepairJob, fromStatus string) (*domain.RepairJob, error)
	ListParts(ctx context.Context) ([]domain.Part, error)
	GetPartsByIDs(ctx context.Context, ids []string) (map[string]domain.Part, error)
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// NextUpdatedAt returns the version stamp for a write following prev. It has
// microsecond precision to survive a TIMESTAMPTZ round trip and always moves
// forward, even when the clock has not.
func NextUpdatedAt(prev time.Time) time.Time {
	next := time.Now().UTC().Truncate(time.Microsecond)
	if !next.After(prev) {
		next = prev.Add(time.Microsecond).UTC()
	}
	return next
}
