package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"hotline/backend/internal/dashboard"
	"hotline/backend/internal/deviceid"
	"hotline/backend/internal/domain"
	"hotline/backend/internal/store"
	"hotline/backend/internal/xid"
)

// ErrForbidden marks operations the acting role may not perform.
var ErrForbidden = errors.New("forbidden")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	DefaultStoreID string
	ScanMaxGap     time.Duration
	ScanMinLength  int
}

type Service struct {
	repo           store.Repository
	dashboards     *dashboard.Engine
	logger         *zap.Logger
	defaultStoreID string
	scanMaxGap     time.Duration
	scanMinLength  int
	now            func() time.Time
}

func New(repo store.Repository, dashboards *dashboard.Engine, logger *zap.Logger, opts Options) *Service {
	if opts.DefaultStoreID == "" {
		opts.DefaultStoreID = "main-store"
	}
	if opts.ScanMaxGap <= 0 {
		opts.ScanMaxGap = deviceid.DefaultScanMaxGap
	}
	if opts.ScanMinLength <= 0 {
		opts.ScanMinLength = deviceid.DefaultScanMinLength
	}
	if dashboards == nil {
		dashboards = dashboard.NewEngine(nil, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:           repo,
		dashboards:     dashboards,
		logger:         logger.Named("service"),
		defaultStoreID: opts.DefaultStoreID,
		scanMaxGap:     opts.ScanMaxGap,
		scanMinLength:  opts.ScanMinLength,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) ListParts(ctx context.Context) ([]domain.Part, error) {
	return s.repo.ListParts(ctx)
}

func (s *Service) ListAuditLogs(ctx context.Context, storeID string, date string, limit int) ([]domain.AuditLog, error) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidInput
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, storeID, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, storeID string, action string, entityType string, entityID string, detail string) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		StoreID:       storeID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity", entityType+"/"+entityID),
			zap.Error(err))
	}
}

func (s *Service) invalidateDashboards(ctx context.Context, storeID string, technicians ...string) {
	seen := make(map[string]struct{}, len(technicians))
	for _, technician := range technicians {
		if _, dup := seen[technician]; dup {
			continue
		}
		seen[technician] = struct{}{}
		if err := s.dashboards.Invalidate(ctx, storeID, technician); err != nil {
			s.logger.Warn("failed to invalidate dashboard cache",
				zap.String("store_id", storeID),
				zap.String("technician", technician),
				zap.Error(err))
		}
	}
}

func requireRole(ctx context.Context, roles ...string) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, fmt.Errorf("%w: actor required", ErrForbidden)
	}
	for _, role := range roles {
		if actor.Role == role {
			return actor, nil
		}
	}
	return actor, fmt.Errorf("%w: %s role required", ErrForbidden, strings.Join(roles, " or "))
}
