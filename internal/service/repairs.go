package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"hotline/backend/internal/costing"
	"hotline/backend/internal/deviceid"
	"hotline/backend/internal/domain"
	"hotline/backend/internal/metrics"
	"hotline/backend/internal/store"
)

var paymentMethods = []string{"cash", "card", "transfer", "ewallet"}

func (s *Service) CreateRepairJob(ctx context.Context, req domain.RepairCreateRequest) (domain.RepairJob, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin, domain.RoleCashier)
	if err != nil {
		return domain.RepairJob{}, err
	}

	ve := &ValidationErrors{}
	requireField(ve, "customer_name", req.CustomerName)
	requireField(ve, "problem_description", req.ProblemDescription)
	requireField(ve, "device_identifier", req.DeviceIdentifier)
	validateMaxLength(ve, "customer_name", strings.TrimSpace(req.CustomerName), 120)
	validateMaxLength(ve, "problem_description", strings.TrimSpace(req.ProblemDescription), 2000)
	ve.AddField(costing.ValidateAmount("labor_cost", req.LaborCost))
	ve.AddField(costing.ValidateAmount("advance_payment", req.AdvancePayment))

	var id deviceid.Identifier
	kind, ok := deviceid.ParseKind(req.IdentifierType)
	if !ok {
		ve.Add("identifier_type", "must be one of: imei, serial")
	} else if strings.TrimSpace(req.DeviceIdentifier) != "" {
		id = deviceid.Check(kind, req.DeviceIdentifier)
		metrics.IncIdentifierCheck(string(id.Kind), id.Valid)
		if !id.Valid {
			ve.Add("device_identifier", identifierMessage(id.Kind))
		}
	}

	estimated, err := parseEstimatedCompletion(req.EstimatedCompletion)
	if err != nil {
		ve.Add("estimated_completion", "must be a date (YYYY-MM-DD) or RFC3339 timestamp")
	}

	technician := strings.ToLower(strings.TrimSpace(req.TechnicianUsername))
	if technician != "" {
		if err := s.ensureTechnician(ctx, technician, ve); err != nil {
			return domain.RepairJob{}, err
		}
	}
	if err := ve.Err(); err != nil {
		return domain.RepairJob{}, err
	}

	storeID := strings.TrimSpace(req.StoreID)
	if storeID == "" {
		storeID = s.defaultStoreID
	}

	now := s.now()
	job := domain.RepairJob{
		StoreID:             storeID,
		CustomerName:        strings.TrimSpace(req.CustomerName),
		CustomerPhone:       strings.TrimSpace(req.CustomerPhone),
		DeviceBrand:         strings.TrimSpace(req.DeviceBrand),
		DeviceModel:         strings.TrimSpace(req.DeviceModel),
		IdentifierType:      string(id.Kind),
		DeviceIdentifier:    id.Value,
		ProblemDescription:  strings.TrimSpace(req.ProblemDescription),
		Notes:               strings.TrimSpace(req.Notes),
		TechnicianUsername:  technician,
		Status:              domain.RepairStatusPending,
		LaborCost:           req.LaborCost,
		AdvancePayment:      req.AdvancePayment,
		FinalPayment:        decimal.Zero,
		PartsUsed:           []domain.PartLineItem{},
		EstimatedCompletion: estimated,
		CreatedBy:           actor.Username,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	created, err := s.repo.CreateRepairJob(ctx, job)
	if err != nil {
		return domain.RepairJob{}, err
	}

	metrics.IncRepairTransition(created.Status)
	s.logger.Info("repair job created", logFields(*created)...)
	s.logAudit(ctx, created.StoreID, "repair_create", "repair_job", created.ID,
		fmt.Sprintf("job=%s,%s=%s", created.JobNumber, created.IdentifierType, created.DeviceIdentifier))
	s.invalidateDashboards(ctx, created.StoreID, created.TechnicianUsername)

	return withCosts(*created), nil
}

func (s *Service) GetRepairJob(ctx context.Context, id string) (domain.RepairJob, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.RepairJob{}, store.ErrInvalidInput
	}
	job, err := s.repo.GetRepairJob(ctx, id)
	if err != nil {
		return domain.RepairJob{}, err
	}
	return withCosts(*job), nil
}

func (s *Service) ListRepairJobs(ctx context.Context, filter domain.RepairFilter) ([]domain.RepairJob, error) {
	if filter.Status != "" && !slices.Contains(domain.RepairStatuses, filter.Status) {
		return nil, store.ErrInvalidInput
	}
	if filter.StoreID == "" {
		filter.StoreID = s.defaultStoreID
	}
	filter.Technician = strings.ToLower(strings.TrimSpace(filter.Technician))
	if filter.Identifier != "" {
		filter.Identifier = deviceid.Classify(filter.Identifier).Value
	}
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 100
	}

	jobs, err := s.repo.ListRepairJobs(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		jobs[i] = withCosts(jobs[i])
	}
	return jobs, nil
}

func (s *Service) UpdateRepairJob(ctx context.Context, id string, req domain.RepairUpdateRequest) (domain.RepairJob, error) {
	existing, err := s.GetRepairJob(ctx, id)
	if err != nil {
		return domain.RepairJob{}, err
	}
	if !domain.IsEditable(existing.Status) {
		return domain.RepairJob{}, store.ErrInvalidTransition
	}

	updated := existing
	ve := &ValidationErrors{}
	if req.Diagnosis != nil {
		updated.Diagnosis = strings.TrimSpace(*req.Diagnosis)
	}
	if req.Notes != nil {
		updated.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.LaborCost != nil {
		ve.AddField(costing.ValidateAmount("labor_cost", *req.LaborCost))
		updated.LaborCost = *req.LaborCost
	}
	if req.AdvancePayment != nil {
		ve.AddField(costing.ValidateAmount("advance_payment", *req.AdvancePayment))
		updated.AdvancePayment = *req.AdvancePayment
	}
	if req.EstimatedCompletion != nil {
		estimated, err := parseEstimatedCompletion(*req.EstimatedCompletion)
		if err != nil {
			ve.Add("estimated_completion", "must be a date (YYYY-MM-DD) or RFC3339 timestamp")
		}
		updated.EstimatedCompletion = estimated
	}
	if req.TechnicianUsername != nil {
		technician := strings.ToLower(strings.TrimSpace(*req.TechnicianUsername))
		if technician != existing.TechnicianUsername {
			if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
				return domain.RepairJob{}, err
			}
			if technician != "" {
				if err := s.ensureTechnician(ctx, technician, ve); err != nil {
					return domain.RepairJob{}, err
				}
			}
			updated.TechnicianUsername = technician
		}
	}
	if err := ve.Err(); err != nil {
		return domain.RepairJob{}, err
	}

	saved, err := s.repo.UpdateRepairJob(ctx, updated, existing.Status)
	if err != nil {
		return domain.RepairJob{}, err
	}

	s.logAudit(ctx, saved.StoreID, "repair_update", "repair_job", saved.ID, describeUpdate(req))
	s.invalidateDashboards(ctx, saved.StoreID, existing.TechnicianUsername, saved.TechnicianUsername)
	return withCosts(*saved), nil
}

// SetRepairParts replaces the part lines of an open job.
func (s *Service) SetRepairParts(ctx context.Context, id string, req domain.RepairPartsRequest) (domain.RepairJob, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin, domain.RoleTechnician)
	if err != nil {
		return domain.RepairJob{}, err
	}

	existing, err := s.GetRepairJob(ctx, id)
	if err != nil {
		return domain.RepairJob{}, err
	}
	if !domain.IsEditable(existing.Status) {
		return domain.RepairJob{}, store.ErrInvalidTransition
	}

	updated := existing
	if err := claimJob(actor, existing, &updated); err != nil {
		return domain.RepairJob{}, err
	}

	ve := &ValidationErrors{}
	parts, err := s.resolveParts(ctx, req.Parts, ve)
	if err != nil {
		return domain.RepairJob{}, err
	}
	if err := ve.Err(); err != nil {
		return domain.RepairJob{}, err
	}
	updated.PartsUsed = parts
	saved, err := s.repo.UpdateRepairJob(ctx, updated, existing.Status)
	if err != nil {
		return domain.RepairJob{}, err
	}

	result := withCosts(*saved)
	s.logAudit(ctx, saved.StoreID, "repair_parts", "repair_job", saved.ID,
		fmt.Sprintf("lines=%d,parts_cost=%s", len(parts), result.Costs.PartsCost.StringFixed(2)))
	s.invalidateDashboards(ctx, saved.StoreID, existing.TechnicianUsername, saved.TechnicianUsername)
	return result, nil
}

// StartRepair moves a pending job to in_progress. A technician starting an
// unassigned job takes it over.
func (s *Service) StartRepair(ctx context.Context, id string) (domain.RepairJob, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin, domain.RoleTechnician)
	if err != nil {
		return domain.RepairJob{}, err
	}

	existing, err := s.GetRepairJob(ctx, id)
	if err != nil {
		return domain.RepairJob{}, err
	}
	if existing.Status != domain.RepairStatusPending {
		return domain.RepairJob{}, store.ErrInvalidTransition
	}

	updated := existing
	if err := claimJob(actor, existing, &updated); err != nil {
		return domain.RepairJob{}, err
	}
	now := s.now()
	updated.Status = domain.RepairStatusInProgress
	updated.StartedAt = &now

	saved, err := s.repo.UpdateRepairJob(ctx, updated, domain.RepairStatusPending)
	if err != nil {
		return domain.RepairJob{}, err
	}

	metrics.IncRepairTransition(saved.Status)
	s.logger.Info("repair job status changed", logFields(*saved)...)
	s.logAudit(ctx, saved.StoreID, "repair_start", "repair_job", saved.ID, "technician="+saved.TechnicianUsername)
	s.invalidateDashboards(ctx, saved.StoreID, existing.TechnicianUsername, saved.TechnicianUsername)
	return withCosts(*saved), nil
}

// CompleteRepair records the final diagnosis and parts, and consumes catalog
// stock in the same store operation.
func (s *Service) CompleteRepair(ctx context.Context, id string, req domain.RepairCompleteRequest) (domain.RepairJob, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin, domain.RoleTechnician)
	if err != nil {
		return domain.RepairJob{}, err
	}

	existing, err := s.GetRepairJob(ctx, id)
	if err != nil {
		return domain.RepairJob{}, err
	}
	if !domain.IsEditable(existing.Status) {
		return domain.RepairJob{}, store.ErrInvalidTransition
	}

	updated := existing
	if err := claimJob(actor, existing, &updated); err != nil {
		return domain.RepairJob{}, err
	}

	ve := &ValidationErrors{}
	requireField(ve, "diagnosis", req.Diagnosis)
	if req.LaborCost != nil {
		ve.AddField(costing.ValidateAmount("labor_cost", *req.LaborCost))
		updated.LaborCost = *req.LaborCost
	}
	if req.PartsUsed != nil {
		parts, err := s.resolveParts(ctx, req.PartsUsed, ve)
		if err != nil {
			return domain.RepairJob{}, err
		}
		updated.PartsUsed = parts
	}
	if err := ve.Err(); err != nil {
		return domain.RepairJob{}, err
	}

	now := s.now()
	updated.Diagnosis = strings.TrimSpace(req.Diagnosis)
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		updated.Notes = notes
	}
	updated.Status = domain.RepairStatusCompleted
	updated.CompletedAt = &now
	if updated.StartedAt == nil {
		updated.StartedAt = &now
	}

	saved, err := s.repo.CompleteRepairJob(ctx, updated, existing.Status)
	if err != nil {
		return domain.RepairJob{}, err
	}

	for _, line := range saved.PartsUsed {
		metrics.AddPartsConsumed(line.ProductID, line.Quantity)
	}
	metrics.IncRepairTransition(saved.Status)
	s.logger.Info("repair job status changed", logFields(*saved)...)

	result := withCosts(*saved)
	s.logAudit(ctx, saved.StoreID, "repair_complete", "repair_job", saved.ID,
		fmt.Sprintf("total=%s,balance_due=%s", result.Costs.TotalCost.StringFixed(2), result.Costs.BalanceDue.StringFixed(2)))
	s.invalidateDashboards(ctx, saved.StoreID, existing.TechnicianUsername, saved.TechnicianUsername)
	return result, nil
}

// DeliverRepair hands a completed device back. The payment has to cover the
// balance due; an over-advanced job is delivered with no payment.
func (s *Service) DeliverRepair(ctx context.Context, id string, req domain.RepairDeliverRequest) (domain.RepairJob, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin, domain.RoleCashier); err != nil {
		return domain.RepairJob{}, err
	}

	existing, err := s.GetRepairJob(ctx, id)
	if err != nil {
		return domain.RepairJob{}, err
	}
	if existing.Status != domain.RepairStatusCompleted {
		return domain.RepairJob{}, store.ErrInvalidTransition
	}

	ve := &ValidationErrors{}
	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	ve.AddField(costing.ValidateAmount("payment_amount", req.PaymentAmount))
	validateEnum(ve, "payment_method", method, paymentMethods)

	balance := existing.Costs.BalanceDue
	if balance.IsPositive() {
		if req.PaymentAmount.LessThan(balance) {
			ve.Add("payment_amount", "must cover the balance due of "+balance.StringFixed(2))
		}
		if method == "" {
			ve.Add("payment_method", "is required when a balance is due")
		}
	}
	if err := ve.Err(); err != nil {
		return domain.RepairJob{}, err
	}

	now := s.now()
	updated := existing
	updated.Status = domain.RepairStatusDelivered
	updated.FinalPayment = req.PaymentAmount
	updated.PaymentMethod = method
	updated.DeliveredAt = &now

	saved, err := s.repo.UpdateRepairJob(ctx, updated, domain.RepairStatusCompleted)
	if err != nil {
		return domain.RepairJob{}, err
	}

	metrics.IncRepairTransition(saved.Status)
	s.logger.Info("repair job status changed", logFields(*saved)...)
	s.logAudit(ctx, saved.StoreID, "repair_deliver", "repair_job", saved.ID,
		fmt.Sprintf("payment=%s,method=%s", saved.FinalPayment.StringFixed(2), defaultString(method, "none")))
	s.invalidateDashboards(ctx, saved.StoreID, saved.TechnicianUsername)
	return withCosts(*saved), nil
}

// CancelRepair closes an open job without work. Manager PIN verification
// happens before this is called.
func (s *Service) CancelRepair(ctx context.Context, id string, reason string) (domain.RepairJob, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.RepairJob{}, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		ve := &ValidationErrors{}
		ve.Add("reason", "is required")
		return domain.RepairJob{}, ve
	}

	existing, err := s.GetRepairJob(ctx, id)
	if err != nil {
		return domain.RepairJob{}, err
	}
	if !domain.IsEditable(existing.Status) {
		return domain.RepairJob{}, store.ErrInvalidTransition
	}

	now := s.now()
	updated := existing
	updated.Status = domain.RepairStatusCancelled
	updated.CancelReason = reason
	updated.CancelledAt = &now

	saved, err := s.repo.UpdateRepairJob(ctx, updated, existing.Status)
	if err != nil {
		return domain.RepairJob{}, err
	}

	metrics.IncRepairTransition(saved.Status)
	s.logger.Info("repair job status changed", logFields(*saved)...)
	s.logAudit(ctx, saved.StoreID, "repair_cancel", "repair_job", saved.ID, reason)
	s.invalidateDashboards(ctx, saved.StoreID, saved.TechnicianUsername)
	return withCosts(*saved), nil
}

// TechnicianDashboard summarizes jobs for one technician. Technicians always
// see their own board; admins may pick any technician or the whole store.
func (s *Service) TechnicianDashboard(ctx context.Context, storeID string, technician string) (domain.TechnicianDashboard, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin, domain.RoleTechnician)
	if err != nil {
		return domain.TechnicianDashboard{}, err
	}
	if storeID == "" {
		storeID = s.defaultStoreID
	}
	technician = strings.ToLower(strings.TrimSpace(technician))
	if actor.Role == domain.RoleTechnician {
		technician = actor.Username
	}

	board, err := s.dashboards.Build(ctx, storeID, technician, func(ctx context.Context) ([]domain.RepairJob, error) {
		return s.repo.ListRepairJobs(ctx, domain.RepairFilter{StoreID: storeID, Technician: technician, Limit: 1000})
	})
	if err != nil {
		return domain.TechnicianDashboard{}, err
	}
	metrics.IncDashboardBuild(board.Cached)
	return board, nil
}

// claimJob keeps technicians on their own jobs. An unassigned job is taken
// over by the technician working on it; admins act on any job.
func claimJob(actor domain.Actor, existing domain.RepairJob, updated *domain.RepairJob) error {
	if actor.Role != domain.RoleTechnician {
		return nil
	}
	switch existing.TechnicianUsername {
	case "":
		updated.TechnicianUsername = actor.Username
	case actor.Username:
	default:
		return fmt.Errorf("%w: job is assigned to %s", ErrForbidden, existing.TechnicianUsername)
	}
	return nil
}

// resolveParts validates submitted part lines and fills catalog names and
// prices where the client left them blank. A zero price on a catalog line
// counts as blank.
func (s *Service) resolveParts(ctx context.Context, parts []domain.PartLineItem, ve *ValidationErrors) ([]domain.PartLineItem, error) {
	resolved := make([]domain.PartLineItem, len(parts))
	ids := make([]string, 0, len(parts))
	for i, part := range parts {
		part.ProductID = strings.ToUpper(strings.TrimSpace(part.ProductID))
		part.ProductName = strings.TrimSpace(part.ProductName)
		resolved[i] = part
		if part.ProductID != "" {
			ids = append(ids, part.ProductID)
		}
	}

	catalog, err := s.repo.GetPartsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i, part := range resolved {
		if part.ProductID == "" {
			continue
		}
		entry, ok := catalog[part.ProductID]
		if !ok {
			ve.Add(fmt.Sprintf("parts[%d].product_id", i), "unknown part")
			continue
		}
		if part.ProductName == "" {
			resolved[i].ProductName = entry.Name
		}
		if part.UnitPrice.IsZero() {
			resolved[i].UnitPrice = entry.UnitPrice
		}
	}

	ve.AddField(costing.ValidateParts(resolved))
	return resolved, nil
}

func (s *Service) ensureTechnician(ctx context.Context, username string, ve *ValidationErrors) error {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, user := range users {
		if user.Username == username && user.Active && user.Role == domain.RoleTechnician {
			return nil
		}
	}
	ve.Add("technician_username", "unknown technician")
	return nil
}

func withCosts(job domain.RepairJob) domain.RepairJob {
	job.Costs = costing.ForJob(job)
	return job
}

func parseEstimatedCompletion(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		utc := t.UTC()
		return &utc, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func describeUpdate(req domain.RepairUpdateRequest) string {
	fields := make([]string, 0, 6)
	if req.Diagnosis != nil {
		fields = append(fields, "diagnosis")
	}
	if req.Notes != nil {
		fields = append(fields, "notes")
	}
	if req.LaborCost != nil {
		fields = append(fields, "labor_cost="+req.LaborCost.StringFixed(2))
	}
	if req.AdvancePayment != nil {
		fields = append(fields, "advance_payment="+req.AdvancePayment.StringFixed(2))
	}
	if req.EstimatedCompletion != nil {
		fields = append(fields, "estimated_completion")
	}
	if req.TechnicianUsername != nil {
		fields = append(fields, "technician="+*req.TechnicianUsername)
	}
	return strings.Join(fields, ",")
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func logFields(job domain.RepairJob) []zap.Field {
	return []zap.Field{
		zap.String("repair_id", job.ID),
		zap.String("job_number", job.JobNumber),
		zap.String("status", job.Status),
	}
}
