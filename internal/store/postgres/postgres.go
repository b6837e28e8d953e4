package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"hotline/backend/internal/domain"
	"hotline/backend/internal/store"
	"hotline/backend/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

const repairColumns = `
	id, job_number, store_id, customer_name, customer_phone, device_brand, device_model,
	identifier_type, device_identifier, problem_description, diagnosis, notes,
	technician_username, status, labor_cost, advance_payment, final_payment, payment_method,
	cancel_reason, estimated_completion, created_by, created_at, updated_at,
	started_at, completed_at, delivered_at, cancelled_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRepairJob(row rowScanner) (domain.RepairJob, error) {
	var job domain.RepairJob
	var estimated, started, completed, delivered, cancelled sql.NullTime
	err := row.Scan(
		&job.ID, &job.JobNumber, &job.StoreID, &job.CustomerName, &job.CustomerPhone, &job.DeviceBrand, &job.DeviceModel,
		&job.IdentifierType, &job.DeviceIdentifier, &job.ProblemDescription, &job.Diagnosis, &job.Notes,
		&job.TechnicianUsername, &job.Status, &job.LaborCost, &job.AdvancePayment, &job.FinalPayment, &job.PaymentMethod,
		&job.CancelReason, &estimated, &job.CreatedBy, &job.CreatedAt, &job.UpdatedAt,
		&started, &completed, &delivered, &cancelled,
	)
	if err != nil {
		return domain.RepairJob{}, err
	}
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	job.EstimatedCompletion = timePtr(estimated)
	job.StartedAt = timePtr(started)
	job.CompletedAt = timePtr(completed)
	job.DeliveredAt = timePtr(delivered)
	job.CancelledAt = timePtr(cancelled)
	job.PartsUsed = []domain.PartLineItem{}
	return job, nil
}

func (s *Store) CreateRepairJob(ctx context.Context, job domain.RepairJob) (*domain.RepairJob, error) {
	if job.CustomerName == "" || job.DeviceIdentifier == "" || job.ProblemDescription == "" {
		return nil, store.ErrInvalidInput
	}
	if job.ID == "" {
		job.ID = xid.New("rep")
	}
	if job.Status == "" {
		job.Status = domain.RepairStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.CreatedAt = job.CreatedAt.UTC().Truncate(time.Microsecond)
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}
	job.UpdatedAt = job.UpdatedAt.UTC().Truncate(time.Microsecond)
	if job.JobNumber == "" {
		job.JobNumber = xid.JobNumber(job.CreatedAt)
	}

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO repair_jobs (`+repairColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)
	`,
		job.ID, job.JobNumber, job.StoreID, job.CustomerName, job.CustomerPhone, job.DeviceBrand, job.DeviceModel,
		job.IdentifierType, job.DeviceIdentifier, job.ProblemDescription, job.Diagnosis, job.Notes,
		job.TechnicianUsername, job.Status, job.LaborCost, job.AdvancePayment, job.FinalPayment, job.PaymentMethod,
		job.CancelReason, nullTime(job.EstimatedCompletion), job.CreatedBy, job.CreatedAt, job.UpdatedAt,
		nullTime(job.StartedAt), nullTime(job.CompletedAt), nullTime(job.DeliveredAt), nullTime(job.CancelledAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	if err := insertRepairParts(ctx, pgTx, job.ID, job.PartsUsed); err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	created := job
	if created.PartsUsed == nil {
		created.PartsUsed = []domain.PartLineItem{}
	}
	return &created, nil
}

func (s *Store) GetRepairJob(ctx context.Context, id string) (*domain.RepairJob, error) {
	job, err := scanRepairJob(s.db.QueryRowContext(ctx, `
		SELECT `+repairColumns+`
		FROM repair_jobs
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	jobs := []domain.RepairJob{job}
	if err := s.attachParts(ctx, jobs); err != nil {
		return nil, err
	}
	return &jobs[0], nil
}

func (s *Store) ListRepairJobs(ctx context.Context, filter domain.RepairFilter) ([]domain.RepairJob, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+repairColumns+`
		FROM repair_jobs
		WHERE ($1::text = '' OR store_id = $1)
			AND ($2::text = '' OR status = $2)
			AND ($3::text = '' OR technician_username = $3)
			AND ($4::text = '' OR device_identifier = $4)
		ORDER BY created_at DESC, id DESC
		LIMIT $5
	`, filter.StoreID, filter.Status, filter.Technician, filter.Identifier, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]domain.RepairJob, 0, limit)
	for rows.Next() {
		job, err := scanRepairJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachParts(ctx, jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *Store) UpdateRepairJob(ctx context.Context, job domain.RepairJob, fromStatus string) (*domain.RepairJob, error) {
	return s.saveRepairJob(ctx, job, fromStatus, false)
}

func (s *Store) CompleteRepairJob(ctx context.Context, job domain.RepairJob, fromStatus string) (*domain.RepairJob, error) {
	return s.saveRepairJob(ctx, job, fromStatus, true)
}

func (s *Store) saveRepairJob(ctx context.Context, job domain.RepairJob, fromStatus string, consumeStock bool) (*domain.RepairJob, error) {
	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var (
		current   string
		updatedAt time.Time
	)
	err = pgTx.QueryRowContext(ctx, `
		SELECT status, updated_at
		FROM repair_jobs
		WHERE id = $1
		FOR UPDATE
	`, job.ID).Scan(&current, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if current != fromStatus {
		return nil, store.ErrInvalidTransition
	}
	if !updatedAt.Equal(job.UpdatedAt) {
		return nil, store.ErrStaleJob
	}

	if consumeStock {
		if err := consumeStockTx(ctx, pgTx, job.PartsUsed); err != nil {
			return nil, err
		}
	}

	job.UpdatedAt = store.NextUpdatedAt(updatedAt)
	_, err = pgTx.ExecContext(ctx, `
		UPDATE repair_jobs
		SET diagnosis = $2, notes = $3, technician_username = $4, status = $5,
			labor_cost = $6, advance_payment = $7, final_payment = $8, payment_method = $9,
			cancel_reason = $10, estimated_completion = $11, updated_at = $12,
			started_at = $13, completed_at = $14, delivered_at = $15, cancelled_at = $16
		WHERE id = $1
	`,
		job.ID, job.Diagnosis, job.Notes, job.TechnicianUsername, job.Status,
		job.LaborCost, job.AdvancePayment, job.FinalPayment, job.PaymentMethod,
		job.CancelReason, nullTime(job.EstimatedCompletion), job.UpdatedAt,
		nullTime(job.StartedAt), nullTime(job.CompletedAt), nullTime(job.DeliveredAt), nullTime(job.CancelledAt),
	)
	if err != nil {
		return nil, err
	}

	if _, err := pgTx.ExecContext(ctx, `DELETE FROM repair_parts WHERE repair_id = $1`, job.ID); err != nil {
		return nil, err
	}
	if err := insertRepairParts(ctx, pgTx, job.ID, job.PartsUsed); err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	saved := job
	if saved.PartsUsed == nil {
		saved.PartsUsed = []domain.PartLineItem{}
	}
	return &saved, nil
}

// consumeStockTx decrements catalog stock in product id order so concurrent
// completions lock rows in the same sequence.
func consumeStockTx(ctx context.Context, pgTx *sql.Tx, lines []domain.PartLineItem) error {
	consumed := make(map[string]int, len(lines))
	for _, line := range lines {
		if line.ProductID == "" || line.Quantity < 1 {
			continue
		}
		consumed[line.ProductID] += line.Quantity
	}

	productIDs := make([]string, 0, len(consumed))
	for productID := range consumed {
		productIDs = append(productIDs, productID)
	}
	sort.Strings(productIDs)

	for _, productID := range productIDs {
		qty := consumed[productID]
		res, err := pgTx.ExecContext(ctx, `
			UPDATE parts
			SET stock = stock - $2, updated_at = now()
			WHERE product_id = $1 AND stock >= $2
		`, productID, qty)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected > 0 {
			continue
		}

		var exists bool
		if err := pgTx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM parts WHERE product_id = $1)`, productID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return store.ErrNotFound
		}
		return store.ErrInsufficientStock
	}
	return nil
}

func insertRepairParts(ctx context.Context, pgTx *sql.Tx, repairID string, lines []domain.PartLineItem) error {
	for i, line := range lines {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO repair_parts (repair_id, line_no, product_id, product_name, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, repairID, i+1, line.ProductID, line.ProductName, line.Quantity, line.UnitPrice)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) attachParts(ctx context.Context, jobs []domain.RepairJob) error {
	if len(jobs) == 0 {
		return nil
	}

	index := make(map[string]int, len(jobs))
	ids := make([]string, 0, len(jobs))
	for i, job := range jobs {
		index[job.ID] = i
		ids = append(ids, job.ID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT repair_id, product_id, product_name, quantity, unit_price
		FROM repair_parts
		WHERE repair_id = ANY($1)
		ORDER BY repair_id, line_no
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var repairID string
		var line domain.PartLineItem
		if err := rows.Scan(&repairID, &line.ProductID, &line.ProductName, &line.Quantity, &line.UnitPrice); err != nil {
			return err
		}
		if i, ok := index[repairID]; ok {
			jobs[i].PartsUsed = append(jobs[i].PartsUsed, line)
		}
	}
	return rows.Err()
}

func (s *Store) ListParts(ctx context.Context) ([]domain.Part, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, name, unit_price, stock
		FROM parts
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	parts := make([]domain.Part, 0, 64)
	for rows.Next() {
		var p domain.Part
		if err := rows.Scan(&p.ProductID, &p.Name, &p.UnitPrice, &p.Stock); err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return parts, nil
}

func (s *Store) GetPartsByIDs(ctx context.Context, ids []string) (map[string]domain.Part, error) {
	result := make(map[string]domain.Part, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, name, unit_price, stock
		FROM parts
		WHERE product_id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Part
		if err := rows.Scan(&p.ProductID, &p.Name, &p.UnitPrice, &p.Stock); err != nil {
			return nil, err
		}
		result[p.ProductID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpsertPart writes a catalog entry. Used by seeding and tests.
func (s *Store) UpsertPart(ctx context.Context, part domain.Part) error {
	if strings.TrimSpace(part.ProductID) == "" || strings.TrimSpace(part.Name) == "" || part.Stock < 0 {
		return store.ErrInvalidInput
	}
	if part.UnitPrice.LessThan(decimal.Zero) {
		return store.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parts (product_id, name, unit_price, stock, updated_at)
		VALUES ($1,$2,$3,$4,now())
		ON CONFLICT (product_id)
		DO UPDATE SET name = EXCLUDED.name, unit_price = EXCLUDED.unit_price, stock = EXCLUDED.stock, updated_at = now()
	`, part.ProductID, part.Name, part.UnitPrice, part.Stock)
	return err
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, store_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.StoreID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE store_id = $1
			AND created_at >= $2
			AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, storeID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.StoreID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleTechnician
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func timePtr(val sql.NullTime) *time.Time {
	if !val.Valid {
		return nil
	}
	t := val.Time.UTC()
	return &t
}
