package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"hotline/backend/internal/domain"
	"hotline/backend/internal/store"
	"hotline/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	repairsByID     map[string]domain.RepairJob
	parts           map[string]domain.Part
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD, SEED_CASHIER_PASSWORD and
// SEED_TECHNICIAN_PASSWORD. If unset, hardcoded dev defaults are used with a
// warning. These credentials are never used in production (the backend uses
// PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	techPwd := envOr("SEED_TECHNICIAN_PASSWORD", "tech123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" || os.Getenv("SEED_TECHNICIAN_PASSWORD") == "" {
		zap.L().Warn("memory store is using default dev credentials",
			zap.String("override", "SEED_ADMIN_PASSWORD, SEED_CASHIER_PASSWORD, SEED_TECHNICIAN_PASSWORD"))
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
		{"tech", techPwd, domain.RoleTechnician},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			zap.L().Fatal("failed to hash seed password", zap.String("username", u.username), zap.Error(err))
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	parts := []domain.Part{
		{ProductID: "PRT-SCR-IP12", Name: "iPhone 12 Screen Assembly", UnitPrice: decimal.RequireFromString("85.00"), Stock: 10},
		{ProductID: "PRT-BAT-IP12", Name: "iPhone 12 Battery", UnitPrice: decimal.RequireFromString("25.00"), Stock: 20},
		{ProductID: "PRT-CAM-IP12", Name: "iPhone 12 Rear Camera", UnitPrice: decimal.RequireFromString("48.00"), Stock: 4},
		{ProductID: "PRT-SCR-SGA52", Name: "Galaxy A52 Screen", UnitPrice: decimal.RequireFromString("70.00"), Stock: 6},
		{ProductID: "PRT-BAT-SGA52", Name: "Galaxy A52 Battery", UnitPrice: decimal.RequireFromString("22.50"), Stock: 12},
		{ProductID: "PRT-PORT-USBC", Name: "USB-C Charging Port", UnitPrice: decimal.RequireFromString("8.00"), Stock: 40},
		{ProductID: "PRT-SPK-GEN", Name: "Loudspeaker Module", UnitPrice: decimal.RequireFromString("6.50"), Stock: 25},
		{ProductID: "PRT-ADH-GEN", Name: "Adhesive Strip Set", UnitPrice: decimal.RequireFromString("1.20"), Stock: 100},
	}

	partMap := make(map[string]domain.Part, len(parts))
	for _, p := range parts {
		partMap[p.ProductID] = p
	}

	return &Store{
		repairsByID:     make(map[string]domain.RepairJob),
		parts:           partMap,
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

func (s *Store) CreateRepairJob(_ context.Context, job domain.RepairJob) (*domain.RepairJob, error) {
	if job.CustomerName == "" || job.DeviceIdentifier == "" || job.ProblemDescription == "" {
		return nil, store.ErrInvalidInput
	}
	if job.ID == "" {
		job.ID = xid.New("rep")
	}
	if job.Status == "" {
		job.Status = domain.RepairStatusPending
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}
	if job.JobNumber == "" {
		job.JobNumber = xid.JobNumber(job.CreatedAt)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.repairsByID[job.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	s.repairsByID[job.ID] = cloneRepairJob(job)
	created := cloneRepairJob(job)
	return &created, nil
}

func (s *Store) GetRepairJob(_ context.Context, id string) (*domain.RepairJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.repairsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := cloneRepairJob(job)
	return &found, nil
}

func (s *Store) ListRepairJobs(_ context.Context, filter domain.RepairFilter) ([]domain.RepairJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}

	result := make([]domain.RepairJob, 0, min(limit, len(s.repairsByID)))
	for _, job := range s.repairsByID {
		if filter.StoreID != "" && job.StoreID != filter.StoreID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.Technician != "" && job.TechnicianUsername != filter.Technician {
			continue
		}
		if filter.Identifier != "" && job.DeviceIdentifier != filter.Identifier {
			continue
		}
		result = append(result, cloneRepairJob(job))
	}

	slices.SortFunc(result, func(a, b domain.RepairJob) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) UpdateRepairJob(_ context.Context, job domain.RepairJob, fromStatus string) (*domain.RepairJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkTransitionLocked(job, fromStatus); err != nil {
		return nil, err
	}

	job.UpdatedAt = store.NextUpdatedAt(s.repairsByID[job.ID].UpdatedAt)
	s.repairsByID[job.ID] = cloneRepairJob(job)
	updated := cloneRepairJob(job)
	return &updated, nil
}

func (s *Store) CompleteRepairJob(_ context.Context, job domain.RepairJob, fromStatus string) (*domain.RepairJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkTransitionLocked(job, fromStatus); err != nil {
		return nil, err
	}

	consumed := consumedQuantities(job.PartsUsed)
	for productID, qty := range consumed {
		part, exists := s.parts[productID]
		if !exists {
			return nil, store.ErrNotFound
		}
		if part.Stock < qty {
			return nil, store.ErrInsufficientStock
		}
	}
	for productID, qty := range consumed {
		part := s.parts[productID]
		part.Stock -= qty
		s.parts[productID] = part
	}

	job.UpdatedAt = store.NextUpdatedAt(s.repairsByID[job.ID].UpdatedAt)
	s.repairsByID[job.ID] = cloneRepairJob(job)
	completed := cloneRepairJob(job)
	return &completed, nil
}

func (s *Store) checkTransitionLocked(job domain.RepairJob, fromStatus string) error {
	current, exists := s.repairsByID[job.ID]
	if !exists {
		return store.ErrNotFound
	}
	if current.Status != fromStatus {
		return store.ErrInvalidTransition
	}
	if !current.UpdatedAt.Equal(job.UpdatedAt) {
		return store.ErrStaleJob
	}
	return nil
}

func (s *Store) ListParts(_ context.Context) ([]domain.Part, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parts := make([]domain.Part, 0, len(s.parts))
	for _, p := range s.parts {
		parts = append(parts, p)
	}
	slices.SortFunc(parts, func(a, b domain.Part) int {
		return strings.Compare(a.Name, b.Name)
	})
	return parts, nil
}

func (s *Store) GetPartsByIDs(_ context.Context, ids []string) (map[string]domain.Part, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Part, len(ids))
	for _, id := range ids {
		if part, exists := s.parts[id]; exists {
			result[id] = part
		}
	}
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if storeID != "" && entry.StoreID != storeID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidInput
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleTechnician
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// consumedQuantities sums quantities per catalog part. Free-text lines
// without a product id are not stocked.
func consumedQuantities(lines []domain.PartLineItem) map[string]int {
	consumed := make(map[string]int, len(lines))
	for _, line := range lines {
		if line.ProductID == "" || line.Quantity < 1 {
			continue
		}
		consumed[line.ProductID] += line.Quantity
	}
	return consumed
}

func cloneRepairJob(src domain.RepairJob) domain.RepairJob {
	dup := src
	dup.PartsUsed = slices.Clone(src.PartsUsed)
	if dup.PartsUsed == nil {
		dup.PartsUsed = []domain.PartLineItem{}
	}
	return dup
}
