package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PartLineItem is one part line on a job. On submission a line that names a
// catalog ProductID with a zero UnitPrice is charged the catalog price; a
// free part is entered as a line without ProductID.
type PartLineItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CostSummary is derived from a job's labor cost, advance payment and parts
// on every read. It is never stored.
type CostSummary struct {
	LaborCost      decimal.Decimal `json:"labor_cost"`
	PartsCost      decimal.Decimal `json:"parts_cost"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	AdvancePayment decimal.Decimal `json:"advance_payment"`
	BalanceDue     decimal.Decimal `json:"balance_due"`
}

type RepairJob struct {
	ID                  string          `json:"id"`
	JobNumber           string          `json:"job_number"`
	StoreID             string          `json:"store_id"`
	CustomerName        string          `json:"customer_name"`
	CustomerPhone       string          `json:"customer_phone"`
	DeviceBrand         string          `json:"device_brand"`
	DeviceModel         string          `json:"device_model"`
	IdentifierType      string          `json:"identifier_type"`
	DeviceIdentifier    string          `json:"device_identifier"`
	ProblemDescription  string          `json:"problem_description"`
	Diagnosis           string          `json:"diagnosis,omitempty"`
	Notes               string          `json:"notes,omitempty"`
	TechnicianUsername  string          `json:"technician_username,omitempty"`
	Status              string          `json:"status"`
	LaborCost           decimal.Decimal `json:"labor_cost"`
	AdvancePayment      decimal.Decimal `json:"advance_payment"`
	FinalPayment        decimal.Decimal `json:"final_payment"`
	PaymentMethod       string          `json:"payment_method,omitempty"`
	PartsUsed           []PartLineItem  `json:"parts_used"`
	Costs               CostSummary     `json:"costs"`
	CancelReason        string          `json:"cancel_reason,omitempty"`
	EstimatedCompletion *time.Time      `json:"estimated_completion,omitempty"`
	CreatedBy           string          `json:"created_by"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	StartedAt           *time.Time      `json:"started_at,omitempty"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
	DeliveredAt         *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt         *time.Time      `json:"cancelled_at,omitempty"`
}

type RepairCreateRequest struct {
	StoreID             string          `json:"store_id"`
	CustomerName        string          `json:"customer_name"`
	CustomerPhone       string          `json:"customer_phone"`
	DeviceBrand         string          `json:"device_brand"`
	DeviceModel         string          `json:"device_model"`
	IdentifierType      string          `json:"identifier_type"`
	DeviceIdentifier    string          `json:"device_identifier"`
	ProblemDescription  string          `json:"problem_description"`
	TechnicianUsername  string          `json:"technician_username"`
	LaborCost           decimal.Decimal `json:"labor_cost"`
	AdvancePayment      decimal.Decimal `json:"advance_payment"`
	EstimatedCompletion string          `json:"estimated_completion,omitempty"`
	Notes               string          `json:"notes,omitempty"`
}

type RepairUpdateRequest struct {
	Diagnosis           *string          `json:"diagnosis,omitempty"`
	Notes               *string          `json:"notes,omitempty"`
	LaborCost           *decimal.Decimal `json:"labor_cost,omitempty"`
	AdvancePayment      *decimal.Decimal `json:"advance_payment,omitempty"`
	EstimatedCompletion *string          `json:"estimated_completion,omitempty"`
	TechnicianUsername  *string          `json:"technician_username,omitempty"`
}

type RepairPartsRequest struct {
	Parts []PartLineItem `json:"parts"`
}

type RepairCompleteRequest struct {
	Diagnosis string           `json:"diagnosis"`
	LaborCost *decimal.Decimal `json:"labor_cost,omitempty"`
	PartsUsed []PartLineItem   `json:"parts_used"`
	Notes     string           `json:"notes,omitempty"`
}

type RepairDeliverRequest struct {
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	PaymentMethod string          `json:"payment_method"`
}

type RepairCancelRequest struct {
	Reason     string `json:"reason"`
	ManagerPIN string `json:"manager_pin"`
}

type RepairFilter struct {
	StoreID    string
	Status     string
	Technician string
	Identifier string
	Limit      int
}

type RepairResponse struct {
	Repair RepairJob `json:"repair"`
}

type RepairListResponse struct {
	Repairs []RepairJob `json:"repairs"`
}

type CostPreviewRequest struct {
	LaborCost      decimal.Decimal `json:"labor_cost"`
	AdvancePayment decimal.Decimal `json:"advance_payment"`
	Parts          []PartLineItem  `json:"parts"`
}

type IdentifierCheckRequest struct {
	Identifier string `json:"identifier"`
	Type       string `json:"type,omitempty"`
}

type IdentifierCheckResponse struct {
	Type    string `json:"type"`
	Value   string `json:"value"`
	Display string `json:"display"`
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

type ScanKeystroke struct {
	Key  string `json:"key"`
	AtMS int64  `json:"at_ms"`
}

type ScanCaptureRequest struct {
	Keystrokes []ScanKeystroke `json:"keystrokes"`
}

type ScanCaptureResponse struct {
	Codes []IdentifierCheckResponse `json:"codes"`
}

type DeviceLookupResponse struct {
	Identifier IdentifierCheckResponse `json:"identifier"`
	Repairs    []RepairJob             `json:"repairs"`
}

type Part struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Stock     int             `json:"stock"`
}

type PartListResponse struct {
	Parts []Part `json:"parts"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type TechnicianDashboard struct {
	Technician         string          `json:"technician"`
	GeneratedAt        string          `json:"generated_at"`
	StatusCounts       []StatusCount   `json:"status_counts"`
	ActiveJobs         []RepairJob     `json:"active_jobs"`
	OverdueJobs        int             `json:"overdue_jobs"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	CompletedToday     int             `json:"completed_today"`
	LaborRevenueToday  decimal.Decimal `json:"labor_revenue_today"`
	PartsRevenueToday  decimal.Decimal `json:"parts_revenue_today"`
	Cached             bool            `json:"cached"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Username    string `json:"username"`
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type TechnicianCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	StoreID       string    `json:"store_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	RepairStatusPending    = "pending"
	RepairStatusInProgress = "in_progress"
	RepairStatusCompleted  = "completed"
	RepairStatusDelivered  = "delivered"
	RepairStatusCancelled  = "cancelled"
)

// RepairStatuses lists every status in lifecycle order.
var RepairStatuses = []string{
	RepairStatusPending,
	RepairStatusInProgress,
	RepairStatusCompleted,
	RepairStatusDelivered,
	RepairStatusCancelled,
}

const (
	RoleAdmin      = "admin"
	RoleTechnician = "technician"
	RoleCashier    = "cashier"
)

// IsStaffRole reports whether role is one the repair desk hands out.
func IsStaffRole(role string) bool {
	return role == RoleAdmin || role == RoleTechnician || role == RoleCashier
}

// IsEditable reports whether a job in this status still accepts changes to
// its diagnosis, costs or parts.
func IsEditable(status string) bool {
	return status == RepairStatusPending || status == RepairStatusInProgress
}
