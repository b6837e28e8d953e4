package costing

import (
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"hotline/backend/internal/domain"
)

var (
	ErrUnknownField = errors.New("unknown part field")
	ErrInvalidValue = errors.New("invalid part field value")
)

type PartField string

const (
	FieldProductID   PartField = "product_id"
	FieldProductName PartField = "product_name"
	FieldQuantity    PartField = "quantity"
	FieldUnitPrice   PartField = "unit_price"
)

// Sheet is the cost worksheet of one repair job while it is being edited.
// Every mutation swaps in a fresh Parts slice, so slices handed out earlier
// keep their contents.
type Sheet struct {
	LaborCost      decimal.Decimal
	AdvancePayment decimal.Decimal
	Parts          []domain.PartLineItem
}

func NewSheet(job domain.RepairJob) *Sheet {
	return &Sheet{
		LaborCost:      job.LaborCost,
		AdvancePayment: job.AdvancePayment,
		Parts:          slices.Clone(job.PartsUsed),
	}
}

// AddPart appends an empty line for the caller to fill in.
func (s *Sheet) AddPart() int {
	parts := make([]domain.PartLineItem, len(s.Parts), len(s.Parts)+1)
	copy(parts, s.Parts)
	s.Parts = append(parts, domain.PartLineItem{})
	return len(s.Parts) - 1
}

// RemovePart drops the line at index. Out of range indexes are ignored.
func (s *Sheet) RemovePart(index int) bool {
	if index < 0 || index >= len(s.Parts) {
		return false
	}
	parts := make([]domain.PartLineItem, 0, len(s.Parts)-1)
	parts = append(parts, s.Parts[:index]...)
	s.Parts = append(parts, s.Parts[index+1:]...)
	return true
}

// UpdatePart sets one field of the line at index from its form value.
// Out of range indexes are ignored. No cross-field or sign checks happen
// here; see ValidateParts.
func (s *Sheet) UpdatePart(index int, field PartField, value string) error {
	if index < 0 || index >= len(s.Parts) {
		return nil
	}

	item := s.Parts[index]
	switch field {
	case FieldProductID:
		item.ProductID = value
	case FieldProductName:
		item.ProductName = value
	case FieldQuantity:
		qty, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return ErrInvalidValue
		}
		item.Quantity = qty
	case FieldUnitPrice:
		price, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return ErrInvalidValue
		}
		item.UnitPrice = price
	default:
		return ErrUnknownField
	}

	parts := slices.Clone(s.Parts)
	parts[index] = item
	s.Parts = parts
	return nil
}

func (s *Sheet) Recompute() domain.CostSummary {
	return Reconcile(s.LaborCost, s.AdvancePayment, s.Parts)
}
