package costing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"hotline/backend/internal/domain"
)

// MoneyScale is the number of decimal places stored for every money amount.
const MoneyScale int32 = 2

type FieldError struct {
	Field   string
	Message string
}

// ValidateParts reports lines that should not be submitted: quantities
// below one, negative unit prices and prices finer than a cent. Reconcile
// itself accepts them.
func ValidateParts(parts []domain.PartLineItem) []FieldError {
	var errs []FieldError
	for i, part := range parts {
		if part.Quantity < 1 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("parts[%d].quantity", i),
				Message: "must be at least 1",
			})
		}
		if msg := amountProblem(part.UnitPrice); msg != "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("parts[%d].unit_price", i),
				Message: msg,
			})
		}
		if part.ProductID == "" && part.ProductName == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("parts[%d].product_name", i),
				Message: "product id or name is required",
			})
		}
	}
	return errs
}

func ValidateAmount(field string, amount decimal.Decimal) []FieldError {
	if msg := amountProblem(amount); msg != "" {
		return []FieldError{{Field: field, Message: msg}}
	}
	return nil
}

func amountProblem(amount decimal.Decimal) string {
	switch {
	case amount.IsNegative():
		return "must be non-negative"
	case !amount.Equal(amount.Round(MoneyScale)):
		return "must have at most 2 decimal places"
	}
	return ""
}
