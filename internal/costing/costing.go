// Package costing derives the money figures of a repair job from its labor
// cost, advance payment and the parts consumed.
package costing

import (
	"github.com/shopspring/decimal"

	"hotline/backend/internal/domain"
)

// Reconcile computes parts, total and balance due. Negative inputs are
// carried through arithmetically and the balance is never clamped, so an
// over-advanced job reports a negative balance.
func Reconcile(laborCost decimal.Decimal, advancePayment decimal.Decimal, parts []domain.PartLineItem) domain.CostSummary {
	partsCost := decimal.Zero
	for _, part := range parts {
		partsCost = partsCost.Add(LineTotal(part))
	}

	totalCost := laborCost.Add(partsCost)
	return domain.CostSummary{
		LaborCost:      laborCost,
		PartsCost:      partsCost,
		TotalCost:      totalCost,
		AdvancePayment: advancePayment,
		BalanceDue:     totalCost.Sub(advancePayment),
	}
}

func LineTotal(part domain.PartLineItem) decimal.Decimal {
	return part.UnitPrice.Mul(decimal.NewFromInt(int64(part.Quantity)))
}

// ForJob reconciles the costs of a stored repair job.
func ForJob(job domain.RepairJob) domain.CostSummary {
	return Reconcile(job.LaborCost, job.AdvancePayment, job.PartsUsed)
}
