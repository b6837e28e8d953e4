package costing

import (
	"testing"

	"github.com/shopspring/decimal"

	"hotline/backend/internal/domain"
)

func dec(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", raw, err)
	}
	return d
}

func assertSummary(t *testing.T, got domain.CostSummary, parts, total, balance string) {
	t.Helper()
	if !got.PartsCost.Equal(dec(t, parts)) {
		t.Fatalf("expected parts cost %s, got %s", parts, got.PartsCost)
	}
	if !got.TotalCost.Equal(dec(t, total)) {
		t.Fatalf("expected total cost %s, got %s", total, got.TotalCost)
	}
	if !got.BalanceDue.Equal(dec(t, balance)) {
		t.Fatalf("expected balance due %s, got %s", balance, got.BalanceDue)
	}
}

func TestReconcileSumsPartsAndLabor(t *testing.T) {
	got := Reconcile(decimal.NewFromInt(100), decimal.NewFromInt(20), []domain.PartLineItem{
		{ProductName: "Screen", Quantity: 2, UnitPrice: decimal.NewFromInt(15)},
		{ProductName: "Battery", Quantity: 1, UnitPrice: decimal.NewFromInt(30)},
	})
	assertSummary(t, got, "60", "160", "140")
	if !got.LaborCost.Equal(decimal.NewFromInt(100)) || !got.AdvancePayment.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected inputs echoed in summary, got %+v", got)
	}
}

func TestReconcileAllowsNegativeBalance(t *testing.T) {
	got := Reconcile(decimal.Zero, decimal.NewFromInt(50), nil)
	assertSummary(t, got, "0", "0", "-50")
}

func TestReconcileKeepsCentsExact(t *testing.T) {
	got := Reconcile(dec(t, "0.10"), dec(t, "0.20"), []domain.PartLineItem{
		{ProductName: "Screw", Quantity: 3, UnitPrice: dec(t, "0.10")},
	})
	assertSummary(t, got, "0.3", "0.4", "0.2")
}

func TestReconcileDoesNotRejectNegativeLines(t *testing.T) {
	got := Reconcile(decimal.NewFromInt(10), decimal.Zero, []domain.PartLineItem{
		{ProductName: "Credit", Quantity: 1, UnitPrice: decimal.NewFromInt(-4)},
		{ProductName: "Return", Quantity: -1, UnitPrice: decimal.NewFromInt(2)},
	})
	assertSummary(t, got, "-6", "4", "4")
}

func TestReconcileIsIdempotent(t *testing.T) {
	parts := []domain.PartLineItem{
		{ProductName: "Screen", Quantity: 2, UnitPrice: decimal.NewFromInt(15)},
		{ProductName: "Battery", Quantity: 1, UnitPrice: decimal.NewFromInt(30)},
	}
	first := Reconcile(decimal.NewFromInt(100), decimal.NewFromInt(20), parts)
	second := Reconcile(decimal.NewFromInt(100), decimal.NewFromInt(20), parts)

	pairs := [][2]decimal.Decimal{
		{first.LaborCost, second.LaborCost},
		{first.PartsCost, second.PartsCost},
		{first.TotalCost, second.TotalCost},
		{first.AdvancePayment, second.AdvancePayment},
		{first.BalanceDue, second.BalanceDue},
	}
	for i, p := range pairs {
		if !p[0].Equal(p[1]) || p[0].String() != p[1].String() {
			t.Fatalf("field %d differs between runs: %s vs %s", i, p[0], p[1])
		}
	}
}

func TestForJob(t *testing.T) {
	job := domain.RepairJob{
		LaborCost:      decimal.NewFromInt(45),
		AdvancePayment: decimal.NewFromInt(10),
		PartsUsed: []domain.PartLineItem{
			{ProductID: "PRT-BATT-IP12", Quantity: 1, UnitPrice: decimal.NewFromInt(25)},
		},
	}
	assertSummary(t, ForJob(job), "25", "70", "60")
}
