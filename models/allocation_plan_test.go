package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestPlanAllocationOldestFirst(t *testing.T) {
	open := []openInvoiceRef{
		{Id: 1, DocumentNumber: "INV/2025-26/001", RemainingBalance: dec("3000.00")},
		{Id: 2, DocumentNumber: "INV/2025-26/002", RemainingBalance: dec("4000.00")},
	}

	plan, left := planAllocation(dec("5000.00"), open)

	if !left.IsZero() {
		t.Fatalf("leftover = %s, want 0", left)
	}
	if len(plan) != 2 {
		t.Fatalf("plan has %d slices, want 2", len(plan))
	}
	if plan[0].Invoice.Id != 1 || !plan[0].Amount.Equal(dec("3000.00")) {
		t.Errorf("first slice = invoice %d amount %s, want invoice 1 amount 3000.00",
			plan[0].Invoice.Id, plan[0].Amount)
	}
	if plan[1].Invoice.Id != 2 || !plan[1].Amount.Equal(dec("2000.00")) {
		t.Errorf("second slice = invoice %d amount %s, want invoice 2 amount 2000.00",
			plan[1].Invoice.Id, plan[1].Amount)
	}
}

func TestPlanAllocationNeverOvershoots(t *testing.T) {
	open := []openInvoiceRef{
		{Id: 1, RemainingBalance: dec("100.00")},
		{Id: 2, RemainingBalance: dec("200.00")},
	}

	plan, left := planAllocation(dec("1000.00"), open)

	if !left.Equal(dec("700.00")) {
		t.Fatalf("leftover = %s, want 700.00", left)
	}
	applied := decimal.Zero
	for _, s := range plan {
		applied = applied.Add(s.Amount)
		if s.Amount.GreaterThan(s.Invoice.RemainingBalance) {
			t.Errorf("slice %s exceeds invoice %d remaining %s", s.Amount, s.Invoice.Id, s.Invoice.RemainingBalance)
		}
	}
	if !applied.Equal(dec("300.00")) {
		t.Errorf("applied = %s, want 300.00", applied)
	}
}

func TestPlanAllocationNoOpenInvoices(t *testing.T) {
	plan, left := planAllocation(dec("500.00"), nil)
	if len(plan) != 0 {
		t.Errorf("plan has %d slices, want 0", len(plan))
	}
	if !left.Equal(dec("500.00")) {
		t.Errorf("leftover = %s, want 500.00", left)
	}
}

func TestPlanAllocationSkipsSettledInvoices(t *testing.T) {
	open := []openInvoiceRef{
		{Id: 1, RemainingBalance: decimal.Zero},
		{Id: 2, RemainingBalance: dec("150.00")},
	}
	plan, left := planAllocation(dec("150.00"), open)
	if len(plan) != 1 || plan[0].Invoice.Id != 2 {
		t.Fatalf("expected single slice on invoice 2, got %+v", plan)
	}
	if !left.IsZero() {
		t.Errorf("leftover = %s, want 0", left)
	}
}

func TestFormatDocumentNumber(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{1, "INV/2025-26/001"},
		{42, "INV/2025-26/042"},
		{999, "INV/2025-26/999"},
		{1000, "INV/2025-26/1000"},
	}
	for _, tc := range cases {
		got := FormatDocumentNumber("INV", "2025-26", tc.n)
		if got != tc.want {
			t.Errorf("FormatDocumentNumber(INV, 2025-26, %d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestCalculateDueDate(t *testing.T) {
	invoiceDate := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	due := calculateDueDate(invoiceDate, 15)
	if want := invoiceDate.AddDate(0, 0, 15); !due.Equal(want) {
		t.Errorf("due date with 15-day terms = %s, want %s", due, want)
	}

	// Unset terms fall back to the default policy.
	due = calculateDueDate(invoiceDate, 0)
	if want := invoiceDate.AddDate(0, 0, defaultPaymentTermDays); !due.Equal(want) {
		t.Errorf("due date with unset terms = %s, want %s", due, want)
	}
}

func TestValidateLineAmounts(t *testing.T) {
	if err := validateLineAmounts(dec("1"), dec("10.00")); err != nil {
		t.Errorf("valid line rejected: %v", err)
	}
	if err := validateLineAmounts(decimal.Zero, dec("10.00")); err == nil {
		t.Error("zero qty accepted")
	}
	if err := validateLineAmounts(dec("-1"), dec("10.00")); err == nil {
		t.Error("negative qty accepted")
	}
	if err := validateLineAmounts(dec("1"), dec("-0.01")); err == nil {
		t.Error("negative rate accepted")
	}
}
