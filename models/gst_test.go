package models_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/distro_backend/models"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestCalculateGSTIntraState(t *testing.T) {
	b := models.CalculateGST(d("1000.00"), d("18"), "27", "27")

	if !b.CentralTax.Equal(d("90.00")) {
		t.Errorf("central tax = %s, want 90.00", b.CentralTax)
	}
	if !b.StateTax.Equal(d("90.00")) {
		t.Errorf("state tax = %s, want 90.00", b.StateTax)
	}
	if !b.IntegratedTax.IsZero() {
		t.Errorf("integrated tax = %s, want 0", b.IntegratedTax)
	}
	if !b.TotalWithTax.Equal(d("1180.00")) {
		t.Errorf("total = %s, want 1180.00", b.TotalWithTax)
	}
}

func TestCalculateGSTInterState(t *testing.T) {
	b := models.CalculateGST(d("1000.00"), d("18"), "29", "27")

	if !b.IntegratedTax.Equal(d("180.00")) {
		t.Errorf("integrated tax = %s, want 180.00", b.IntegratedTax)
	}
	if !b.CentralTax.IsZero() || !b.StateTax.IsZero() {
		t.Errorf("intra-state heads = %s/%s, want 0/0", b.CentralTax, b.StateTax)
	}
	if !b.TotalWithTax.Equal(d("1180.00")) {
		t.Errorf("total = %s, want 1180.00", b.TotalWithTax)
	}
}

// The two halves of an intra-state split must always reassemble into the
// same tax an inter-state sale of the same amount would carry, including
// odd amounts where the halves cannot be equal.
func TestCalculateGSTSplitConsistency(t *testing.T) {
	cases := []struct {
		amount string
		rate   string
	}{
		{"1000.00", "18"},
		{"999.99", "18"},
		{"0.01", "5"},
		{"123.45", "12"},
		{"7777.77", "28"},
		{"50.50", "0.25"},
	}
	for _, tc := range cases {
		intra := models.CalculateGST(d(tc.amount), d(tc.rate), "27", "27")
		inter := models.CalculateGST(d(tc.amount), d(tc.rate), "29", "27")

		if !intra.CentralTax.Add(intra.StateTax).Equal(inter.IntegratedTax) {
			t.Errorf("amount %s rate %s: central %s + state %s != integrated %s",
				tc.amount, tc.rate, intra.CentralTax, intra.StateTax, inter.IntegratedTax)
		}
		if !intra.TotalWithTax.Equal(inter.TotalWithTax) {
			t.Errorf("amount %s rate %s: intra total %s != inter total %s",
				tc.amount, tc.rate, intra.TotalWithTax, inter.TotalWithTax)
		}
		if intra.StateTax.LessThan(intra.CentralTax) {
			t.Errorf("amount %s rate %s: state half %s smaller than central half %s",
				tc.amount, tc.rate, intra.StateTax, intra.CentralTax)
		}
	}
}

func TestCalculateGSTZeroRate(t *testing.T) {
	b := models.CalculateGST(d("500.00"), decimal.Zero, "27", "27")
	if !b.TotalTax().IsZero() {
		t.Errorf("tax on zero rate = %s, want 0", b.TotalTax())
	}
	if !b.TotalWithTax.Equal(d("500.00")) {
		t.Errorf("total = %s, want 500.00", b.TotalWithTax)
	}
}
