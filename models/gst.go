package models

import "github.com/shopspring/decimal"

var (
	decimalOneHundred = decimal.NewFromInt(100)
	decimalTwoHundred = decimal.NewFromInt(200)
)

// GSTBreakup is the result of splitting tax on one taxable amount.
// Exactly one of (CentralTax+StateTax) and IntegratedTax is non-zero.
type GSTBreakup struct {
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	CentralTax    decimal.Decimal `json:"central_tax"`
	StateTax      decimal.Decimal `json:"state_tax"`
	IntegratedTax decimal.Decimal `json:"integrated_tax"`
	TotalWithTax  decimal.Decimal `json:"total_with_tax"`
}

func (b GSTBreakup) TotalTax() decimal.Decimal {
	return b.CentralTax.Add(b.StateTax).Add(b.IntegratedTax)
}

// CalculateGST computes the two-tier split for one line.
//
// Same state: the full tax is halved into central + state. The central half
// is truncated to 2dp and the state half takes the remainder, so the two
// always sum exactly to the full tax. Different state: the full tax goes to
// the single integrated head.
//
// Monetary rounding is to 2dp, half away from zero (half-up for the positive
// amounts used here).
func CalculateGST(taxable decimal.Decimal, rate decimal.Decimal, partyStateCode string, homeStateCode string) GSTBreakup {
	fullTax := taxable.Mul(rate).Div(decimalOneHundred).Round(2)

	breakup := GSTBreakup{
		TaxableAmount: taxable,
		TotalWithTax:  taxable.Add(fullTax).Round(2),
	}

	if partyStateCode == homeStateCode {
		breakup.CentralTax = taxable.Mul(rate).Div(decimalTwoHundred).RoundDown(2)
		breakup.StateTax = fullTax.Sub(breakup.CentralTax)
		return breakup
	}

	breakup.IntegratedTax = fullTax
	return breakup
}
