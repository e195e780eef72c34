package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const defaultPaymentTermDays = 30

// calculateDueDate applies the party's credit terms to a document date.
func calculateDueDate(date time.Time, termDays int) *time.Time {
	if termDays <= 0 {
		termDays = defaultPaymentTermDays
	}
	dueDate := date.AddDate(0, 0, termDays)
	return &dueDate
}

// validateLineAmounts enforces the common per-line constraints before any
// mutation happens.
func validateLineAmounts(qty, rate decimal.Decimal) error {
	if !qty.IsPositive() {
		return errors.New("line qty must be positive")
	}
	if rate.IsNegative() {
		return errors.New("line rate cannot be negative")
	}
	return nil
}
