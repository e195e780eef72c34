package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// Contract errors surfaced by the financial core. Callers compare with
// errors.Is; the messages are user-visible.
var (
	ErrInsufficientStock = errors.New("insufficient stock for batch")
	ErrAlreadyVoid       = errors.New("document is already void")
	ErrNoSuccessorFY     = errors.New("no successor financial year defined")
)
