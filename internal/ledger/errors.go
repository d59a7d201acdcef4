package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// NotFoundError indicates a missing installment or reference record.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("ledger: %s %d not found", e.Entity, e.ID)
}

// ReferentialMismatchError indicates the file, member and plot references
// disagree with each other.
type ReferentialMismatchError struct {
	Detail string
}

func (e *ReferentialMismatchError) Error() string {
	return "ledger: referential mismatch: " + e.Detail
}

// DuplicateError indicates an installment number collision within a
// (file, category) scope.
type DuplicateError struct {
	FileID        int64
	CategoryID    int64
	InstallmentNo int
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("ledger: installment #%d already exists for file %d category %d",
		e.InstallmentNo, e.FileID, e.CategoryID)
}

// ValidationError indicates an invalid input value. For over-payment
// rejections MaxAllowed carries the largest amount the caller may retry with.
type ValidationError struct {
	Field      string
	Detail     string
	MaxAllowed *decimal.Decimal
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "ledger: " + e.Detail
	}
	return fmt.Sprintf("ledger: %s: %s", e.Field, e.Detail)
}

// ImmutableStateError indicates an attempt to edit a locked field of a PAID
// installment.
type ImmutableStateError struct {
	Field string
}

func (e *ImmutableStateError) Error() string {
	return fmt.Sprintf("ledger: field %q cannot change once installment is paid", e.Field)
}

// InvalidStateError indicates an operation forbidden by the current lifecycle
// state, such as paying a cancelled installment or deleting a paid one.
type InvalidStateError struct {
	Detail string
}

func (e *InvalidStateError) Error() string {
	return "ledger: " + e.Detail
}
