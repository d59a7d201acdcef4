package ledger

import (
	"context"
	"time"
)

// RepositoryPort defines data access for the installment ledger.
type RepositoryPort interface {
	// InsertBatch persists all drafts in one transaction; either every draft
	// is created or none are.
	InsertBatch(ctx context.Context, drafts []Installment) ([]Installment, error)
	Insert(ctx context.Context, draft Installment) (*Installment, error)
	Get(ctx context.Context, id int64) (*Installment, error)
	List(ctx context.Context, filter ListFilter) ([]Installment, int, error)

	// ExistsInstallmentNo checks the (fileID, categoryID, no) uniqueness scope
	// over non-deleted entries, ignoring excludeID.
	ExistsInstallmentNo(ctx context.Context, fileID, categoryID int64, no int, excludeID int64) (bool, error)
	// MaxInstallmentNo returns the highest non-deleted sequence number in the
	// scope, 0 when the scope is empty.
	MaxInstallmentNo(ctx context.Context, fileID, categoryID int64) (int, error)

	ListEvents(ctx context.Context, installmentID int64) ([]PaymentEvent, error)

	// InTx runs fn against a transactional view of the store. Mutations on a
	// single installment are serialized through GetForUpdate.
	InTx(ctx context.Context, fn func(tx TxPort) error) error

	// SweepOverdue persists the OVERDUE transition for non-deleted
	// UNPAID/PARTIALLY_PAID entries whose due day precedes asOf's calendar
	// day, returning the number of rows changed. Idempotent.
	SweepOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

// TxPort exposes the operations available inside a store transaction.
type TxPort interface {
	// GetForUpdate reads one installment and locks it for the remainder of
	// the transaction, serializing concurrent payment application.
	GetForUpdate(ctx context.Context, id int64) (*Installment, error)
	Update(ctx context.Context, inst *Installment) error
	InsertEvent(ctx context.Context, event PaymentEvent) error
	// FindEventByRef locates a prior payment event on the installment with
	// the given transaction reference, nil when absent.
	FindEventByRef(ctx context.Context, installmentID int64, ref string) (*PaymentEvent, error)
}
