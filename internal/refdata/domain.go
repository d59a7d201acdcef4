// Package refdata provides read-only lookups against the society's reference
// records: purchase files, members, plots and obligation categories. The
// ledger engine uses them for existence and consistency checks only.
package refdata

import (
	"context"
	"errors"
)

// ErrNotFound indicates the referenced record does not exist.
var ErrNotFound = errors.New("refdata: not found")

// FileRef is the purchase file view the engine consumes.
type FileRef struct {
	ID        int64
	MemberID  int64
	PlotID    int64
	IsDeleted bool
}

// MemberRef is the member view the engine consumes.
type MemberRef struct {
	ID        int64
	IsActive  bool
	IsDeleted bool
}

// PlotRef is the plot view the engine consumes.
type PlotRef struct {
	ID        int64
	IsDeleted bool
}

// CategoryRef is the obligation category view the engine consumes.
type CategoryRef struct {
	ID       int64
	Name     string
	IsActive bool
}

// LookupPort defines the reference lookup contract.
type LookupPort interface {
	GetFile(ctx context.Context, id int64) (*FileRef, error)
	GetMember(ctx context.Context, id int64) (*MemberRef, error)
	GetPlot(ctx context.Context, id int64) (*PlotRef, error)
	GetCategory(ctx context.Context, id int64) (*CategoryRef, error)
}
