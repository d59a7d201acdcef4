package refdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed reference lookups.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetFile returns one purchase file reference.
func (r *Repository) GetFile(ctx context.Context, id int64) (*FileRef, error) {
	var f FileRef
	err := r.pool.QueryRow(ctx,
		`SELECT id, member_id, plot_id, is_deleted FROM purchase_files WHERE id=$1`, id).
		Scan(&f.ID, &f.MemberID, &f.PlotID, &f.IsDeleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetMember returns one member reference.
func (r *Repository) GetMember(ctx context.Context, id int64) (*MemberRef, error) {
	var m MemberRef
	err := r.pool.QueryRow(ctx,
		`SELECT id, is_active, is_deleted FROM members WHERE id=$1`, id).
		Scan(&m.ID, &m.IsActive, &m.IsDeleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetPlot returns one plot reference.
func (r *Repository) GetPlot(ctx context.Context, id int64) (*PlotRef, error) {
	var p PlotRef
	err := r.pool.QueryRow(ctx,
		`SELECT id, is_deleted FROM plots WHERE id=$1`, id).
		Scan(&p.ID, &p.IsDeleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetCategory returns one obligation category reference.
func (r *Repository) GetCategory(ctx context.Context, id int64) (*CategoryRef, error) {
	var c CategoryRef
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, is_active FROM obligation_categories WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
