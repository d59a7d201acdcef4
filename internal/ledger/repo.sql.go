package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hillstead/hillstead/internal/platform/db"
)

const installmentColumns = `id, file_id, member_id, plot_id, category_id, installment_no,
title, obligation_type, due_date,
amount_due, late_fee_surcharge, total_payable, amount_paid, balance_amount,
status, paid_date, payment_mode, transaction_ref, remarks,
created_by, modified_by, created_at, updated_at, is_deleted, deleted_at`

// Repository provides PostgreSQL backed persistence for the ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// uniqueViolation is the PostgreSQL error code for unique constraint breaches.
const uniqueViolation = "23505"

// mapInsertErr translates a unique-index breach on the (file, category, no)
// scope into the domain DuplicateError.
func mapInsertErr(err error, inst Installment) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &DuplicateError{FileID: inst.FileID, CategoryID: inst.CategoryID, InstallmentNo: inst.InstallmentNo}
	}
	return err
}

func scanInstallment(row pgx.Row) (*Installment, error) {
	var inst Installment
	err := row.Scan(
		&inst.ID, &inst.FileID, &inst.MemberID, &inst.PlotID, &inst.CategoryID, &inst.InstallmentNo,
		&inst.Title, &inst.ObligationType, &inst.DueDate,
		&inst.AmountDue, &inst.LateFeeSurcharge, &inst.TotalPayable, &inst.AmountPaid, &inst.BalanceAmount,
		&inst.Status, &inst.PaidDate, &inst.PaymentMode, &inst.TransactionRef, &inst.Remarks,
		&inst.CreatedBy, &inst.ModifiedBy, &inst.CreatedAt, &inst.UpdatedAt, &inst.IsDeleted, &inst.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

const insertInstallmentSQL = `INSERT INTO installments
(file_id, member_id, plot_id, category_id, installment_no,
 title, obligation_type, due_date,
 amount_due, late_fee_surcharge, total_payable, amount_paid, balance_amount,
 status, payment_mode, transaction_ref, remarks,
 created_by, modified_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
RETURNING id`

func insertArgs(inst Installment) []any {
	return []any{
		inst.FileID, inst.MemberID, inst.PlotID, inst.CategoryID, inst.InstallmentNo,
		inst.Title, inst.ObligationType, inst.DueDate,
		inst.AmountDue, inst.LateFeeSurcharge, inst.TotalPayable, inst.AmountPaid, inst.BalanceAmount,
		inst.Status, inst.PaymentMode, inst.TransactionRef, inst.Remarks,
		inst.CreatedBy, inst.ModifiedBy, inst.CreatedAt, inst.UpdatedAt,
	}
}

// InsertBatch creates all drafts in one transaction; a failure aborts the
// whole batch.
func (r *Repository) InsertBatch(ctx context.Context, drafts []Installment) ([]Installment, error) {
	created := make([]Installment, 0, len(drafts))
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, draft := range drafts {
			var id int64
			if err := tx.QueryRow(ctx, insertInstallmentSQL, insertArgs(draft)...).Scan(&id); err != nil {
				return mapInsertErr(err, draft)
			}
			draft.ID = id
			created = append(created, draft)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Insert creates one installment.
func (r *Repository) Insert(ctx context.Context, draft Installment) (*Installment, error) {
	var id int64
	if err := r.pool.QueryRow(ctx, insertInstallmentSQL, insertArgs(draft)...).Scan(&id); err != nil {
		return nil, mapInsertErr(err, draft)
	}
	draft.ID = id
	return &draft, nil
}

// Get fetches one installment by id, nil when absent.
func (r *Repository) Get(ctx context.Context, id int64) (*Installment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+installmentColumns+` FROM installments WHERE id=$1`, id)
	return scanInstallment(row)
}

// List returns entries matching the filter with the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Installment, int, error) {
	where, args := buildListWhere(filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM installments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`SELECT %s FROM installments%s ORDER BY due_date, installment_no LIMIT $%d OFFSET $%d`,
		installmentColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *inst)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func buildListWhere(filter ListFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !filter.IncludeDeleted {
		conds = append(conds, "NOT is_deleted")
	}
	if filter.FileID != 0 {
		add("file_id=$%d", filter.FileID)
	}
	if filter.MemberID != 0 {
		add("member_id=$%d", filter.MemberID)
	}
	if filter.PlotID != 0 {
		add("plot_id=$%d", filter.PlotID)
	}
	if filter.CategoryID != 0 {
		add("category_id=$%d", filter.CategoryID)
	}
	if filter.Status != "" {
		add("status=$%d", filter.Status)
	}
	if !filter.DueFrom.IsZero() {
		add("due_date >= $%d", filter.DueFrom)
	}
	if !filter.DueTo.IsZero() {
		add("due_date <= $%d", filter.DueTo)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ExistsInstallmentNo checks sequence uniqueness over non-deleted entries.
func (r *Repository) ExistsInstallmentNo(ctx context.Context, fileID, categoryID int64, no int, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM installments
		 WHERE file_id=$1 AND category_id=$2 AND installment_no=$3 AND NOT is_deleted AND id<>$4)`,
		fileID, categoryID, no, excludeID).Scan(&exists)
	return exists, err
}

// MaxInstallmentNo returns the highest non-deleted sequence number in scope.
func (r *Repository) MaxInstallmentNo(ctx context.Context, fileID, categoryID int64) (int, error) {
	var max int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(installment_no), 0) FROM installments
		 WHERE file_id=$1 AND category_id=$2 AND NOT is_deleted`,
		fileID, categoryID).Scan(&max)
	return max, err
}

// ListEvents returns the payment log ordered by application time.
func (r *Repository) ListEvents(ctx context.Context, installmentID int64) ([]PaymentEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, installment_id, amount, mode, paid_at, transaction_ref, remark, actor_id, recorded_at
		 FROM payment_events WHERE installment_id=$1 ORDER BY recorded_at, id`, installmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []PaymentEvent
	for rows.Next() {
		var ev PaymentEvent
		if err := rows.Scan(&ev.ID, &ev.InstallmentID, &ev.Amount, &ev.Mode, &ev.PaidAt,
			&ev.TransactionRef, &ev.Remark, &ev.ActorID, &ev.RecordedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// SweepOverdue persists OVERDUE on open entries whose due day precedes
// asOf's calendar day. Idempotent: the WHERE clause excludes rows already
// swept. Casting the cutoff to a date keeps entries due on asOf's own day
// out of the sweep regardless of the timestamp's clock part.
func (r *Repository) SweepOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE installments SET status=$1, updated_at=NOW()
		 WHERE status IN ($2, $3) AND due_date < date($4) AND NOT is_deleted`,
		StatusOverdue, StatusUnpaid, StatusPartiallyPaid, asOf)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InTx wraps fn in a repeatable-read transaction.
func (r *Repository) InTx(ctx context.Context, fn func(tx TxPort) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

// GetForUpdate locks the row for the remainder of the transaction.
func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (*Installment, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+installmentColumns+` FROM installments WHERE id=$1 FOR UPDATE`, id)
	return scanInstallment(row)
}

// Update writes the full mutable row back.
func (t *txRepo) Update(ctx context.Context, inst *Installment) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE installments SET
		 installment_no=$1, title=$2, obligation_type=$3, due_date=$4,
		 amount_due=$5, late_fee_surcharge=$6, total_payable=$7, amount_paid=$8, balance_amount=$9,
		 status=$10, paid_date=$11, payment_mode=$12, transaction_ref=$13, remarks=$14,
		 modified_by=$15, updated_at=$16, is_deleted=$17, deleted_at=$18
		 WHERE id=$19`,
		inst.InstallmentNo, inst.Title, inst.ObligationType, inst.DueDate,
		inst.AmountDue, inst.LateFeeSurcharge, inst.TotalPayable, inst.AmountPaid, inst.BalanceAmount,
		inst.Status, inst.PaidDate, inst.PaymentMode, inst.TransactionRef, inst.Remarks,
		inst.ModifiedBy, inst.UpdatedAt, inst.IsDeleted, inst.DeletedAt, inst.ID)
	if err != nil {
		return mapInsertErr(err, *inst)
	}
	return nil
}

// InsertEvent appends one record to the payment log.
func (t *txRepo) InsertEvent(ctx context.Context, ev PaymentEvent) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO payment_events
		 (id, installment_id, amount, mode, paid_at, transaction_ref, remark, actor_id, recorded_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		ev.ID, ev.InstallmentID, ev.Amount, ev.Mode, ev.PaidAt, ev.TransactionRef, ev.Remark, ev.ActorID, ev.RecordedAt)
	return err
}

// FindEventByRef locates a prior event with the given transaction reference.
func (t *txRepo) FindEventByRef(ctx context.Context, installmentID int64, ref string) (*PaymentEvent, error) {
	var ev PaymentEvent
	err := t.tx.QueryRow(ctx,
		`SELECT id, installment_id, amount, mode, paid_at, transaction_ref, remark, actor_id, recorded_at
		 FROM payment_events WHERE installment_id=$1 AND transaction_ref=$2 LIMIT 1`,
		installmentID, ref).Scan(&ev.ID, &ev.InstallmentID, &ev.Amount, &ev.Mode, &ev.PaidAt,
		&ev.TransactionRef, &ev.Remark, &ev.ActorID, &ev.RecordedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}
