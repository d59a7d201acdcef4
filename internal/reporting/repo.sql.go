package reporting

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed read access for reporting. Display
// names come from read-time joins against the reference tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryViewSQL = `SELECT
i.id, i.file_id, i.member_id, i.plot_id, i.category_id, i.installment_no,
i.title, i.obligation_type, i.due_date,
i.amount_due, i.late_fee_surcharge, i.total_payable, i.amount_paid, i.balance_amount,
i.status, i.paid_date, i.payment_mode, i.transaction_ref, i.remarks,
i.created_by, i.modified_by, i.created_at, i.updated_at, i.is_deleted, i.deleted_at,
COALESCE(m.name, ''), COALESCE(c.name, '')
FROM installments i
LEFT JOIN members m ON m.id = i.member_id
LEFT JOIN obligation_categories c ON c.id = i.category_id`

// ListEntries returns non-deleted entries matching the filter.
func (r *Repository) ListEntries(ctx context.Context, filter Filter) ([]EntryView, error) {
	conds := []string{"NOT i.is_deleted"}
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.MemberID != 0 {
		add("i.member_id=$%d", filter.MemberID)
	}
	if filter.FileID != 0 {
		add("i.file_id=$%d", filter.FileID)
	}
	if filter.PlotID != 0 {
		add("i.plot_id=$%d", filter.PlotID)
	}
	if filter.CategoryID != 0 {
		add("i.category_id=$%d", filter.CategoryID)
	}
	if filter.Status != "" {
		add("i.status=$%d", filter.Status)
	}
	if !filter.From.IsZero() {
		add("i.due_date >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("i.due_date <= $%d", filter.To)
	}

	query := entryViewSQL + " WHERE " + strings.Join(conds, " AND ") + " ORDER BY i.due_date, i.installment_no"
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []EntryView
	for rows.Next() {
		var e EntryView
		if err := rows.Scan(
			&e.ID, &e.FileID, &e.MemberID, &e.PlotID, &e.CategoryID, &e.InstallmentNo,
			&e.Title, &e.ObligationType, &e.DueDate,
			&e.AmountDue, &e.LateFeeSurcharge, &e.TotalPayable, &e.AmountPaid, &e.BalanceAmount,
			&e.Status, &e.PaidDate, &e.PaymentMode, &e.TransactionRef, &e.Remarks,
			&e.CreatedBy, &e.ModifiedBy, &e.CreatedAt, &e.UpdatedAt, &e.IsDeleted, &e.DeletedAt,
			&e.MemberName, &e.CategoryName,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListPayments returns payment events matching the filter, joined with the
// owning installment's member.
func (r *Repository) ListPayments(ctx context.Context, filter PaymentFilter) ([]PaymentView, error) {
	conds := []string{"TRUE"}
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.MemberID != 0 {
		add("i.member_id=$%d", filter.MemberID)
	}
	if !filter.From.IsZero() {
		add("p.paid_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("p.paid_at <= $%d", filter.To)
	}

	query := `SELECT p.id, p.installment_id, p.amount, p.mode, p.paid_at, p.transaction_ref, p.remark, p.actor_id, p.recorded_at,
i.member_id, COALESCE(m.name, '')
FROM payment_events p
JOIN installments i ON i.id = p.installment_id
LEFT JOIN members m ON m.id = i.member_id
WHERE ` + strings.Join(conds, " AND ") + " ORDER BY p.recorded_at DESC, p.id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []PaymentView
	for rows.Next() {
		var p PaymentView
		if err := rows.Scan(&p.ID, &p.InstallmentID, &p.Amount, &p.Mode, &p.PaidAt,
			&p.TransactionRef, &p.Remark, &p.ActorID, &p.RecordedAt,
			&p.MemberID, &p.MemberName); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}
