package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hillstead/hillstead/internal/refdata"
	"github.com/hillstead/hillstead/internal/shared"
)

// AuditRecorder persists administrative audit records. A nil recorder
// disables auditing.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns all installment mutations: schedule generation, single
// creation, administrative updates, payment application and soft deletion.
type Service struct {
	repo  RepositoryPort
	refs  refdata.LookupPort
	audit AuditRecorder
	nowFn func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, refs refdata.LookupPort, audit AuditRecorder) *Service {
	return &Service{repo: repo, refs: refs, audit: audit, nowFn: time.Now}
}

// GenerateSchedule validates the references, computes the drafts and persists
// them in a single atomic batch. Sequence numbers continue from the highest
// existing number in the (file, category) scope.
func (s *Service) GenerateSchedule(ctx context.Context, in GenerateInput) ([]Installment, error) {
	if err := s.checkReferences(ctx, in.FileID, in.MemberID, in.PlotID, in.CategoryID); err != nil {
		return nil, err
	}

	maxNo, err := s.repo.MaxInstallmentNo(ctx, in.FileID, in.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("ledger: max installment no: %w", err)
	}
	in.StartNo = maxNo + 1

	drafts, err := GenerateSchedule(in)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.InsertBatch(ctx, drafts)
	if err != nil {
		return nil, err
	}
	s.record(ctx, in.CreatedBy, "ledger.schedule.generate", "purchase_file", in.FileID, map[string]any{
		"category_id": in.CategoryID,
		"count":       in.Count,
		"frequency":   string(in.Frequency),
	})
	return created, nil
}

// CreateInstallment persists one draft, enforcing sequence uniqueness within
// its (file, category) scope.
func (s *Service) CreateInstallment(ctx context.Context, draft Installment) (*Installment, error) {
	if err := s.checkReferences(ctx, draft.FileID, draft.MemberID, draft.PlotID, draft.CategoryID); err != nil {
		return nil, err
	}
	if draft.InstallmentNo < 1 {
		return nil, &ValidationError{Field: "installmentNo", Detail: "must be a positive integer"}
	}
	if draft.AmountDue.IsNegative() || draft.LateFeeSurcharge.IsNegative() {
		return nil, &ValidationError{Field: "amountDue", Detail: "money fields must not be negative"}
	}
	if draft.DueDate.IsZero() {
		return nil, &ValidationError{Field: "dueDate", Detail: "is required"}
	}

	exists, err := s.repo.ExistsInstallmentNo(ctx, draft.FileID, draft.CategoryID, draft.InstallmentNo, 0)
	if err != nil {
		return nil, fmt.Errorf("ledger: uniqueness check: %w", err)
	}
	if exists {
		return nil, &DuplicateError{FileID: draft.FileID, CategoryID: draft.CategoryID, InstallmentNo: draft.InstallmentNo}
	}

	now := s.nowFn()
	draft.AmountDue = round2(draft.AmountDue)
	draft.LateFeeSurcharge = round2(draft.LateFeeSurcharge)
	draft.TotalPayable = draft.AmountDue.Add(draft.LateFeeSurcharge)
	draft.AmountPaid = decimalZero
	draft.BalanceAmount = draft.TotalPayable
	draft.Status = StatusUnpaid
	draft.CreatedAt = now
	draft.UpdatedAt = now
	draft.ModifiedBy = draft.CreatedBy

	created, err := s.repo.Insert(ctx, draft)
	if err != nil {
		return nil, err
	}
	s.record(ctx, draft.CreatedBy, "ledger.installment.create", "installment", created.ID, nil)
	return created, nil
}

// GetInstallment fetches one entry.
func (s *Service) GetInstallment(ctx context.Context, id int64) (*Installment, error) {
	inst, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, &NotFoundError{Entity: "installment", ID: id}
	}
	return inst, nil
}

// ListInstallments returns entries matching the filter with pagination
// metadata.
func (s *Service) ListInstallments(ctx context.Context, filter ListFilter) ([]Installment, shared.Pagination, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return entries, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// ListPaymentEvents returns an installment's ordered payment log.
func (s *Service) ListPaymentEvents(ctx context.Context, installmentID int64) ([]PaymentEvent, error) {
	if _, err := s.GetInstallment(ctx, installmentID); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, installmentID)
}

// paidAllowList names the only fields editable once an installment is PAID.
var paidAllowList = map[string]bool{"remarks": true, "transactionRefNo": true}

// UpdateInstallment applies an administrative patch. Money recomputation
// keeps totalPayable = amountDue + lateFeeSurcharge and balance >= 0; a PAID
// entry accepts only the allow-listed fields.
func (s *Service) UpdateInstallment(ctx context.Context, id int64, patch UpdateInput) (*Installment, error) {
	var updated *Installment
	err := s.repo.InTx(ctx, func(tx TxPort) error {
		inst, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inst == nil || inst.IsDeleted {
			return &NotFoundError{Entity: "installment", ID: id}
		}

		if inst.Status == StatusPaid {
			if field := lockedField(patch); field != "" {
				return &ImmutableStateError{Field: field}
			}
		}

		if patch.Title != nil {
			inst.Title = *patch.Title
		}
		if patch.ObligationType != nil {
			inst.ObligationType = *patch.ObligationType
		}
		if patch.DueDate != nil {
			if patch.DueDate.IsZero() {
				return &ValidationError{Field: "dueDate", Detail: "must not be zero"}
			}
			inst.DueDate = *patch.DueDate
			// A swept OVERDUE mark no longer applies once the entry is
			// rescheduled to today or later.
			if inst.Status == StatusOverdue && !inst.DueDate.Before(startOfDay(s.nowFn())) {
				inst.Status = StatusFor(inst.AmountPaid, inst.TotalPayable, false)
			}
		}
		if patch.TransactionRef != nil {
			inst.TransactionRef = *patch.TransactionRef
		}
		if patch.Remarks != nil {
			inst.Remarks = *patch.Remarks
		}

		if patch.InstallmentNo != nil && *patch.InstallmentNo != inst.InstallmentNo {
			if *patch.InstallmentNo < 1 {
				return &ValidationError{Field: "installmentNo", Detail: "must be a positive integer"}
			}
			exists, err := s.repo.ExistsInstallmentNo(ctx, inst.FileID, inst.CategoryID, *patch.InstallmentNo, inst.ID)
			if err != nil {
				return fmt.Errorf("ledger: uniqueness check: %w", err)
			}
			if exists {
				return &DuplicateError{FileID: inst.FileID, CategoryID: inst.CategoryID, InstallmentNo: *patch.InstallmentNo}
			}
			inst.InstallmentNo = *patch.InstallmentNo
		}

		if patch.AmountDue != nil || patch.LateFeeSurcharge != nil {
			amountDue := inst.AmountDue
			surcharge := inst.LateFeeSurcharge
			if patch.AmountDue != nil {
				amountDue = round2(*patch.AmountDue)
			}
			if patch.LateFeeSurcharge != nil {
				surcharge = round2(*patch.LateFeeSurcharge)
			}
			if amountDue.IsNegative() || surcharge.IsNegative() {
				return &ValidationError{Field: "amountDue", Detail: "money fields must not be negative"}
			}
			total := amountDue.Add(surcharge)
			balance := total.Sub(inst.AmountPaid)
			if balance.IsNegative() {
				return &ValidationError{
					Field:  "totalPayable",
					Detail: fmt.Sprintf("new total %s is below the amount already paid %s", total, inst.AmountPaid),
				}
			}
			status := StatusFor(inst.AmountPaid, total, false)
			// A swept OVERDUE mark survives money recomputation while the
			// entry is still past due and not fully covered.
			if inst.Status == StatusOverdue && status != StatusPaid && inst.DueDate.Before(startOfDay(s.nowFn())) {
				status = StatusOverdue
			}
			inst.AmountDue = amountDue
			inst.LateFeeSurcharge = surcharge
			inst.TotalPayable = total
			inst.BalanceAmount = balance
			inst.Status = status
		}

		inst.ModifiedBy = patch.ModifiedBy
		inst.UpdatedAt = s.nowFn()
		if err := tx.Update(ctx, inst); err != nil {
			return err
		}
		updated = inst
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, patch.ModifiedBy, "ledger.installment.update", "installment", id, nil)
	return updated, nil
}

// lockedField returns the first patched field outside the PAID allow-list.
func lockedField(patch UpdateInput) string {
	switch {
	case patch.Title != nil:
		return "title"
	case patch.ObligationType != nil:
		return "obligationType"
	case patch.DueDate != nil:
		return "dueDate"
	case patch.InstallmentNo != nil:
		return "installmentNo"
	case patch.AmountDue != nil:
		return "amountDue"
	case patch.LateFeeSurcharge != nil:
		return "lateFeeSurcharge"
	}
	return ""
}

// ApplyPayment applies one payment to an installment, recomputing balance and
// status and appending a structured event to the payment log. A repeated
// submission carrying an already-seen transaction reference and the same
// amount returns the stored entry unchanged instead of double-applying.
func (s *Service) ApplyPayment(ctx context.Context, in ApplyPaymentInput) (*Installment, error) {
	if !in.Amount.IsPositive() {
		return nil, &ValidationError{Field: "paymentAmount", Detail: "must be greater than zero"}
	}
	if in.Mode != "" && !ValidMode(in.Mode) {
		return nil, &ValidationError{Field: "paymentMode", Detail: fmt.Sprintf("unknown mode %q", in.Mode)}
	}

	var result *Installment
	err := s.repo.InTx(ctx, func(tx TxPort) error {
		inst, err := tx.GetForUpdate(ctx, in.InstallmentID)
		if err != nil {
			return err
		}
		if inst == nil || inst.IsDeleted {
			return &NotFoundError{Entity: "installment", ID: in.InstallmentID}
		}
		switch inst.Status {
		case StatusPaid:
			return &InvalidStateError{Detail: "already fully paid"}
		case StatusCancelled:
			return &InvalidStateError{Detail: "cannot pay a cancelled obligation"}
		}

		if in.TransactionRef != "" {
			prior, err := tx.FindEventByRef(ctx, inst.ID, in.TransactionRef)
			if err != nil {
				return err
			}
			if prior != nil {
				// Only a true replay is idempotent; a different payment
				// reusing the reference must be rejected, not swallowed.
				if !prior.Amount.Equal(round2(in.Amount)) {
					return &ValidationError{
						Field:  "transactionRefNo",
						Detail: fmt.Sprintf("reference %q was already used for a payment of %s", in.TransactionRef, prior.Amount.StringFixed(2)),
					}
				}
				result = inst
				return nil
			}
		}

		amount := round2(in.Amount)
		newPaid := inst.AmountPaid.Add(amount)
		if newPaid.Cmp(inst.TotalPayable) > 0 {
			max := inst.TotalPayable.Sub(inst.AmountPaid)
			return &ValidationError{
				Field:      "paymentAmount",
				Detail:     fmt.Sprintf("payment of %s exceeds remaining balance; maximum allowed is %s", amount, max),
				MaxAllowed: &max,
			}
		}

		now := s.nowFn()
		paidDate := in.PaidDate
		if paidDate.IsZero() {
			paidDate = now
		}

		inst.AmountPaid = newPaid
		inst.BalanceAmount = inst.TotalPayable.Sub(newPaid)
		inst.Status = StatusFor(newPaid, inst.TotalPayable, false)
		if inst.Status == StatusPaid {
			inst.BalanceAmount = decimal.Zero
			if inst.PaidDate == nil {
				inst.PaidDate = &paidDate
			}
		}
		if in.Mode != "" {
			inst.PaymentMode = in.Mode
		}
		if in.TransactionRef != "" {
			inst.TransactionRef = in.TransactionRef
		}
		inst.Remarks = appendRemark(inst.Remarks, paymentRemark(amount, in.Mode, paidDate, in.Remark))
		inst.ModifiedBy = in.ActorID
		inst.UpdatedAt = now

		if err := tx.Update(ctx, inst); err != nil {
			return err
		}
		if err := tx.InsertEvent(ctx, PaymentEvent{
			ID:             uuid.New(),
			InstallmentID:  inst.ID,
			Amount:         amount,
			Mode:           in.Mode,
			PaidAt:         paidDate,
			TransactionRef: in.TransactionRef,
			Remark:         in.Remark,
			ActorID:        in.ActorID,
			RecordedAt:     now,
		}); err != nil {
			return err
		}
		result = inst
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, in.ActorID, "ledger.installment.pay", "installment", in.InstallmentID, map[string]any{
		"amount": in.Amount.StringFixed(2),
		"mode":   string(in.Mode),
	})
	return result, nil
}

// SoftDelete cancels an installment and marks it deleted. PAID entries cannot
// be deleted.
func (s *Service) SoftDelete(ctx context.Context, id int64, actorID int64) error {
	err := s.repo.InTx(ctx, func(tx TxPort) error {
		inst, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inst == nil || inst.IsDeleted {
			return &NotFoundError{Entity: "installment", ID: id}
		}
		if inst.Status == StatusPaid {
			return &InvalidStateError{Detail: "a paid installment cannot be deleted"}
		}
		now := s.nowFn()
		inst.IsDeleted = true
		inst.DeletedAt = &now
		inst.Status = StatusCancelled
		inst.ModifiedBy = actorID
		inst.UpdatedAt = now
		return tx.Update(ctx, inst)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "ledger.installment.delete", "installment", id, nil)
	return nil
}

// SweepOverdue persists the OVERDUE overlay for entries whose due day has
// fully passed as of asOf; entries due on asOf's calendar day are left alone.
// Re-running the sweep changes nothing once applied.
func (s *Service) SweepOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	if asOf.IsZero() {
		asOf = s.nowFn()
	}
	return s.repo.SweepOverdue(ctx, startOfDay(asOf))
}

// checkReferences enforces the generation preconditions against the
// reference lookup adapter.
func (s *Service) checkReferences(ctx context.Context, fileID, memberID, plotID, categoryID int64) error {
	file, err := s.refs.GetFile(ctx, fileID)
	if err != nil {
		return refErr(err, "purchase file", fileID)
	}
	if file.IsDeleted {
		return &NotFoundError{Entity: "purchase file", ID: fileID}
	}
	member, err := s.refs.GetMember(ctx, memberID)
	if err != nil {
		return refErr(err, "member", memberID)
	}
	if member.IsDeleted || !member.IsActive {
		return &ValidationError{Field: "memberId", Detail: fmt.Sprintf("member %d is not active", memberID)}
	}
	plot, err := s.refs.GetPlot(ctx, plotID)
	if err != nil {
		return refErr(err, "plot", plotID)
	}
	if plot.IsDeleted {
		return &NotFoundError{Entity: "plot", ID: plotID}
	}
	if file.PlotID != plotID {
		return &ReferentialMismatchError{Detail: fmt.Sprintf("file %d is tied to plot %d, not %d", fileID, file.PlotID, plotID)}
	}
	if file.MemberID != memberID {
		return &ReferentialMismatchError{Detail: fmt.Sprintf("file %d belongs to member %d, not %d", fileID, file.MemberID, memberID)}
	}
	category, err := s.refs.GetCategory(ctx, categoryID)
	if err != nil {
		return refErr(err, "obligation category", categoryID)
	}
	if !category.IsActive {
		return &ValidationError{Field: "categoryId", Detail: fmt.Sprintf("category %d is not active", categoryID)}
	}
	return nil
}

func refErr(err error, entity string, id int64) error {
	if errors.Is(err, refdata.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return fmt.Errorf("ledger: lookup %s %d: %w", entity, id, err)
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
		At:       s.nowFn(),
	})
}

func paymentRemark(amount decimal.Decimal, mode PaymentMode, paidAt time.Time, remark string) string {
	line := fmt.Sprintf("[%s] payment %s", paidAt.Format("2006-01-02"), amount.StringFixed(2))
	if mode != "" {
		line += " via " + string(mode)
	}
	if remark != "" {
		line += ": " + remark
	}
	return line
}

func appendRemark(existing, line string) string {
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}
