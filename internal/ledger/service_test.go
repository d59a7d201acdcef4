package ledger

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hillstead/hillstead/internal/refdata"
)

// memRepo is an in-memory RepositoryPort used to exercise the service
// without a database.
type memRepo struct {
	installments map[int64]*Installment
	events       []PaymentEvent
	nextID       int64
}

func newMemRepo() *memRepo {
	return &memRepo{installments: map[int64]*Installment{}}
}

func (r *memRepo) conflicts(inst Installment) bool {
	for _, ex := range r.installments {
		if !ex.IsDeleted && ex.ID != inst.ID &&
			ex.FileID == inst.FileID && ex.CategoryID == inst.CategoryID &&
			ex.InstallmentNo == inst.InstallmentNo {
			return true
		}
	}
	return false
}

func (r *memRepo) InsertBatch(ctx context.Context, drafts []Installment) ([]Installment, error) {
	created := make([]Installment, 0, len(drafts))
	for _, draft := range drafts {
		if r.conflicts(draft) {
			return nil, &DuplicateError{FileID: draft.FileID, CategoryID: draft.CategoryID, InstallmentNo: draft.InstallmentNo}
		}
		r.nextID++
		draft.ID = r.nextID
		created = append(created, draft)
	}
	for _, c := range created {
		cp := c
		r.installments[c.ID] = &cp
	}
	return created, nil
}

func (r *memRepo) Insert(ctx context.Context, draft Installment) (*Installment, error) {
	if r.conflicts(draft) {
		return nil, &DuplicateError{FileID: draft.FileID, CategoryID: draft.CategoryID, InstallmentNo: draft.InstallmentNo}
	}
	r.nextID++
	draft.ID = r.nextID
	cp := draft
	r.installments[draft.ID] = &cp
	return &draft, nil
}

func (r *memRepo) Get(ctx context.Context, id int64) (*Installment, error) {
	inst, ok := r.installments[id]
	if !ok {
		return nil, nil
	}
	cp := *inst
	return &cp, nil
}

func (r *memRepo) List(ctx context.Context, filter ListFilter) ([]Installment, int, error) {
	var entries []Installment
	for _, inst := range r.installments {
		if inst.IsDeleted && !filter.IncludeDeleted {
			continue
		}
		if filter.FileID != 0 && inst.FileID != filter.FileID {
			continue
		}
		if filter.MemberID != 0 && inst.MemberID != filter.MemberID {
			continue
		}
		if filter.CategoryID != 0 && inst.CategoryID != filter.CategoryID {
			continue
		}
		if filter.Status != "" && inst.Status != filter.Status {
			continue
		}
		entries = append(entries, *inst)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].DueDate.Equal(entries[j].DueDate) {
			return entries[i].DueDate.Before(entries[j].DueDate)
		}
		return entries[i].InstallmentNo < entries[j].InstallmentNo
	})
	return entries, len(entries), nil
}

func (r *memRepo) ExistsInstallmentNo(ctx context.Context, fileID, categoryID int64, no int, excludeID int64) (bool, error) {
	for _, inst := range r.installments {
		if !inst.IsDeleted && inst.ID != excludeID &&
			inst.FileID == fileID && inst.CategoryID == categoryID && inst.InstallmentNo == no {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) MaxInstallmentNo(ctx context.Context, fileID, categoryID int64) (int, error) {
	max := 0
	for _, inst := range r.installments {
		if !inst.IsDeleted && inst.FileID == fileID && inst.CategoryID == categoryID && inst.InstallmentNo > max {
			max = inst.InstallmentNo
		}
	}
	return max, nil
}

func (r *memRepo) ListEvents(ctx context.Context, installmentID int64) ([]PaymentEvent, error) {
	var events []PaymentEvent
	for _, ev := range r.events {
		if ev.InstallmentID == installmentID {
			events = append(events, ev)
		}
	}
	return events, nil
}

func (r *memRepo) InTx(ctx context.Context, fn func(tx TxPort) error) error {
	return fn(&memTx{repo: r})
}

func (r *memRepo) SweepOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	var swept int64
	for _, inst := range r.installments {
		if inst.IsDeleted {
			continue
		}
		if (inst.Status == StatusUnpaid || inst.Status == StatusPartiallyPaid) && inst.DueDate.Before(asOf) {
			inst.Status = StatusOverdue
			swept++
		}
	}
	return swept, nil
}

type memTx struct {
	repo *memRepo
}

func (t *memTx) GetForUpdate(ctx context.Context, id int64) (*Installment, error) {
	return t.repo.Get(ctx, id)
}

func (t *memTx) Update(ctx context.Context, inst *Installment) error {
	cp := *inst
	t.repo.installments[inst.ID] = &cp
	return nil
}

func (t *memTx) InsertEvent(ctx context.Context, event PaymentEvent) error {
	t.repo.events = append(t.repo.events, event)
	return nil
}

func (t *memTx) FindEventByRef(ctx context.Context, installmentID int64, ref string) (*PaymentEvent, error) {
	for _, ev := range t.repo.events {
		if ev.InstallmentID == installmentID && ev.TransactionRef == ref {
			cp := ev
			return &cp, nil
		}
	}
	return nil, nil
}

// memRefs serves a fixed set of reference records.
type memRefs struct {
	files      map[int64]*refdata.FileRef
	members    map[int64]*refdata.MemberRef
	plots      map[int64]*refdata.PlotRef
	categories map[int64]*refdata.CategoryRef
}

func newMemRefs() *memRefs {
	return &memRefs{
		files:      map[int64]*refdata.FileRef{1: {ID: 1, MemberID: 2, PlotID: 3}},
		members:    map[int64]*refdata.MemberRef{2: {ID: 2, IsActive: true}},
		plots:      map[int64]*refdata.PlotRef{3: {ID: 3}},
		categories: map[int64]*refdata.CategoryRef{4: {ID: 4, Name: "Plot Installment", IsActive: true}},
	}
}

func (m *memRefs) GetFile(ctx context.Context, id int64) (*refdata.FileRef, error) {
	if f, ok := m.files[id]; ok {
		return f, nil
	}
	return nil, refdata.ErrNotFound
}

func (m *memRefs) GetMember(ctx context.Context, id int64) (*refdata.MemberRef, error) {
	if r, ok := m.members[id]; ok {
		return r, nil
	}
	return nil, refdata.ErrNotFound
}

func (m *memRefs) GetPlot(ctx context.Context, id int64) (*refdata.PlotRef, error) {
	if p, ok := m.plots[id]; ok {
		return p, nil
	}
	return nil, refdata.ErrNotFound
}

func (m *memRefs) GetCategory(ctx context.Context, id int64) (*refdata.CategoryRef, error) {
	if c, ok := m.categories[id]; ok {
		return c, nil
	}
	return nil, refdata.ErrNotFound
}

func newTestService(t *testing.T) (*Service, *memRepo, *memRefs) {
	t.Helper()
	repo := newMemRepo()
	refs := newMemRefs()
	svc := NewService(repo, refs, nil)
	svc.nowFn = func() time.Time { return date(2025, time.June, 15) }
	return svc, repo, refs
}

func generateInput() GenerateInput {
	return GenerateInput{
		FileID:               1,
		MemberID:             2,
		PlotID:               3,
		CategoryID:           4,
		StartDate:            date(2025, time.July, 1),
		Frequency:            FreqMonthly,
		Count:                3,
		AmountPerInstallment: dec("1000"),
		CreatedBy:            9,
	}
}

func seedInstallment(t *testing.T, svc *Service, total string) *Installment {
	t.Helper()
	created, err := svc.CreateInstallment(context.Background(), Installment{
		FileID:        1,
		MemberID:      2,
		PlotID:        3,
		CategoryID:    4,
		InstallmentNo: 1,
		DueDate:       date(2025, time.July, 1),
		AmountDue:     dec(total),
		CreatedBy:     9,
	})
	require.NoError(t, err)
	return created
}

func TestGenerateSchedulePersistsBatch(t *testing.T) {
	svc, repo, _ := newTestService(t)

	created, err := svc.GenerateSchedule(context.Background(), generateInput())
	require.NoError(t, err)
	require.Len(t, created, 3)
	require.Len(t, repo.installments, 3)

	for i, inst := range created {
		require.NotZero(t, inst.ID)
		require.Equal(t, i+1, inst.InstallmentNo)
		require.Equal(t, StatusUnpaid, inst.Status)
		require.True(t, inst.BalanceAmount.Equal(dec("1000")))
	}
}

func TestGenerateScheduleContinuesNumbering(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GenerateSchedule(ctx, generateInput())
	require.NoError(t, err)

	more, err := svc.GenerateSchedule(ctx, generateInput())
	require.NoError(t, err)
	require.Equal(t, 4, more[0].InstallmentNo)
	require.Equal(t, 6, more[2].InstallmentNo)
}

func TestGenerateScheduleReferentialMismatch(t *testing.T) {
	svc, _, _ := newTestService(t)

	in := generateInput()
	in.PlotID = 99
	_, err := svc.GenerateSchedule(context.Background(), in)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "plot", nf.Entity)
}

func TestGenerateScheduleRejectsForeignPlot(t *testing.T) {
	svc, _, refs := newTestService(t)
	refs.plots[5] = &refdata.PlotRef{ID: 5}

	in := generateInput()
	in.PlotID = 5
	_, err := svc.GenerateSchedule(context.Background(), in)
	var mismatch *ReferentialMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestGenerateScheduleInactiveMember(t *testing.T) {
	svc, _, refs := newTestService(t)
	refs.members[2].IsActive = false

	_, err := svc.GenerateSchedule(context.Background(), generateInput())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "memberId", verr.Field)
}

func TestGenerateScheduleInactiveCategory(t *testing.T) {
	svc, _, refs := newTestService(t)
	refs.categories[4].IsActive = false

	_, err := svc.GenerateSchedule(context.Background(), generateInput())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "categoryId", verr.Field)
}

func TestCreateInstallmentComputesTotals(t *testing.T) {
	svc, _, _ := newTestService(t)

	created, err := svc.CreateInstallment(context.Background(), Installment{
		FileID:           1,
		MemberID:         2,
		PlotID:           3,
		CategoryID:       4,
		InstallmentNo:    1,
		DueDate:          date(2025, time.July, 1),
		AmountDue:        dec("1000"),
		LateFeeSurcharge: dec("50"),
	})
	require.NoError(t, err)
	require.True(t, created.TotalPayable.Equal(dec("1050")))
	require.True(t, created.BalanceAmount.Equal(dec("1050")))
	require.True(t, created.AmountPaid.IsZero())
	require.Equal(t, StatusUnpaid, created.Status)
}

func TestCreateInstallmentDuplicateNo(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedInstallment(t, svc, "1000")

	_, err := svc.CreateInstallment(context.Background(), Installment{
		FileID:        1,
		MemberID:      2,
		PlotID:        3,
		CategoryID:    4,
		InstallmentNo: 1,
		DueDate:       date(2025, time.August, 1),
		AmountDue:     dec("1000"),
	})
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, 1, dup.InstallmentNo)
}

func TestApplyPaymentPartialThenFull(t *testing.T) {
	svc, repo, _ := newTestService(t)
	inst := seedInstallment(t, svc, "1000")
	ctx := context.Background()

	after, err := svc.ApplyPayment(ctx, ApplyPaymentInput{
		InstallmentID: inst.ID,
		Amount:        dec("400"),
		Mode:          ModeCash,
		ActorID:       9,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyPaid, after.Status)
	require.True(t, after.AmountPaid.Equal(dec("400")))
	require.True(t, after.BalanceAmount.Equal(dec("600")))
	require.Nil(t, after.PaidDate)

	after, err = svc.ApplyPayment(ctx, ApplyPaymentInput{
		InstallmentID: inst.ID,
		Amount:        dec("600"),
		Mode:          ModeOnline,
		ActorID:       9,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, after.Status)
	require.True(t, after.BalanceAmount.IsZero())
	require.NotNil(t, after.PaidDate)

	events, err := repo.ListEvents(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.True(t, events[0].Amount.Equal(dec("400")))
	require.True(t, events[1].Amount.Equal(dec("600")))
	require.Equal(t, ModeOnline, events[1].Mode)
}

func TestApplyPaymentOverpaymentRejected(t *testing.T) {
	svc, repo, _ := newTestService(t)
	inst := seedInstallment(t, svc, "1000")
	ctx := context.Background()

	_, err := svc.ApplyPayment(ctx, ApplyPaymentInput{
		InstallmentID: inst.ID,
		Amount:        dec("300"),
		ActorID:       9,
	})
	require.NoError(t, err)

	_, err = svc.ApplyPayment(ctx, ApplyPaymentInput{
		InstallmentID: inst.ID,
		Amount:        dec("800"),
		ActorID:       9,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.NotNil(t, verr.MaxAllowed)
	require.True(t, verr.MaxAllowed.Equal(dec("700")), "got %s", verr.MaxAllowed)

	// The rejected payment left the entry untouched.
	stored := repo.installments[inst.ID]
	require.True(t, stored.AmountPaid.Equal(dec("300")))
	require.Equal(t, StatusPartiallyPaid, stored.Status)
	events, err := repo.ListEvents(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestApplyPaymentOnTerminalStates(t *testing.T) {
	svc, _, _ := newTestService(t)
	inst := seedInstallment(t, svc, "500")
	ctx := context.Background()

	_, err := svc.ApplyPayment(ctx, ApplyPaymentInput{InstallmentID: inst.ID, Amount: dec("500"), ActorID: 9})
	require.NoError(t, err)

	_, err = svc.ApplyPayment(ctx, ApplyPaymentInput{InstallmentID: inst.ID, Amount: dec("1"), ActorID: 9})
	var invalid *InvalidStateError
	require.ErrorAs(t, err, &invalid)

	cancelled, err := svc.CreateInstallment(ctx, Installment{
		FileID:        1,
		MemberID:      2,
		PlotID:        3,
		CategoryID:    4,
		InstallmentNo: 2,
		DueDate:       date(2025, time.August, 1),
		AmountDue:     dec("500"),
	})
	require.NoError(t, err)
	require.NoError(t, svc.SoftDelete(ctx, cancelled.ID, 9))

	_, err = svc.ApplyPayment(ctx, ApplyPaymentInput{InstallmentID: cancelled.ID, Amount: dec("1"), ActorID: 9})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestApplyPaymentDuplicateRefIsIdempotent(t *testing.T) {
	svc, repo, _ := newTestService(t)
	inst := seedInstallment(t, svc, "1000")
	ctx := context.Background()

	in := ApplyPaymentInput{
		InstallmentID:  inst.ID,
		Amount:         dec("400"),
		Mode:           ModeOnline,
		TransactionRef: "TX-100",
		ActorID:        9,
	}
	first, err := svc.ApplyPayment(ctx, in)
	require.NoError(t, err)
	require.True(t, first.AmountPaid.Equal(dec("400")))

	second, err := svc.ApplyPayment(ctx, in)
	require.NoError(t, err)
	require.True(t, second.AmountPaid.Equal(dec("400")))

	events, err := repo.ListEvents(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestApplyPaymentValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	inst := seedInstallment(t, svc, "1000")
	ctx := context.Background()

	var verr *ValidationError
	_, err := svc.ApplyPayment(ctx, ApplyPaymentInput{InstallmentID: inst.ID, Amount: dec("0")})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "paymentAmount", verr.Field)

	_, err = svc.ApplyPayment(ctx, ApplyPaymentInput{InstallmentID: inst.ID, Amount: dec("-5")})
	require.ErrorAs(t, err, &verr)

	_, err = svc.ApplyPayment(ctx, ApplyPaymentInput{InstallmentID: inst.ID, Amount: dec("10"), Mode: "barter"})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "paymentMode", verr.Field)
}

func TestUpdateRecomputesMoney(t *testing.T) {
	svc, _, _ := newTestService(t)
	inst := seedInstallment(t, svc, "1000")

	surcharge := dec("50")
	updated, err := svc.UpdateInstallment(context.Background(), inst.ID, UpdateInput{
		LateFeeSurcharge: &surcharge,
		ModifiedBy:       9,
	})
	require.NoError(t, err)
	require.True(t, updated.TotalPayable.Equal(dec("1050")))
	require.True(t, updated.BalanceAmount.Equal(dec("1050")))
	require.Equal(t, StatusUnpaid, updated.Status)
}

func TestUpdateRejectsTotalBelowPaid(t *testing.T) {
	svc, _, _ := newTestService(t)
	inst := seedInstallment(t, svc, "1000")
	ctx := context.Background()

	_, err := svc.ApplyPayment(ctx, ApplyPaymentInput{InstallmentID: inst.ID, Amount: dec("500"), ActorID: 9})
	require.NoError(t, err)

	lowered := dec("300")
	_, err = svc.UpdateInstallment(ctx, inst.ID, UpdateInput{AmountDue: &lowered, ModifiedBy: 9})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "totalPayable", verr.Field)
}

func TestUpdatePaidAllowsRemarksOnly(t *testing.T) {
	svc, _, _ := newTestService(t)
	inst := seedInstallment(t, svc, "500")
	ctx := context.Background()

	_, err := svc.ApplyPayment(ctx, ApplyPaymentInput{InstallmentID: inst.ID, Amount: dec("500"), ActorID: 9})
	require.NoError(t, err)

	remarks := "settled at front desk"
	ref := "CHQ-881"
	updated, err := svc.UpdateInstallment(ctx, inst.ID, UpdateInput{
		Remarks:        &remarks,
		TransactionRef: &ref,
		ModifiedBy:     9,
	})
	require.NoError(t, err)
	require.Equal(t, remarks, updated.Remarks)
	require.Equal(t, ref, updated.TransactionRef)

	amount := dec("600")
	_, err = svc.UpdateInstallment(ctx, inst.ID, UpdateInput{AmountDue: &amount, ModifiedBy: 9})
	var locked *ImmutableStateError
	require.ErrorAs(t, err, &locked)
	require.Equal(t, "amountDue", locked.Field)
}

func TestUpdateInstallmentNoDuplicate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GenerateSchedule(ctx, generateInput())
	require.NoError(t, err)

	no := 2
	_, err = svc.UpdateInstallment(ctx, 1, UpdateInput{InstallmentNo: &no, ModifiedBy: 9})
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
}

func TestSoftDeleteCancels(t *testing.T) {
	svc, repo, _ := newTestService(t)
	inst := seedInstallment(t, svc, "1000")
	ctx := context.Background()

	require.NoError(t, svc.SoftDelete(ctx, inst.ID, 9))

	stored := repo.installments[inst.ID]
	require.True(t, stored.IsDeleted)
	require.NotNil(t, stored.DeletedAt)
	require.Equal(t, StatusCancelled, stored.Status)

	// Deleting again reports not found.
	err := svc.SoftDelete(ctx, inst.ID, 9)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestSoftDeletePaidForbidden(t *testing.T) {
	svc, _, _ := newTestService(t)
	inst := seedInstallment(t, svc, "500")
	ctx := context.Background()

	_, err := svc.ApplyPayment(ctx, ApplyPaymentInput{InstallmentID: inst.ID, Amount: dec("500"), ActorID: 9})
	require.NoError(t, err)

	err = svc.SoftDelete(ctx, inst.ID, 9)
	var invalid *InvalidStateError
	require.ErrorAs(t, err, &invalid)
}

func TestSoftDeleteFreesInstallmentNo(t *testing.T) {
	svc, _, _ := newTestService(t)
	inst := seedInstallment(t, svc, "1000")
	ctx := context.Background()

	require.NoError(t, svc.SoftDelete(ctx, inst.ID, 9))

	again, err := svc.CreateInstallment(ctx, Installment{
		FileID:        1,
		MemberID:      2,
		PlotID:        3,
		CategoryID:    4,
		InstallmentNo: 1,
		DueDate:       date(2025, time.September, 1),
		AmountDue:     dec("1000"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, again.InstallmentNo)
}

func TestSweepOverdueIsIdempotent(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	in := generateInput()
	in.StartDate = date(2025, time.April, 1)
	created, err := svc.GenerateSchedule(ctx, in)
	require.NoError(t, err)

	// Due dates: Apr 1, May 1, Jun 1 against a sweep cutoff of Jun 15.
	swept, err := svc.SweepOverdue(ctx, time.Time{})
	require.NoError(t, err)
	require.Equal(t, int64(3), swept)

	for _, inst := range created {
		require.Equal(t, StatusOverdue, repo.installments[inst.ID].Status)
	}

	swept, err = svc.SweepOverdue(ctx, time.Time{})
	require.NoError(t, err)
	require.Zero(t, swept)
}

func TestSweepOverdueSkipsDueToday(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	past, err := svc.CreateInstallment(ctx, Installment{
		FileID:        1,
		MemberID:      2,
		PlotID:        3,
		CategoryID:    4,
		InstallmentNo: 1,
		DueDate:       date(2025, time.June, 14),
		AmountDue:     dec("1000"),
	})
	require.NoError(t, err)
	today, err := svc.CreateInstallment(ctx, Installment{
		FileID:        1,
		MemberID:      2,
		PlotID:        3,
		CategoryID:    4,
		InstallmentNo: 2,
		DueDate:       date(2025, time.June, 15),
		AmountDue:     dec("1000"),
	})
	require.NoError(t, err)

	// A half-past-midnight cutoff on June 15 sweeps only the entry whose
	// due day has fully passed.
	swept, err := svc.SweepOverdue(ctx, time.Date(2025, time.June, 15, 0, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, int64(1), swept)
	require.Equal(t, StatusOverdue, repo.installments[past.ID].Status)
	require.Equal(t, StatusUnpaid, repo.installments[today.ID].Status)
}

func TestUpdateKeepsSweptOverdue(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	inst, err := svc.CreateInstallment(ctx, Installment{
		FileID:        1,
		MemberID:      2,
		PlotID:        3,
		CategoryID:    4,
		InstallmentNo: 1,
		DueDate:       date(2025, time.April, 1),
		AmountDue:     dec("1000"),
	})
	require.NoError(t, err)

	swept, err := svc.SweepOverdue(ctx, time.Time{})
	require.NoError(t, err)
	require.Equal(t, int64(1), swept)

	// Money recomputation must not regress the persisted OVERDUE mark.
	surcharge := dec("50")
	updated, err := svc.UpdateInstallment(ctx, inst.ID, UpdateInput{
		LateFeeSurcharge: &surcharge,
		ModifiedBy:       9,
	})
	require.NoError(t, err)
	require.True(t, updated.TotalPayable.Equal(dec("1050")))
	require.Equal(t, StatusOverdue, updated.Status)
	require.Equal(t, StatusOverdue, repo.installments[inst.ID].Status)

	// Rescheduling past the current day clears the mark.
	future := date(2025, time.August, 1)
	updated, err = svc.UpdateInstallment(ctx, inst.ID, UpdateInput{DueDate: &future, ModifiedBy: 9})
	require.NoError(t, err)
	require.Equal(t, StatusUnpaid, updated.Status)
}

func TestApplyPaymentRefReuseWithDifferentAmount(t *testing.T) {
	svc, repo, _ := newTestService(t)
	inst := seedInstallment(t, svc, "1000")
	ctx := context.Background()

	_, err := svc.ApplyPayment(ctx, ApplyPaymentInput{
		InstallmentID:  inst.ID,
		Amount:         dec("400"),
		Mode:           ModeOnline,
		TransactionRef: "TX-100",
		ActorID:        9,
	})
	require.NoError(t, err)

	_, err = svc.ApplyPayment(ctx, ApplyPaymentInput{
		InstallmentID:  inst.ID,
		Amount:         dec("500"),
		TransactionRef: "TX-100",
		ActorID:        9,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "transactionRefNo", verr.Field)

	// The rejected reuse left the entry and the event log untouched.
	stored := repo.installments[inst.ID]
	require.True(t, stored.AmountPaid.Equal(dec("400")))
	events, err := repo.ListEvents(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestListInstallmentsFilters(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GenerateSchedule(ctx, generateInput())
	require.NoError(t, err)

	entries, page, err := svc.ListInstallments(ctx, ListFilter{FileID: 1, Page: 1, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, 3, page.Total)

	entries, _, err = svc.ListInstallments(ctx, ListFilter{Status: StatusPaid})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestGetInstallmentNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetInstallment(context.Background(), 42)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, int64(42), nf.ID)
}

func TestListPaymentEventsRequiresInstallment(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.ListPaymentEvents(context.Background(), 42)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}
