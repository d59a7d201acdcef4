package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates installment lifecycle states.
type Status string

const (
	StatusUnpaid        Status = "UNPAID"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusPaid          Status = "PAID"
	StatusOverdue       Status = "OVERDUE"
	StatusCancelled     Status = "CANCELLED"
)

// Terminal reports whether the status admits no further payments.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// Frequency enumerates supported schedule frequencies.
type Frequency string

const (
	FreqMonthly    Frequency = "MONTHLY"
	FreqQuarterly  Frequency = "QUARTERLY"
	FreqHalfYearly Frequency = "HALF_YEARLY"
	FreqYearly     Frequency = "YEARLY"
)

// monthsPerStep returns the month offset per installment step, 0 if unknown.
func (f Frequency) monthsPerStep() int {
	switch f {
	case FreqMonthly:
		return 1
	case FreqQuarterly:
		return 3
	case FreqHalfYearly:
		return 6
	case FreqYearly:
		return 12
	}
	return 0
}

// PaymentMode tags how a payment was made.
type PaymentMode string

const (
	ModeCash   PaymentMode = "cash"
	ModeCheque PaymentMode = "cheque"
	ModeOnline PaymentMode = "online"
	ModeOther  PaymentMode = "other"
)

// ValidMode reports whether the mode is one of the known tags.
func ValidMode(m PaymentMode) bool {
	switch m {
	case ModeCash, ModeCheque, ModeOnline, ModeOther:
		return true
	}
	return false
}

// Installment is one scheduled monetary obligation within a purchase file's
// payment plan. Money fields carry two-decimal fixed-point values.
type Installment struct {
	ID             int64     `json:"id"`
	FileID         int64     `json:"file_id"`
	MemberID       int64     `json:"member_id"`
	PlotID         int64     `json:"plot_id"`
	CategoryID     int64     `json:"category_id"`
	InstallmentNo  int       `json:"installment_no"`
	Title          string    `json:"title"`
	ObligationType string    `json:"obligation_type"`
	DueDate        time.Time `json:"due_date"`

	AmountDue        decimal.Decimal `json:"amount_due"`
	LateFeeSurcharge decimal.Decimal `json:"late_fee_surcharge"`
	TotalPayable     decimal.Decimal `json:"total_payable"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	BalanceAmount    decimal.Decimal `json:"balance_amount"`

	Status         Status      `json:"status"`
	PaidDate       *time.Time  `json:"paid_date,omitempty"`
	PaymentMode    PaymentMode `json:"payment_mode,omitempty"`
	TransactionRef string      `json:"transaction_ref,omitempty"`
	Remarks        string      `json:"remarks,omitempty"`

	CreatedBy  int64      `json:"created_by"`
	ModifiedBy int64      `json:"modified_by"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	IsDeleted  bool       `json:"is_deleted"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// PaymentEvent is one structured record in an installment's append-only
// payment log. Events are ordered by application time and never rewritten.
type PaymentEvent struct {
	ID             uuid.UUID       `json:"id"`
	InstallmentID  int64           `json:"installment_id"`
	Amount         decimal.Decimal `json:"amount"`
	Mode           PaymentMode     `json:"mode,omitempty"`
	PaidAt         time.Time       `json:"paid_at"`
	TransactionRef string          `json:"transaction_ref,omitempty"`
	Remark         string          `json:"remark,omitempty"`
	ActorID        int64           `json:"actor_id"`
	RecordedAt     time.Time       `json:"recorded_at"`
}

// GenerateInput parametrises bulk schedule generation.
type GenerateInput struct {
	FileID               int64
	MemberID             int64
	PlotID               int64
	CategoryID           int64
	StartDate            time.Time
	Frequency            Frequency
	Count                int
	AmountPerInstallment decimal.Decimal
	TitleTemplate        string
	ObligationType       string
	StartNo              int
	CreatedBy            int64
}

// ApplyPaymentInput parametrises payment application against one installment.
type ApplyPaymentInput struct {
	InstallmentID  int64
	Amount         decimal.Decimal
	PaidDate       time.Time
	Mode           PaymentMode
	TransactionRef string
	Remark         string
	ActorID        int64
}

// UpdateInput is an administrative patch. Nil pointers leave fields untouched.
type UpdateInput struct {
	Title            *string
	ObligationType   *string
	DueDate          *time.Time
	InstallmentNo    *int
	AmountDue        *decimal.Decimal
	LateFeeSurcharge *decimal.Decimal
	TransactionRef   *string
	Remarks          *string
	ModifiedBy       int64
}

// ListFilter narrows installment listings. Zero values mean "no filter".
type ListFilter struct {
	FileID         int64
	MemberID       int64
	PlotID         int64
	CategoryID     int64
	Status         Status
	DueFrom        time.Time
	DueTo          time.Time
	IncludeDeleted bool
	Page           int
	PerPage        int
}

var decimalZero = decimal.Zero

// round2 applies the two-decimal fixed-point rule used on every money write.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
