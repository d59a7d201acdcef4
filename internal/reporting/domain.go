// Package reporting is the read side of the installment ledger: grouped
// summaries, the dashboard snapshot and period reports. It never mutates
// ledger data.
package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hillstead/hillstead/internal/ledger"
)

// Filter narrows the entry set an aggregation runs over. Zero values mean
// "no filter".
type Filter struct {
	MemberID   int64
	FileID     int64
	PlotID     int64
	CategoryID int64
	Status     ledger.Status
	From       time.Time
	To         time.Time
}

// EntryView is a ledger entry joined with reference display names. The join
// is assembled read-side; the ledger store stays normalized.
type EntryView struct {
	ledger.Installment
	MemberName   string `json:"member_name"`
	CategoryName string `json:"category_name"`
}

// PaymentView is a payment event joined with its installment's member.
type PaymentView struct {
	ledger.PaymentEvent
	MemberID   int64  `json:"member_id"`
	MemberName string `json:"member_name"`
}

// MoneyTotal accumulates counts and money sums for one grouping bucket.
type MoneyTotal struct {
	Count        int             `json:"count"`
	TotalPayable decimal.Decimal `json:"total_payable"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
	Balance      decimal.Decimal `json:"balance"`
}

// StatusBucket groups totals by effective status.
type StatusBucket struct {
	Status ledger.Status `json:"status"`
	MoneyTotal
}

// CategoryBucket groups totals by obligation category.
type CategoryBucket struct {
	CategoryID   int64  `json:"category_id"`
	CategoryName string `json:"category_name"`
	MoneyTotal
}

// MonthBucket groups totals by due month (YYYY-MM).
type MonthBucket struct {
	Month string `json:"month"`
	MoneyTotal
}

// DayBucket groups totals by due day (YYYY-MM-DD).
type DayBucket struct {
	Day string `json:"day"`
	MoneyTotal
}

// MemberSummary is the per-member roll-up.
type MemberSummary struct {
	MemberID   int64            `json:"member_id"`
	ByStatus   []StatusBucket   `json:"by_status"`
	ByCategory []CategoryBucket `json:"by_category"`
	ByDueMonth []MonthBucket    `json:"by_due_month"`
}

// PayerTotal ranks a member by lifetime amount paid.
type PayerTotal struct {
	MemberID   int64           `json:"member_id"`
	MemberName string          `json:"member_name"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
}

// Dashboard is the cross-cutting snapshot.
type Dashboard struct {
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	CollectedToday   decimal.Decimal `json:"collected_today"`
	DueToday         decimal.Decimal `json:"due_today"`
	OverdueTotal     decimal.Decimal `json:"overdue_total"`
	OverdueCount     int             `json:"overdue_count"`
	RecentPayments   []PaymentView   `json:"recent_payments"`
	UpcomingDues     []EntryView     `json:"upcoming_dues"`
	TopPayers        []PayerTotal    `json:"top_payers"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// PeriodReport returns matching entries plus grouped totals for a date range.
type PeriodReport struct {
	From       time.Time        `json:"from"`
	To         time.Time        `json:"to"`
	Entries    []EntryView      `json:"entries"`
	ByDay      []DayBucket      `json:"by_day"`
	ByCategory []CategoryBucket `json:"by_category"`
	ByStatus   []StatusBucket   `json:"by_status"`
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	MemberID int64
	From     time.Time
	To       time.Time
}
