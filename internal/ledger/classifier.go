package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Classify derives the effective status of an installment as perceived at
// asOf. PAID and CANCELLED are terminal and always win. A non-terminal entry
// whose due day has fully passed is OVERDUE regardless of the stored field;
// an entry due on asOf's calendar day keeps its stored status until the next
// day. The stored field may lag behind until the sweep job persists the
// transition. Classification never mutates the entry.
func Classify(inst Installment, asOf time.Time) Status {
	if inst.Status.Terminal() {
		return inst.Status
	}
	if inst.DueDate.Before(startOfDay(asOf)) {
		return StatusOverdue
	}
	return inst.Status
}

// startOfDay truncates t to midnight UTC. Due dates carry date resolution,
// so overdue comparisons run on day boundaries, not timestamps.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StatusFor is the pure status function over the money fields: PAID iff the
// total is fully covered, PARTIALLY_PAID iff strictly between zero and total,
// UNPAID otherwise. Cancellation overrides all of them.
func StatusFor(amountPaid, totalPayable decimal.Decimal, cancelled bool) Status {
	if cancelled {
		return StatusCancelled
	}
	switch {
	case amountPaid.Cmp(totalPayable) >= 0 && totalPayable.IsPositive():
		return StatusPaid
	case amountPaid.IsPositive():
		return StatusPartiallyPaid
	default:
		return StatusUnpaid
	}
}
