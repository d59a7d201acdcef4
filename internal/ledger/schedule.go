package ledger

import (
	"fmt"
	"strings"
	"time"
)

// GenerateSchedule computes a sequence of unsaved installment drafts from a
// start date, frequency, count and per-installment amount. It performs no I/O;
// reference validation and persistence belong to the Service.
//
// Due date for the i-th installment (1-based) is the start date shifted by
// (i-1) frequency steps. Month arithmetic clamps to the end of the target
// month: a schedule anchored on Jan 31 falls due Feb 28 (29 in leap years),
// Mar 31, Apr 30 and so on. The anchor day is taken from the start date each
// step, so clamping in one month does not shorten later months.
func GenerateSchedule(in GenerateInput) ([]Installment, error) {
	if in.Count < 1 {
		return nil, &ValidationError{Field: "count", Detail: "must be at least 1"}
	}
	if in.AmountPerInstallment.IsNegative() {
		return nil, &ValidationError{Field: "amountPerInstallment", Detail: "must not be negative"}
	}
	if in.StartDate.IsZero() {
		return nil, &ValidationError{Field: "startDate", Detail: "is required"}
	}
	step := in.Frequency.monthsPerStep()
	if step == 0 {
		return nil, &ValidationError{Field: "frequency", Detail: fmt.Sprintf("unknown frequency %q", in.Frequency)}
	}

	startNo := in.StartNo
	if startNo < 1 {
		startNo = 1
	}
	amount := round2(in.AmountPerInstallment)
	now := time.Now()

	drafts := make([]Installment, 0, in.Count)
	for i := 0; i < in.Count; i++ {
		no := startNo + i
		drafts = append(drafts, Installment{
			FileID:           in.FileID,
			MemberID:         in.MemberID,
			PlotID:           in.PlotID,
			CategoryID:       in.CategoryID,
			InstallmentNo:    no,
			Title:            installmentTitle(in.TitleTemplate, no),
			ObligationType:   in.ObligationType,
			DueDate:          addCalendarMonths(in.StartDate, i*step),
			AmountDue:        amount,
			LateFeeSurcharge: decimalZero,
			TotalPayable:     amount,
			AmountPaid:       decimalZero,
			BalanceAmount:    amount,
			Status:           StatusUnpaid,
			CreatedBy:        in.CreatedBy,
			ModifiedBy:       in.CreatedBy,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}
	return drafts, nil
}

func installmentTitle(template string, no int) string {
	switch {
	case template == "":
		return fmt.Sprintf("Installment %d", no)
	case strings.Contains(template, "%d"):
		return fmt.Sprintf(template, no)
	default:
		return fmt.Sprintf("%s %d", template, no)
	}
}

// addCalendarMonths shifts t by the given number of months, clamping the day
// of month to the last day of the target month instead of letting the date
// normalise into the following month.
func addCalendarMonths(t time.Time, months int) time.Time {
	if months == 0 {
		return t
	}
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(firstOfTarget.Year(), firstOfTarget.Month()); day > last {
		day = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
