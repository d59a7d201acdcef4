package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/hillstead/hillstead/internal/ledger"
)

// ReadRepositoryPort defines read-only data access for reporting.
type ReadRepositoryPort interface {
	ListEntries(ctx context.Context, filter Filter) ([]EntryView, error)
	ListPayments(ctx context.Context, filter PaymentFilter) ([]PaymentView, error)
}

// Service computes aggregations over the ledger. All groupings run as a
// single pass over the filtered entry set.
type Service struct {
	repo  ReadRepositoryPort
	cache *Cache
	group singleflight.Group
	nowFn func() time.Time
}

// NewService builds a Service instance. A nil cache disables caching.
func NewService(repo ReadRepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, nowFn: time.Now}
}

// MemberSummary rolls up a member's entries by effective status, category and
// due month (the most recent 12 months).
func (s *Service) MemberSummary(ctx context.Context, memberID int64, filter Filter) (*MemberSummary, error) {
	filter.MemberID = memberID
	entries, err := s.repo.ListEntries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("reporting: member summary: %w", err)
	}
	now := s.nowFn()
	monthFloor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -11, 0)

	byStatus := map[ledger.Status]*MoneyTotal{}
	byCategory := map[int64]*CategoryBucket{}
	byMonth := map[string]*MoneyTotal{}

	for _, e := range entries {
		effective := ledger.Classify(e.Installment, now)
		accumulate(statusTotal(byStatus, effective), e)

		cb, ok := byCategory[e.CategoryID]
		if !ok {
			cb = &CategoryBucket{CategoryID: e.CategoryID, CategoryName: e.CategoryName, MoneyTotal: zeroTotal()}
			byCategory[e.CategoryID] = cb
		}
		accumulate(&cb.MoneyTotal, e)

		if !e.DueDate.Before(monthFloor) {
			month := e.DueDate.Format("2006-01")
			mt, ok := byMonth[month]
			if !ok {
				z := zeroTotal()
				mt = &z
				byMonth[month] = mt
			}
			accumulate(mt, e)
		}
	}

	summary := &MemberSummary{MemberID: memberID}
	for status, total := range byStatus {
		summary.ByStatus = append(summary.ByStatus, StatusBucket{Status: status, MoneyTotal: *total})
	}
	sort.Slice(summary.ByStatus, func(i, j int) bool { return summary.ByStatus[i].Status < summary.ByStatus[j].Status })
	for _, cb := range byCategory {
		summary.ByCategory = append(summary.ByCategory, *cb)
	}
	sort.Slice(summary.ByCategory, func(i, j int) bool { return summary.ByCategory[i].CategoryID < summary.ByCategory[j].CategoryID })
	for month, total := range byMonth {
		summary.ByDueMonth = append(summary.ByDueMonth, MonthBucket{Month: month, MoneyTotal: *total})
	}
	sort.Slice(summary.ByDueMonth, func(i, j int) bool { return summary.ByDueMonth[i].Month < summary.ByDueMonth[j].Month })
	return summary, nil
}

// Dashboard assembles the snapshot, served from cache when fresh. Concurrent
// cold-cache requests collapse into one computation.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	if s.cache == nil {
		return s.buildDashboard(ctx)
	}
	var dash Dashboard
	err := s.cache.FetchJSON(ctx, keyDashboard(s.nowFn()), &dash, func(ctx context.Context) (any, error) {
		v, err, _ := s.group.Do("dashboard", func() (any, error) {
			return s.buildDashboard(ctx)
		})
		return v, err
	})
	if err != nil {
		return nil, err
	}
	return &dash, nil
}

func (s *Service) buildDashboard(ctx context.Context) (*Dashboard, error) {
	now := s.nowFn()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)

	entries, err := s.repo.ListEntries(ctx, Filter{})
	if err != nil {
		return nil, fmt.Errorf("reporting: dashboard entries: %w", err)
	}
	payments, err := s.repo.ListPayments(ctx, PaymentFilter{})
	if err != nil {
		return nil, fmt.Errorf("reporting: dashboard payments: %w", err)
	}

	dash := &Dashboard{
		TotalOutstanding: decimal.Zero,
		CollectedToday:   decimal.Zero,
		DueToday:         decimal.Zero,
		OverdueTotal:     decimal.Zero,
		GeneratedAt:      now,
	}

	var upcoming []EntryView
	for _, e := range entries {
		effective := ledger.Classify(e.Installment, now)
		if !effective.Terminal() {
			dash.TotalOutstanding = dash.TotalOutstanding.Add(e.BalanceAmount)
		}
		if effective == ledger.StatusOverdue {
			dash.OverdueTotal = dash.OverdueTotal.Add(e.BalanceAmount)
			dash.OverdueCount++
		}
		if !e.DueDate.Before(today) && e.DueDate.Before(tomorrow) && !effective.Terminal() {
			dash.DueToday = dash.DueToday.Add(e.BalanceAmount)
		}
		if !e.DueDate.Before(tomorrow) && !effective.Terminal() {
			upcoming = append(upcoming, e)
		}
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].DueDate.Before(upcoming[j].DueDate) })
	if len(upcoming) > 10 {
		upcoming = upcoming[:10]
	}
	dash.UpcomingDues = upcoming

	paidByMember := map[int64]*PayerTotal{}
	recent := make([]PaymentView, len(payments))
	copy(recent, payments)
	sort.Slice(recent, func(i, j int) bool { return recent[i].RecordedAt.After(recent[j].RecordedAt) })
	if len(recent) > 10 {
		recent = recent[:10]
	}
	dash.RecentPayments = recent

	for _, p := range payments {
		if !p.PaidAt.Before(today) && p.PaidAt.Before(tomorrow) {
			dash.CollectedToday = dash.CollectedToday.Add(p.Amount)
		}
		pt, ok := paidByMember[p.MemberID]
		if !ok {
			pt = &PayerTotal{MemberID: p.MemberID, MemberName: p.MemberName, AmountPaid: decimal.Zero}
			paidByMember[p.MemberID] = pt
		}
		pt.AmountPaid = pt.AmountPaid.Add(p.Amount)
	}
	payers := make([]PayerTotal, 0, len(paidByMember))
	for _, pt := range paidByMember {
		payers = append(payers, *pt)
	}
	sort.Slice(payers, func(i, j int) bool {
		if c := payers[i].AmountPaid.Cmp(payers[j].AmountPaid); c != 0 {
			return c > 0
		}
		return payers[i].MemberID < payers[j].MemberID
	})
	if len(payers) > 5 {
		payers = payers[:5]
	}
	dash.TopPayers = payers

	return dash, nil
}

// PeriodReport returns entries due in [from, to] plus totals grouped by day,
// category and effective status.
func (s *Service) PeriodReport(ctx context.Context, from, to time.Time, filter Filter) (*PeriodReport, error) {
	if from.IsZero() || to.IsZero() {
		return nil, fmt.Errorf("reporting: period report requires a date range")
	}
	if to.Before(from) {
		return nil, fmt.Errorf("reporting: period end precedes start")
	}
	filter.From = from
	filter.To = to
	entries, err := s.repo.ListEntries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("reporting: period report: %w", err)
	}
	now := s.nowFn()

	byDay := map[string]*MoneyTotal{}
	byCategory := map[int64]*CategoryBucket{}
	byStatus := map[ledger.Status]*MoneyTotal{}

	for _, e := range entries {
		day := e.DueDate.Format("2006-01-02")
		dt, ok := byDay[day]
		if !ok {
			z := zeroTotal()
			dt = &z
			byDay[day] = dt
		}
		accumulate(dt, e)

		cb, ok := byCategory[e.CategoryID]
		if !ok {
			cb = &CategoryBucket{CategoryID: e.CategoryID, CategoryName: e.CategoryName, MoneyTotal: zeroTotal()}
			byCategory[e.CategoryID] = cb
		}
		accumulate(&cb.MoneyTotal, e)

		accumulate(statusTotal(byStatus, ledger.Classify(e.Installment, now)), e)
	}

	report := &PeriodReport{From: from, To: to, Entries: entries}
	for day, total := range byDay {
		report.ByDay = append(report.ByDay, DayBucket{Day: day, MoneyTotal: *total})
	}
	sort.Slice(report.ByDay, func(i, j int) bool { return report.ByDay[i].Day < report.ByDay[j].Day })
	for _, cb := range byCategory {
		report.ByCategory = append(report.ByCategory, *cb)
	}
	sort.Slice(report.ByCategory, func(i, j int) bool { return report.ByCategory[i].CategoryID < report.ByCategory[j].CategoryID })
	for status, total := range byStatus {
		report.ByStatus = append(report.ByStatus, StatusBucket{Status: status, MoneyTotal: *total})
	}
	sort.Slice(report.ByStatus, func(i, j int) bool { return report.ByStatus[i].Status < report.ByStatus[j].Status })
	return report, nil
}

func zeroTotal() MoneyTotal {
	return MoneyTotal{TotalPayable: decimal.Zero, AmountPaid: decimal.Zero, Balance: decimal.Zero}
}

func statusTotal(m map[ledger.Status]*MoneyTotal, status ledger.Status) *MoneyTotal {
	mt, ok := m[status]
	if !ok {
		z := zeroTotal()
		mt = &z
		m[status] = mt
	}
	return mt
}

func accumulate(mt *MoneyTotal, e EntryView) {
	mt.Count++
	mt.TotalPayable = mt.TotalPayable.Add(e.TotalPayable)
	mt.AmountPaid = mt.AmountPaid.Add(e.AmountPaid)
	mt.Balance = mt.Balance.Add(e.BalanceAmount)
}
