package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// KPISummary is the dashboard view over all customers, computed at query time.
type KPISummary struct {
	TotalOutstanding          decimal.Decimal
	TotalCustomers            int
	TotalCustomersWithBalance int
	// MostOwedCustomer is nil when nobody owes anything. Ties go to the
	// customer that comes first in store list order: created_at, then id.
	MostOwedCustomer    *CustomerSummary
	TotalCollectedToday decimal.Decimal
	TotalCreditsToday   decimal.Decimal
	OverdueCount        int
	Aging               AgingReport
}

// Summary aggregates KPIs across every customer.
func (s *Service) Summary(ctx context.Context) (KPISummary, error) {
	b, err := s.loadBook(ctx)
	if err != nil {
		return KPISummary{}, err
	}
	return s.summarizeBook(b), nil
}

func (s *Service) summarizeBook(b *book) KPISummary {
	today := s.Today()
	k := KPISummary{
		TotalOutstanding:    decimal.Zero,
		TotalCollectedToday: decimal.Zero,
		TotalCreditsToday:   decimal.Zero,
		TotalCustomers:      len(b.customers),
	}

	for _, cs := range s.summaries(b) {
		k.TotalOutstanding = k.TotalOutstanding.Add(cs.OutstandingBalance)
		if cs.HasBalance() {
			k.TotalCustomersWithBalance++
			if k.MostOwedCustomer == nil || cs.OutstandingBalance.GreaterThan(k.MostOwedCustomer.OutstandingBalance) {
				most := cs
				k.MostOwedCustomer = &most
			}
		}
		if cs.Tag == TagOverdue {
			k.OverdueCount++
		}
	}

	// Only rows of known customers count, so a half-deleted customer can
	// never leak into the totals.
	for _, c := range b.customers {
		for _, cr := range b.credits[c.ID] {
			if SameDay(cr.Date, today, s.loc) {
				k.TotalCreditsToday = k.TotalCreditsToday.Add(cr.Amount)
			}
		}
		for _, p := range b.payments[c.ID] {
			if SameDay(p.Date, today, s.loc) {
				k.TotalCollectedToday = k.TotalCollectedToday.Add(p.Amount)
			}
		}
		k.Aging = k.Aging.Merge(Aging(b.credits[c.ID], today))
	}
	return k
}
