/*
history.go - Running-balance reconstruction

PURPOSE:
  Builds the per-customer timeline: every credit and every payment in
  chronological order, each with the balance right after it. Nothing here
  is stored; the timeline is replayed from rows on every call, the same
  way a balance is always replayed from its transactions.

ORDERING:
  By date, ties broken by insertion order (Seq, shared by credits and
  payments).

FOLD:
  running = 0
  credit  → running += amount
  payment → running -= amount

  The last running balance equals OutstandingBalance(credits, payments).

SEQUENCE:
  CreditHistory returns an iter.Seq. It is finite and restartable: every
  range over it replays the captured rows from zero, so two ranges yield
  identical entries.
*/
package ledger

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type HistoryEventType string

const (
	EventCredit  HistoryEventType = "credit"
	EventPayment HistoryEventType = "payment"
)

// HistoryEntry is one event of a customer's timeline.
type HistoryEntry struct {
	Type           HistoryEventType
	RefID          string
	Amount         decimal.Decimal
	Date           time.Time
	Description    string
	RunningBalance decimal.Decimal
	Seq            int64
}

type historyEvent struct {
	kind   HistoryEventType
	ref    string
	amount decimal.Decimal
	date   time.Time
	desc   string
	seq    int64
}

// BuildHistory merges credits and payments and folds the running balance.
func BuildHistory(credits []CreditTransaction, payments []Payment) iter.Seq[HistoryEntry] {
	events := make([]historyEvent, 0, len(credits)+len(payments))
	for _, c := range credits {
		events = append(events, historyEvent{
			kind: EventCredit, ref: string(c.ID), amount: c.Amount,
			date: c.Date, desc: creditDescription(c), seq: c.Seq,
		})
	}
	for _, p := range payments {
		events = append(events, historyEvent{
			kind: EventPayment, ref: string(p.ID), amount: p.Amount,
			date: p.Date, desc: paymentDescription(p), seq: p.Seq,
		})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].date.Equal(events[j].date) {
			return events[i].date.Before(events[j].date)
		}
		return events[i].seq < events[j].seq
	})

	return func(yield func(HistoryEntry) bool) {
		running := decimal.Zero
		for _, e := range events {
			if e.kind == EventCredit {
				running = running.Add(e.amount)
			} else {
				running = running.Sub(e.amount)
			}
			entry := HistoryEntry{
				Type:           e.kind,
				RefID:          e.ref,
				Amount:         e.amount,
				Date:           e.date,
				Description:    e.desc,
				RunningBalance: running,
				Seq:            e.seq,
			}
			if !yield(entry) {
				return
			}
		}
	}
}

// CreditHistory returns the timeline of a customer. An unknown customer
// yields an empty sequence.
func (s *Service) CreditHistory(ctx context.Context, id CustomerID) (iter.Seq[HistoryEntry], error) {
	_, credits, payments, err := s.customerRows(ctx, id)
	if err != nil {
		return nil, err
	}
	return BuildHistory(credits, payments), nil
}

// CreditHistoryList collects CreditHistory into a slice.
func (s *Service) CreditHistoryList(ctx context.Context, id CustomerID) ([]HistoryEntry, error) {
	seq, err := s.CreditHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	entries := []HistoryEntry{}
	for e := range seq {
		entries = append(entries, e)
	}
	return entries, nil
}

func creditDescription(c CreditTransaction) string {
	switch {
	case c.ProductName != "" && c.Quantity > 0:
		return fmt.Sprintf("%s x%d", c.ProductName, c.Quantity)
	case c.ProductName != "":
		return c.ProductName
	case c.Notes != "":
		return c.Notes
	default:
		return "Credit"
	}
}

func paymentDescription(p Payment) string {
	desc := "Payment (" + string(p.Method) + ")"
	if p.Notes != "" {
		desc += " - " + p.Notes
	}
	return desc
}
