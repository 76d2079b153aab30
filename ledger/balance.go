/*
balance.go - Balance, status and tag calculation

PURPOSE:
  Pure functions that answer "how much does this customer owe?" and
  "how are they doing?" from raw credit and payment rows. No side effects,
  no storage access.

BALANCE IDENTITY:
  OutstandingBalance = Σ credit.amount − Σ payment.amount

  Because every payment is fully allocated, this always equals

  Remaining = Σ (credit.amount − credit.amount_paid)

  The allocator preserves this; tests assert it after every mutation.

STATUS:
  paid    if amount_paid ≥ amount
  unpaid  if amount_paid ≤ 0
  partial otherwise

TAGS (first match wins):
  overdue           - some unpaid credit is past its due date
  good_payer        - nothing owed and there is history
  frequent_borrower - many credits inside the lookback window
  none

SEE ALSO:
  - aging.go: Aging buckets
  - kpi.go:   Cross-customer aggregation
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS & BALANCE
// =============================================================================

// TransactionStatus derives a credit's status from its amounts.
func TransactionStatus(amount, amountPaid decimal.Decimal) CreditStatus {
	switch {
	case amountPaid.GreaterThanOrEqual(amount):
		return StatusPaid
	case !amountPaid.IsPositive():
		return StatusUnpaid
	default:
		return StatusPartial
	}
}

// OutstandingBalance is total credits minus total payments.
func OutstandingBalance(credits []CreditTransaction, payments []Payment) decimal.Decimal {
	return SumCredits(credits).Sub(SumPayments(payments))
}

// Remaining sums what is still owed per transaction.
func Remaining(credits []CreditTransaction) decimal.Decimal {
	total := decimal.Zero
	for _, c := range credits {
		total = total.Add(c.Remaining())
	}
	return total
}

// =============================================================================
// OVERDUE
// =============================================================================

// DaysOverdue returns how many days the earliest past-due, not fully paid
// credit is overdue. ok is false when nothing is overdue.
func DaysOverdue(credits []CreditTransaction, today time.Time) (days int, ok bool) {
	loc := today.Location()
	todayStart := StartOfDay(today, loc)

	var earliest *time.Time
	for i := range credits {
		c := credits[i]
		if c.DueDate == nil || c.IsSettled() {
			continue
		}
		due := StartOfDay(*c.DueDate, loc)
		if !due.Before(todayStart) {
			continue
		}
		if earliest == nil || due.Before(*earliest) {
			earliest = &due
		}
	}
	if earliest == nil {
		return 0, false
	}
	return DaysBetween(*earliest, todayStart, loc), true
}

// =============================================================================
// TAGS
// =============================================================================

// TagRules tunes the frequent-borrower tag.
type TagRules struct {
	// FrequentBorrowerCount is the number of credits inside the window
	// at which a customer counts as a frequent borrower.
	FrequentBorrowerCount int
	// FrequentBorrowerWindowDays is the lookback window, in days.
	FrequentBorrowerWindowDays int
}

func DefaultTagRules() TagRules {
	return TagRules{FrequentBorrowerCount: 5, FrequentBorrowerWindowDays: 30}
}

// Tag resolves a customer's behavioral tag.
func Tag(credits []CreditTransaction, payments []Payment, today time.Time, rules TagRules) CustomerTag {
	if _, overdue := DaysOverdue(credits, today); overdue {
		return TagOverdue
	}
	if len(credits)+len(payments) > 0 && OutstandingBalance(credits, payments).IsZero() {
		return TagGoodPayer
	}
	if rules.FrequentBorrowerCount > 0 {
		loc := today.Location()
		recent := 0
		for _, c := range credits {
			age := DaysBetween(c.Date, today, loc)
			if age >= 0 && age < rules.FrequentBorrowerWindowDays {
				recent++
			}
		}
		if recent >= rules.FrequentBorrowerCount {
			return TagFrequentBorrower
		}
	}
	return TagNone
}

// =============================================================================
// CUSTOMER SUMMARY - View model with every derived field
// =============================================================================

type CustomerSummary struct {
	Customer

	TotalCredits       decimal.Decimal
	TotalPayments      decimal.Decimal
	OutstandingBalance decimal.Decimal

	CreditCount         int
	UnpaidCount         int
	LastTransactionDate *time.Time

	Tag         CustomerTag
	DaysOverdue *int

	// OverLimit is true when a credit limit is set and the balance exceeds it.
	OverLimit bool
}

// HasBalance reports whether the customer owes anything.
func (s CustomerSummary) HasBalance() bool {
	return s.OutstandingBalance.IsPositive()
}

// Summarize computes the derived view of one customer.
func Summarize(c Customer, credits []CreditTransaction, payments []Payment, today time.Time, rules TagRules) CustomerSummary {
	s := CustomerSummary{
		Customer:      c,
		TotalCredits:  SumCredits(credits),
		TotalPayments: SumPayments(payments),
		CreditCount:   len(credits),
		Tag:           Tag(credits, payments, today, rules),
	}
	s.OutstandingBalance = s.TotalCredits.Sub(s.TotalPayments)

	for _, cr := range credits {
		if !cr.IsSettled() {
			s.UnpaidCount++
		}
		s.LastTransactionDate = later(s.LastTransactionDate, cr.Date)
	}
	for _, p := range payments {
		s.LastTransactionDate = later(s.LastTransactionDate, p.Date)
	}

	if days, ok := DaysOverdue(credits, today); ok {
		s.DaysOverdue = &days
	}
	if c.CreditLimit.Valid && s.OutstandingBalance.GreaterThan(c.CreditLimit.Decimal) {
		s.OverLimit = true
	}
	return s
}

func later(cur *time.Time, t time.Time) *time.Time {
	if cur == nil || t.After(*cur) {
		return &t
	}
	return cur
}
