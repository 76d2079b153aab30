/*
allocation.go - Planning how a payment is spread over credits

PURPOSE:
  Pure planning step of the payment allocator. Given the customer's
  credits and a payment amount, decide how much lands on each credit.
  No writes happen here; payment.go applies the plan inside a store
  transaction.

STRATEGIES:
  Targeted: the whole payment lands on one credit. Payments larger than
            the remaining balance are rejected, never truncated.
  FIFO:     oldest unpaid credit first (date, then insertion order),
            each filled up to its remaining balance until the payment is
            exhausted.

EXAMPLE:
  Credits (all unpaid): T1 ₱500 (day 1), T2 ₱300 (day 2)
  FIFO payment ₱650:
    T1: remaining 500 → 0    (allocated 500)
    T2: remaining 300 → 150  (allocated 150)
*/
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// AllocationLine is one step of an allocation plan.
type AllocationLine struct {
	CreditID        CreditID
	Amount          decimal.Decimal
	RemainingBefore decimal.Decimal
	RemainingAfter  decimal.Decimal
}

// PlanFIFO spreads amount over the unsettled credits, oldest first.
// leftover is whatever could not be placed; callers treat a positive
// leftover as an AllocationError.
func PlanFIFO(credits []CreditTransaction, amount decimal.Decimal) (lines []AllocationLine, leftover decimal.Decimal) {
	open := make([]CreditTransaction, 0, len(credits))
	for _, c := range credits {
		if !c.IsSettled() {
			open = append(open, c)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		if !open[i].Date.Equal(open[j].Date) {
			return open[i].Date.Before(open[j].Date)
		}
		return open[i].Seq < open[j].Seq
	})

	leftover = amount
	for _, c := range open {
		if !leftover.IsPositive() {
			break
		}
		remaining := c.Remaining()
		applied := decimal.Min(remaining, leftover)
		lines = append(lines, AllocationLine{
			CreditID:        c.ID,
			Amount:          applied,
			RemainingBefore: remaining,
			RemainingAfter:  remaining.Sub(applied),
		})
		leftover = leftover.Sub(applied)
	}
	return lines, leftover
}

// PlanTargeted places the whole amount on one credit.
func PlanTargeted(credit CreditTransaction, amount decimal.Decimal) (AllocationLine, error) {
	remaining := credit.Remaining()
	if !remaining.IsPositive() {
		return AllocationLine{}, &ValidationError{Field: "credit_transaction_id", Reason: "credit is already fully paid"}
	}
	if amount.GreaterThan(remaining) {
		return AllocationLine{}, &ExceedsRemainingError{CreditID: credit.ID, Remaining: remaining, Requested: amount}
	}
	return AllocationLine{
		CreditID:        credit.ID,
		Amount:          amount,
		RemainingBefore: remaining,
		RemainingAfter:  remaining.Sub(amount),
	}, nil
}
