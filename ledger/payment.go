/*
payment.go - Payment allocator

PURPOSE:
  Records payments and keeps every credit's amount_paid in step with them.

RECORDING:
  1. Validate: amount > 0, known method, customer exists.
  2. Targeted (credit_transaction_id set):
       the credit must belong to the customer, must not be fully paid,
       and the payment must not exceed its remaining balance.
  3. Untargeted:
       the payment must not exceed the customer's outstanding balance;
       it is spread FIFO (allocation.go). Anything left over after the
       spread is an AllocationError and the unit rolls back.
  4. Write one payment row, one allocation row per touched credit, and the
     new amount_paid of each credit. One store transaction.

DELETING:
  Replays the payment's allocations in reverse. A reversal that would take
  amount_paid below zero is an IntegrityError; nothing is clamped.

BOOKKEEPING CHOICE:
  A FIFO payment spanning several credits is still a single payment row
  (credit_transaction_id empty). The per-credit split lives in the
  allocations table. History therefore shows one payment event per
  payment, whatever its spread.
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentInput describes a payment received from a customer.
type PaymentInput struct {
	CustomerID CustomerID
	Amount     decimal.Decimal
	// CreditTransactionID targets one credit. Empty means FIFO.
	CreditTransactionID CreditID
	Method              PaymentMethod
	// Date defaults to now.
	Date  time.Time
	Notes string
}

// PaymentReceipt is the recorded payment and where it landed.
type PaymentReceipt struct {
	Payment     Payment
	Allocations []AllocationLine
}

// RecordPayment records and allocates a payment.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput) (*PaymentReceipt, error) {
	if err := checkAmount("amount", in.Amount); err != nil {
		return nil, err
	}
	if in.Method == "" {
		in.Method = MethodCash
	}
	if !in.Method.Valid() {
		return nil, &ValidationError{Field: "payment_method", Reason: fmt.Sprintf("unknown method %q", in.Method)}
	}
	if in.Date.IsZero() {
		in.Date = s.now()
	}

	payment := Payment{
		ID:                  PaymentID(s.newID()),
		CustomerID:          in.CustomerID,
		CreditTransactionID: in.CreditTransactionID,
		Amount:              in.Amount,
		Method:              in.Method,
		Date:                in.Date,
		Notes:               in.Notes,
		CreatedAt:           s.now(),
	}

	var lines []AllocationLine
	err := s.mutate(ctx, "record_payment", func(st Store) error {
		c, err := st.GetCustomer(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if c == nil {
			return customerNotFound(in.CustomerID)
		}
		credits, err := st.ListCredits(ctx, in.CustomerID)
		if err != nil {
			return err
		}

		if payment.IsTargeted() {
			target, ok := findCredit(credits, payment.CreditTransactionID)
			if !ok {
				return &ValidationError{Field: "credit_transaction_id", Reason: "credit not found for this customer"}
			}
			line, err := PlanTargeted(target, payment.Amount)
			if err != nil {
				return err
			}
			lines = []AllocationLine{line}
		} else {
			payments, err := st.ListPayments(ctx, in.CustomerID)
			if err != nil {
				return err
			}
			outstanding := OutstandingBalance(credits, payments)
			if payment.Amount.GreaterThan(outstanding) {
				return &ExceedsRemainingError{Remaining: decimal.Max(outstanding, decimal.Zero), Requested: payment.Amount}
			}
			var leftover decimal.Decimal
			lines, leftover = PlanFIFO(credits, payment.Amount)
			if leftover.IsPositive() {
				return &AllocationError{CustomerID: in.CustomerID, Requested: payment.Amount, Unallocated: leftover}
			}
		}

		return s.applyPayment(ctx, st, &payment, credits, lines)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]any{
		"customer_id": payment.CustomerID,
		"payment_id":  payment.ID,
		"amount":      payment.Amount.StringFixed(CentavoPlaces),
		"targeted":    payment.IsTargeted(),
		"allocations": len(lines),
	}).Info("payment recorded")
	return &PaymentReceipt{Payment: payment, Allocations: lines}, nil
}

// applyPayment writes the payment, its allocations and the new amount_paid
// of every touched credit. Must run inside WithTx.
func (s *Service) applyPayment(ctx context.Context, st Store, payment *Payment, credits []CreditTransaction, lines []AllocationLine) error {
	if err := st.InsertPayment(ctx, payment); err != nil {
		return err
	}
	for _, line := range lines {
		credit, ok := findCredit(credits, line.CreditID)
		if !ok {
			return creditNotFound(line.CreditID)
		}
		credit.AmountPaid = credit.AmountPaid.Add(line.Amount)
		if credit.AmountPaid.GreaterThan(credit.Amount) {
			return &AllocationError{CustomerID: payment.CustomerID, Requested: payment.Amount, Unallocated: credit.AmountPaid.Sub(credit.Amount)}
		}
		if err := st.UpdateCredit(ctx, credit); err != nil {
			return err
		}
		if err := st.InsertAllocation(ctx, Allocation{PaymentID: payment.ID, CreditID: line.CreditID, Amount: line.Amount}); err != nil {
			return err
		}
	}
	return nil
}

// DeletePayment removes a payment and reverses its effect on the credits
// it was applied to.
func (s *Service) DeletePayment(ctx context.Context, id PaymentID) error {
	err := s.mutate(ctx, "delete_payment", func(st Store) error {
		p, err := st.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return paymentNotFound(id)
		}
		allocations, err := st.ListAllocations(ctx, id)
		if err != nil {
			return err
		}

		allocated := decimal.Zero
		for _, a := range allocations {
			credit, err := st.GetCredit(ctx, a.CreditID)
			if err != nil {
				return err
			}
			if credit == nil {
				return &IntegrityError{Op: "delete_payment", Detail: fmt.Sprintf("allocation references missing credit %s", a.CreditID)}
			}
			credit.AmountPaid = credit.AmountPaid.Sub(a.Amount)
			if credit.AmountPaid.IsNegative() {
				return &IntegrityError{
					Op:     "delete_payment",
					Detail: fmt.Sprintf("reversing %s on credit %s would make amount_paid negative", a.Amount.StringFixed(CentavoPlaces), a.CreditID),
				}
			}
			if err := st.UpdateCredit(ctx, *credit); err != nil {
				return err
			}
			allocated = allocated.Add(a.Amount)
		}
		if !allocated.Equal(p.Amount) {
			return &IntegrityError{
				Op:     "delete_payment",
				Detail: fmt.Sprintf("payment %s of %s has only %s allocated", id, p.Amount.StringFixed(CentavoPlaces), allocated.StringFixed(CentavoPlaces)),
			}
		}
		return st.DeletePayment(ctx, id)
	})
	if err == nil {
		s.log.WithField("payment_id", id).Info("payment deleted")
	}
	return err
}

func findCredit(credits []CreditTransaction, id CreditID) (CreditTransaction, bool) {
	for _, c := range credits {
		if c.ID == id {
			return c, true
		}
	}
	return CreditTransaction{}, false
}
