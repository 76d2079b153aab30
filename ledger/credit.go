/*
credit.go - Credit transaction manager

PURPOSE:
  Creates, edits and deletes credit transactions, and settles a customer's
  whole tab at once (mark all as paid).

INVARIANTS:
  - amount > 0 with centavo precision
  - 0 ≤ amount_paid ≤ amount; only the payment allocator moves amount_paid
  - amount is frozen once anything has been paid against it
  - a credit with payments applied cannot be deleted; delete the payments
    first so the balance identity keeps holding

MARK ALL AS PAID:
  Settling sets amount_paid = amount on every open credit. To keep
  Σ credits − Σ payments equal to the per-credit remainder, the settlement
  is recorded as one payment for the total remaining, allocated across the
  settled credits. Deleting that payment reopens them.
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CreditInput describes a new credit transaction.
type CreditInput struct {
	CustomerID  CustomerID
	Amount      decimal.Decimal
	ProductID   string
	ProductName string
	Quantity    int
	// Date defaults to now.
	Date    time.Time
	DueDate *time.Time
	Notes   string
}

func validateCreditFields(amount decimal.Decimal, quantity int, date time.Time, due *time.Time, loc *time.Location) error {
	if err := checkAmount("amount", amount); err != nil {
		return err
	}
	if quantity < 0 {
		return &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	if due != nil && StartOfDay(*due, loc).Before(StartOfDay(date, loc)) {
		return &ValidationError{Field: "due_date", Reason: "must not be before the credit date"}
	}
	return nil
}

// CreateCredit records a new unpaid credit for a customer.
func (s *Service) CreateCredit(ctx context.Context, in CreditInput) (*CreditTransaction, error) {
	if in.Date.IsZero() {
		in.Date = s.now()
	}
	if err := validateCreditFields(in.Amount, in.Quantity, in.Date, in.DueDate, s.loc); err != nil {
		return nil, err
	}

	credit := CreditTransaction{
		ID:          CreditID(s.newID()),
		CustomerID:  in.CustomerID,
		ProductID:   in.ProductID,
		ProductName: in.ProductName,
		Quantity:    in.Quantity,
		Amount:      in.Amount,
		AmountPaid:  decimal.Zero,
		Date:        in.Date,
		DueDate:     in.DueDate,
		Notes:       in.Notes,
		CreatedAt:   s.now(),
	}

	err := s.mutate(ctx, "create_credit", func(st Store) error {
		c, err := st.GetCustomer(ctx, in.CustomerID)
		if err != nil {
			return err
		}
		if c == nil {
			return customerNotFound(in.CustomerID)
		}
		return st.InsertCredit(ctx, &credit)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]any{
		"customer_id": credit.CustomerID,
		"credit_id":   credit.ID,
		"amount":      credit.Amount.StringFixed(CentavoPlaces),
	}).Info("credit recorded")
	return &credit, nil
}

// CreditUpdate holds optional edits. Nil fields are left unchanged.
type CreditUpdate struct {
	ProductID    *string
	ProductName  *string
	Quantity     *int
	Amount       *decimal.Decimal
	DueDate      *time.Time
	ClearDueDate bool
	Notes        *string
}

// UpdateCredit edits a credit. The amount can only change while nothing
// has been paid against it.
func (s *Service) UpdateCredit(ctx context.Context, id CreditID, upd CreditUpdate) (*CreditTransaction, error) {
	var updated CreditTransaction
	err := s.mutate(ctx, "update_credit", func(st Store) error {
		c, err := st.GetCredit(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return creditNotFound(id)
		}

		if upd.Amount != nil && !upd.Amount.Equal(c.Amount) {
			if c.AmountPaid.IsPositive() {
				return &ValidationError{Field: "amount", Reason: "cannot change after payments were applied"}
			}
			c.Amount = *upd.Amount
		}
		if upd.ProductID != nil {
			c.ProductID = *upd.ProductID
		}
		if upd.ProductName != nil {
			c.ProductName = *upd.ProductName
		}
		if upd.Quantity != nil {
			c.Quantity = *upd.Quantity
		}
		if upd.ClearDueDate {
			c.DueDate = nil
		} else if upd.DueDate != nil {
			c.DueDate = upd.DueDate
		}
		if upd.Notes != nil {
			c.Notes = *upd.Notes
		}

		if err := validateCreditFields(c.Amount, c.Quantity, c.Date, c.DueDate, s.loc); err != nil {
			return err
		}
		updated = *c
		return st.UpdateCredit(ctx, *c)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteCredit removes a credit that has no payments applied to it.
func (s *Service) DeleteCredit(ctx context.Context, id CreditID) error {
	err := s.mutate(ctx, "delete_credit", func(st Store) error {
		c, err := st.GetCredit(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return creditNotFound(id)
		}
		n, err := st.CountAllocationsForCredit(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 || c.AmountPaid.IsPositive() {
			return &IntegrityError{
				Op:     "delete_credit",
				Detail: fmt.Sprintf("credit %s has %d payment(s) applied; delete them first", id, n),
			}
		}
		return st.DeleteCredit(ctx, id)
	})
	if err == nil {
		s.log.WithField("credit_id", id).Info("credit deleted")
	}
	return err
}

// MarkAllAsPaid settles every open credit of a customer in one unit.
// Returns nil (and no error) when there was nothing to settle.
func (s *Service) MarkAllAsPaid(ctx context.Context, customerID CustomerID, method PaymentMethod, notes string) (*PaymentReceipt, error) {
	if method == "" {
		method = MethodCash
	}
	if !method.Valid() {
		return nil, &ValidationError{Field: "payment_method", Reason: fmt.Sprintf("unknown method %q", method)}
	}

	var receipt *PaymentReceipt
	err := s.mutate(ctx, "mark_all_paid", func(st Store) error {
		c, err := st.GetCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		if c == nil {
			return customerNotFound(customerID)
		}
		credits, err := st.ListCredits(ctx, customerID)
		if err != nil {
			return err
		}

		total := Remaining(credits)
		if !total.IsPositive() {
			return nil
		}
		lines, leftover := PlanFIFO(credits, total)
		if !leftover.IsZero() {
			return &AllocationError{CustomerID: customerID, Requested: total, Unallocated: leftover}
		}

		if notes == "" {
			notes = "Marked all as paid"
		}
		payment := Payment{
			ID:         PaymentID(s.newID()),
			CustomerID: customerID,
			Amount:     total,
			Method:     method,
			Date:       s.now(),
			Notes:      notes,
			CreatedAt:  s.now(),
		}
		if err := s.applyPayment(ctx, st, &payment, credits, lines); err != nil {
			return err
		}
		receipt = &PaymentReceipt{Payment: payment, Allocations: lines}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if receipt != nil {
		s.log.WithFields(map[string]any{
			"customer_id": customerID,
			"payment_id":  receipt.Payment.ID,
			"settled":     len(receipt.Allocations),
		}).Info("all credits marked as paid")
	}
	return receipt, nil
}
