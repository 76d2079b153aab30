package ledger

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// CustomerInput holds the editable fields of a customer.
type CustomerInput struct {
	Name        string
	Phone       string
	Address     string
	Notes       string
	CreditLimit *decimal.Decimal
}

func (in CustomerInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if in.CreditLimit == nil {
		return nil
	}
	if in.CreditLimit.IsNegative() {
		return &ValidationError{Field: "credit_limit", Reason: "must not be negative"}
	}
	return checkCentavos("credit_limit", *in.CreditLimit)
}

func (in CustomerInput) apply(c *Customer) {
	c.Name = strings.TrimSpace(in.Name)
	c.Phone = strings.TrimSpace(in.Phone)
	c.Address = strings.TrimSpace(in.Address)
	c.Notes = in.Notes
	c.CreditLimit = decimal.NullDecimal{}
	if in.CreditLimit != nil {
		c.CreditLimit = decimal.NewNullDecimal(*in.CreditLimit)
	}
}

// AddCustomer creates a customer.
func (s *Service) AddCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.now()
	c := Customer{ID: CustomerID(s.newID()), CreatedAt: now, UpdatedAt: now}
	in.apply(&c)

	err := s.mutate(ctx, "add_customer", func(st Store) error {
		return st.InsertCustomer(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("customer_id", c.ID).Info("customer added")
	return &c, nil
}

// UpdateCustomer replaces the editable fields of a customer.
func (s *Service) UpdateCustomer(ctx context.Context, id CustomerID, in CustomerInput) (*Customer, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var updated Customer
	err := s.mutate(ctx, "update_customer", func(st Store) error {
		c, err := st.GetCustomer(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return customerNotFound(id)
		}
		in.apply(c)
		c.UpdatedAt = s.now()
		updated = *c
		return st.UpdateCustomer(ctx, *c)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteCustomer hard-deletes a customer with all credits and payments.
func (s *Service) DeleteCustomer(ctx context.Context, id CustomerID) error {
	err := s.mutate(ctx, "delete_customer", func(st Store) error {
		deleted, err := st.DeleteCustomer(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return customerNotFound(id)
		}
		return nil
	})
	if err == nil {
		s.log.WithField("customer_id", id).Info("customer deleted")
	}
	return err
}

// GetCustomer returns the derived summary of a customer, or nil if the
// customer does not exist.
func (s *Service) GetCustomer(ctx context.Context, id CustomerID) (*CustomerSummary, error) {
	c, credits, payments, err := s.customerRows(ctx, id)
	if err != nil || c == nil {
		return nil, err
	}
	summary := Summarize(*c, credits, payments, s.Today(), s.rules)
	return &summary, nil
}

// CustomerCredits lists a customer's credits, oldest first.
func (s *Service) CustomerCredits(ctx context.Context, id CustomerID) ([]CreditTransaction, error) {
	return s.store.ListCredits(ctx, id)
}

// CustomerPayments lists a customer's payments, oldest first.
func (s *Service) CustomerPayments(ctx context.Context, id CustomerID) ([]Payment, error) {
	return s.store.ListPayments(ctx, id)
}

// CustomerAging buckets a customer's unpaid credits.
func (s *Service) CustomerAging(ctx context.Context, id CustomerID) (AgingReport, error) {
	_, credits, _, err := s.customerRows(ctx, id)
	if err != nil {
		return AgingReport{}, err
	}
	return Aging(credits, s.Today()), nil
}

// StoreAging buckets every unpaid credit in the store.
func (s *Service) StoreAging(ctx context.Context) (AgingReport, error) {
	credits, err := s.store.ListAllCredits(ctx)
	if err != nil {
		return AgingReport{}, err
	}
	return Aging(credits, s.Today()), nil
}
