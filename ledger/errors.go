/*
errors.go - Error taxonomy of the credit ledger

PURPOSE:
  All error kinds in one place. The core returns structured errors; the
  boundary (HTTP, CLI) decides how to present them.

ERROR CATEGORIES:
  1. ValidationError - bad input, detected before any write
  2. AllocationError - payment allocation invariant violated
  3. IntegrityError  - mutation would produce an impossible state
  4. NotFoundError   - referenced customer/credit/payment is missing

USAGE:
  Every structured error unwraps to its sentinel, so callers can match
  either way:

    if errors.Is(err, ledger.ErrValidation) { ... }

    var nf *ledger.NotFoundError
    if errors.As(err, &nf) { log(nf.Kind, nf.ID) }

PROPAGATION:
  Mutations run inside Store.WithTx. Returning any of these errors from the
  transaction body rolls the whole unit back.
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for invalid input at the boundary.
	ErrValidation = errors.New("validation failed")

	// ErrAllocation is returned when a payment cannot be fully allocated.
	// Indicates the caller skipped pre-validation.
	ErrAllocation = errors.New("payment allocation failed")

	// ErrIntegrity is returned when a mutation would corrupt the ledger.
	ErrIntegrity = errors.New("ledger integrity violation")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field and why it was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ExceedsRemainingError is a ValidationError raised when a payment is larger
// than what is left to pay. The caller can split the payment.
type ExceedsRemainingError struct {
	CreditID  CreditID
	Remaining decimal.Decimal
	Requested decimal.Decimal
}

func (e *ExceedsRemainingError) Error() string {
	if e.CreditID == "" {
		return fmt.Sprintf("invalid amount: payment %s exceeds outstanding balance %s",
			e.Requested.StringFixed(CentavoPlaces), e.Remaining.StringFixed(CentavoPlaces))
	}
	return fmt.Sprintf("invalid amount: payment %s exceeds remaining %s on credit %s",
		e.Requested.StringFixed(CentavoPlaces), e.Remaining.StringFixed(CentavoPlaces), e.CreditID)
}

func (e *ExceedsRemainingError) Unwrap() error { return ErrValidation }

// AllocationError reports an amount that could not be placed on any credit.
type AllocationError struct {
	CustomerID  CustomerID
	Requested   decimal.Decimal
	Unallocated decimal.Decimal
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("payment allocation failed: %s of %s could not be applied for customer %s",
		e.Unallocated.StringFixed(CentavoPlaces), e.Requested.StringFixed(CentavoPlaces), e.CustomerID)
}

func (e *AllocationError) Unwrap() error { return ErrAllocation }

// IntegrityError describes an impossible state a mutation would produce.
type IntegrityError struct {
	Op     string
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity violation in %s: %s", e.Op, e.Detail)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// NotFoundError names the kind of record and its id.
type NotFoundError struct {
	Kind string // "customer", "credit", "payment"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func customerNotFound(id CustomerID) error {
	return &NotFoundError{Kind: "customer", ID: string(id)}
}

func creditNotFound(id CreditID) error {
	return &NotFoundError{Kind: "credit", ID: string(id)}
}

func paymentNotFound(id PaymentID) error {
	return &NotFoundError{Kind: "payment", ID: string(id)}
}
