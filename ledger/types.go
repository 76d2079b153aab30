/*
Package ledger provides the customer credit ("utang") engine of the store.

PURPOSE:
  Tracks goods and money extended to customers on credit, the payments they
  make against it, and everything derived from those two streams: balances,
  per-transaction paid status, aging, running-balance history and the
  dashboard KPIs.

KEY CONCEPTS IN THIS FILE (types.go):
  - Customer:          A person who can incur credit
  - CreditTransaction: One extension of credit (amount, amount_paid)
  - Payment:           Money received from a customer
  - Allocation:        The part of a payment applied to one credit

DESIGN PRINCIPLES:
  1. Derived, not stored: status, balances and tags are computed on read
     from amount/amount_paid. No column can drift out of sync.
  2. Precision: decimal.Decimal with centavo precision, never float64.
  3. Atomicity: every multi-row mutation runs in one store transaction.
  4. Reversibility: each payment remembers exactly where it was applied
     (allocations) so deleting it restores the previous state.

SEE ALSO:
  - balance.go:    Pure balance/status/tag calculations
  - payment.go:    Payment allocator (targeted + FIFO)
  - history.go:    Running-balance reconstruction
  - store.go:      Persistence interface
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CustomerID string
type CreditID string
type PaymentID string

// =============================================================================
// ENUMERATIONS
// =============================================================================

// CreditStatus is derived from amount and amount_paid. It is never persisted.
type CreditStatus string

const (
	StatusUnpaid  CreditStatus = "unpaid"
	StatusPartial CreditStatus = "partial"
	StatusPaid    CreditStatus = "paid"
)

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodOther        PaymentMethod = "other"
)

// Valid reports whether m is one of the accepted payment methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodOther:
		return true
	}
	return false
}

// CustomerTag is the behavioral label shown next to a customer.
type CustomerTag string

const (
	TagNone             CustomerTag = "none"
	TagGoodPayer        CustomerTag = "good_payer"
	TagFrequentBorrower CustomerTag = "frequent_borrower"
	TagOverdue          CustomerTag = "overdue"
)

// =============================================================================
// CUSTOMER
// =============================================================================

type Customer struct {
	ID      CustomerID
	Name    string
	Phone   string
	Address string
	Notes   string

	// CreditLimit is a soft cap. The ledger reports when it is exceeded
	// but never refuses a credit because of it.
	CreditLimit decimal.NullDecimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// CREDIT TRANSACTION
// =============================================================================

type CreditTransaction struct {
	ID         CreditID
	CustomerID CustomerID

	// Optional product reference. ProductName may be free text when the
	// item is not tracked in inventory.
	ProductID   string
	ProductName string
	Quantity    int

	Amount     decimal.Decimal
	AmountPaid decimal.Decimal

	Date    time.Time
	DueDate *time.Time
	Notes   string

	CreatedAt time.Time

	// Seq is the global insertion order shared with payments. Used to break
	// ties between events with the same date.
	Seq int64
}

// Status derives the paid status from amount and amount_paid.
func (c CreditTransaction) Status() CreditStatus {
	return TransactionStatus(c.Amount, c.AmountPaid)
}

// Remaining is what is still owed on this transaction.
func (c CreditTransaction) Remaining() decimal.Decimal {
	r := c.Amount.Sub(c.AmountPaid)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// IsSettled reports whether nothing remains to be paid.
func (c CreditTransaction) IsSettled() bool {
	return c.Status() == StatusPaid
}

// =============================================================================
// PAYMENT
// =============================================================================

type Payment struct {
	ID         PaymentID
	CustomerID CustomerID

	// CreditTransactionID is set only for targeted payments. Untargeted
	// payments are spread FIFO and recorded through allocations.
	CreditTransactionID CreditID

	Amount decimal.Decimal
	Method PaymentMethod
	Date   time.Time
	Notes  string

	CreatedAt time.Time
	Seq       int64
}

// IsTargeted reports whether the payment was applied to one specific credit.
func (p Payment) IsTargeted() bool {
	return p.CreditTransactionID != ""
}

// Allocation is the portion of a payment applied to one credit transaction.
// Persisted so that deleting a payment can be reversed exactly.
type Allocation struct {
	PaymentID PaymentID
	CreditID  CreditID
	Amount    decimal.Decimal
}
