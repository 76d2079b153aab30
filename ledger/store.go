/*
store.go - Persistence interface for customers, credits and payments

PURPOSE:
  Defines the interface between the ledger logic and the database. The
  Store owns raw rows and nothing else: no business rules, no derived
  values. Status and balances are never written.

KEY INTERFACES:
  Store:   Row-level reads and writes
  TxStore: Store + WithTx for atomic multi-row units

ATOMIC UNITS:
  WithTx() gives all-or-nothing semantics. FIFO allocation touching five
  credits either updates all five plus the payment and its allocations,
  or none of them.

READS:
  Get* return (nil, nil) when the row does not exist. List* return an
  empty slice. "No data" is never an error.

IMPLEMENTATIONS:
  - store/sqlite: SQLite (embedded, single local file)
  - store/memory: In-memory, snapshot + rollback (for testing/dev)

SEE ALSO:
  - service.go: Uses TxStore for every mutation
*/
package ledger

import "context"

// =============================================================================
// STORE - Row-level persistence
// =============================================================================

type Store interface {
	// Customers
	InsertCustomer(ctx context.Context, c Customer) error
	UpdateCustomer(ctx context.Context, c Customer) error
	GetCustomer(ctx context.Context, id CustomerID) (*Customer, error)
	// ListCustomers returns customers ordered by creation time, then id.
	ListCustomers(ctx context.Context) ([]Customer, error)
	// DeleteCustomer removes the customer and, by cascade, its credits,
	// payments and allocations. Returns false if nothing was deleted.
	DeleteCustomer(ctx context.Context, id CustomerID) (bool, error)

	// Credit transactions. InsertCredit assigns c.Seq.
	InsertCredit(ctx context.Context, c *CreditTransaction) error
	UpdateCredit(ctx context.Context, c CreditTransaction) error
	GetCredit(ctx context.Context, id CreditID) (*CreditTransaction, error)
	// ListCredits returns a customer's credits ordered by date, then seq.
	ListCredits(ctx context.Context, customerID CustomerID) ([]CreditTransaction, error)
	ListAllCredits(ctx context.Context) ([]CreditTransaction, error)
	DeleteCredit(ctx context.Context, id CreditID) error

	// Payments. InsertPayment assigns p.Seq.
	InsertPayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id PaymentID) (*Payment, error)
	// ListPayments returns a customer's payments ordered by date, then seq.
	ListPayments(ctx context.Context, customerID CustomerID) ([]Payment, error)
	ListAllPayments(ctx context.Context) ([]Payment, error)
	// DeletePayment removes the payment and its allocations.
	DeletePayment(ctx context.Context, id PaymentID) error

	// Allocations
	InsertAllocation(ctx context.Context, a Allocation) error
	ListAllocations(ctx context.Context, paymentID PaymentID) ([]Allocation, error)
	CountAllocationsForCredit(ctx context.Context, creditID CreditID) (int, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	// fn must only use the Store it is given.
	WithTx(ctx context.Context, fn func(Store) error) error
}
