/*
Package sqlite provides a SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Persists customers, credit transactions, payments and payment
  allocations in one local database file. Rows only: status, balances and
  tags are derived by the ledger package and never written here.

KEY TABLES:
  customers:            Customer identity and contact info
  credit_transactions:  amount / amount_paid per credit (no status column)
  payments:             Payments received
  payment_allocations:  Where each payment landed (for exact reversal)
  ledger_sequence:      Global insertion counter shared by credits/payments

FOREIGN KEYS:
  Enabled per connection (_foreign_keys=on). Deleting a customer cascades
  to its credits, payments and allocations.

INDEXES:
  - idx_credit_transactions_customer_date: per-customer credit lists (hot path)
  - idx_payments_customer_date:            per-customer payment lists
  - idx_payment_allocations_credit:        delete-credit guard

CONCURRENCY:
  One connection (SetMaxOpenConns(1)), so database/sql serializes every
  statement. WithTx additionally holds a write lock for the whole unit and
  hands the callback a tx-scoped store; the callback must not touch the
  parent Store or it would wait on its own connection.

MONEY & TIME:
  Amounts are TEXT with two decimals (decimal.Decimal round-trips exactly).
  Times are UTC TEXT in a fixed-width layout so they also sort as text.

USAGE:
  store, err := sqlite.New("./tindahan.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := ledger.NewService(store)

SEE ALSO:
  - ledger/store.go: Interface definitions
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sarisari/tindahan/ledger"
	"github.com/shopspring/decimal"
)

// timeLayout is fixed-width so lexical order equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// querier is what both *sql.DB and *sql.Tx offer: execute, query-all,
// query-one.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements ledger.TxStore using SQLite.
type Store struct {
	conn
	db *sql.DB
	mu sync.Mutex
}

// conn runs every row operation against a querier. Store uses the database
// handle; WithTx uses the transaction.
type conn struct {
	q querier
}

var (
	_ ledger.TxStore = (*Store)(nil)
	_ ledger.Store   = conn{}
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// access to the file.
	db.SetMaxOpenConns(1)

	store := &Store{conn: conn{q: db}, db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL CHECK (length(trim(name)) > 0),
		phone TEXT,
		address TEXT,
		notes TEXT,
		credit_limit TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_customers_created
		ON customers(created_at, id);

	-- No status column: status is derived from amount and amount_paid.
	CREATE TABLE IF NOT EXISTS credit_transactions (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
		product_id TEXT,
		product_name TEXT,
		quantity INTEGER NOT NULL DEFAULT 0,
		amount TEXT NOT NULL,
		amount_paid TEXT NOT NULL DEFAULT '0.00',
		date TEXT NOT NULL,
		due_date TEXT,
		notes TEXT,
		seq INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_credit_transactions_customer_date
		ON credit_transactions(customer_id, date, seq);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
		credit_transaction_id TEXT REFERENCES credit_transactions(id) ON DELETE SET NULL,
		amount TEXT NOT NULL,
		payment_method TEXT NOT NULL CHECK (payment_method IN ('cash', 'bank_transfer', 'other')),
		date TEXT NOT NULL,
		notes TEXT,
		seq INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_customer_date
		ON payments(customer_id, date, seq);

	CREATE TABLE IF NOT EXISTS payment_allocations (
		payment_id TEXT NOT NULL REFERENCES payments(id) ON DELETE CASCADE,
		credit_transaction_id TEXT NOT NULL REFERENCES credit_transactions(id) ON DELETE CASCADE,
		amount TEXT NOT NULL,
		PRIMARY KEY (payment_id, credit_transaction_id)
	);

	CREATE INDEX IF NOT EXISTS idx_payment_allocations_credit
		ON payment_allocations(credit_transaction_id);

	CREATE TABLE IF NOT EXISTS ledger_sequence (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);

	INSERT OR IGNORE INTO ledger_sequence (name, value) VALUES ('events', 0);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Reset deletes every row and restarts the sequence. Used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	return s.WithTx(ctx, func(st ledger.Store) error {
		q := st.(conn).q
		for _, table := range []string{"payment_allocations", "payments", "credit_transactions", "customers"} {
			if _, err := q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to reset %s: %w", table, err)
			}
		}
		_, err := q.ExecContext(ctx, "UPDATE ledger_sequence SET value = 0")
		return err
	})
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(conn{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

const customerColumns = `id, name, phone, address, notes, credit_limit, created_at, updated_at`

func (c conn) InsertCustomer(ctx context.Context, cu ledger.Customer) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cu.ID, cu.Name, nullString(cu.Phone), nullString(cu.Address), nullString(cu.Notes),
		nullDecimal(cu.CreditLimit), formatTime(cu.CreatedAt), formatTime(cu.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert customer: %w", err)
	}
	return nil
}

func (c conn) UpdateCustomer(ctx context.Context, cu ledger.Customer) error {
	_, err := c.q.ExecContext(ctx, `
		UPDATE customers
		SET name = ?, phone = ?, address = ?, notes = ?, credit_limit = ?, updated_at = ?
		WHERE id = ?`,
		cu.Name, nullString(cu.Phone), nullString(cu.Address), nullString(cu.Notes),
		nullDecimal(cu.CreditLimit), formatTime(cu.UpdatedAt), cu.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	return nil
}

func (c conn) GetCustomer(ctx context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	cu, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cu, nil
}

func (c conn) ListCustomers(ctx context.Context) ([]ledger.Customer, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	customers := []ledger.Customer{}
	for rows.Next() {
		cu, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, cu)
	}
	return customers, rows.Err()
}

func (c conn) DeleteCustomer(ctx context.Context, id ledger.CustomerID) (bool, error) {
	res, err := c.q.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete customer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// =============================================================================
// CREDIT TRANSACTIONS
// =============================================================================

const creditColumns = `id, customer_id, product_id, product_name, quantity, amount, amount_paid,
	date, due_date, notes, seq, created_at`

func (c conn) InsertCredit(ctx context.Context, cr *ledger.CreditTransaction) error {
	seq, err := c.nextSeq(ctx)
	if err != nil {
		return err
	}
	cr.Seq = seq

	_, err = c.q.ExecContext(ctx, `
		INSERT INTO credit_transactions (`+creditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cr.ID, cr.CustomerID, nullString(cr.ProductID), nullString(cr.ProductName), cr.Quantity,
		formatMoney(cr.Amount), formatMoney(cr.AmountPaid),
		formatTime(cr.Date), nullTime(cr.DueDate), nullString(cr.Notes),
		cr.Seq, formatTime(cr.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert credit: %w", err)
	}
	return nil
}

func (c conn) UpdateCredit(ctx context.Context, cr ledger.CreditTransaction) error {
	_, err := c.q.ExecContext(ctx, `
		UPDATE credit_transactions
		SET product_id = ?, product_name = ?, quantity = ?, amount = ?, amount_paid = ?,
		    due_date = ?, notes = ?
		WHERE id = ?`,
		nullString(cr.ProductID), nullString(cr.ProductName), cr.Quantity,
		formatMoney(cr.Amount), formatMoney(cr.AmountPaid),
		nullTime(cr.DueDate), nullString(cr.Notes), cr.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update credit: %w", err)
	}
	return nil
}

func (c conn) GetCredit(ctx context.Context, id ledger.CreditID) (*ledger.CreditTransaction, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+creditColumns+` FROM credit_transactions WHERE id = ?`, id)
	cr, err := scanCredit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

func (c conn) ListCredits(ctx context.Context, customerID ledger.CustomerID) ([]ledger.CreditTransaction, error) {
	return c.queryCredits(ctx, `
		SELECT `+creditColumns+` FROM credit_transactions
		WHERE customer_id = ?
		ORDER BY date ASC, seq ASC`, customerID)
}

func (c conn) ListAllCredits(ctx context.Context) ([]ledger.CreditTransaction, error) {
	return c.queryCredits(ctx, `
		SELECT `+creditColumns+` FROM credit_transactions
		ORDER BY date ASC, seq ASC`)
}

func (c conn) DeleteCredit(ctx context.Context, id ledger.CreditID) error {
	_, err := c.q.ExecContext(ctx, `DELETE FROM credit_transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete credit: %w", err)
	}
	return nil
}

func (c conn) queryCredits(ctx context.Context, query string, args ...any) ([]ledger.CreditTransaction, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query credits: %w", err)
	}
	defer rows.Close()

	credits := []ledger.CreditTransaction{}
	for rows.Next() {
		cr, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		credits = append(credits, cr)
	}
	return credits, rows.Err()
}

// =============================================================================
// PAYMENTS
// =============================================================================

const paymentColumns = `id, customer_id, credit_transaction_id, amount, payment_method, date, notes, seq, created_at`

func (c conn) InsertPayment(ctx context.Context, p *ledger.Payment) error {
	seq, err := c.nextSeq(ctx)
	if err != nil {
		return err
	}
	p.Seq = seq

	_, err = c.q.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CustomerID, nullString(string(p.CreditTransactionID)), formatMoney(p.Amount),
		string(p.Method), formatTime(p.Date), nullString(p.Notes), p.Seq, formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (c conn) GetPayment(ctx context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c conn) ListPayments(ctx context.Context, customerID ledger.CustomerID) ([]ledger.Payment, error) {
	return c.queryPayments(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE customer_id = ?
		ORDER BY date ASC, seq ASC`, customerID)
}

func (c conn) ListAllPayments(ctx context.Context) ([]ledger.Payment, error) {
	return c.queryPayments(ctx, `
		SELECT `+paymentColumns+` FROM payments
		ORDER BY date ASC, seq ASC`)
}

func (c conn) DeletePayment(ctx context.Context, id ledger.PaymentID) error {
	_, err := c.q.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	return nil
}

func (c conn) queryPayments(ctx context.Context, query string, args ...any) ([]ledger.Payment, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	payments := []ledger.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

func (c conn) InsertAllocation(ctx context.Context, a ledger.Allocation) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO payment_allocations (payment_id, credit_transaction_id, amount)
		VALUES (?, ?, ?)`,
		a.PaymentID, a.CreditID, formatMoney(a.Amount),
	)
	if err != nil {
		return fmt.Errorf("failed to insert allocation: %w", err)
	}
	return nil
}

func (c conn) ListAllocations(ctx context.Context, paymentID ledger.PaymentID) ([]ledger.Allocation, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT a.payment_id, a.credit_transaction_id, a.amount
		FROM payment_allocations a
		JOIN credit_transactions c ON c.id = a.credit_transaction_id
		WHERE a.payment_id = ?
		ORDER BY c.date ASC, c.seq ASC`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	allocations := []ledger.Allocation{}
	for rows.Next() {
		var (
			a      ledger.Allocation
			amount string
		)
		if err := rows.Scan(&a.PaymentID, &a.CreditID, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		if a.Amount, err = parseMoney(amount); err != nil {
			return nil, err
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

func (c conn) CountAllocationsForCredit(ctx context.Context, creditID ledger.CreditID) (int, error) {
	var n int
	err := c.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payment_allocations WHERE credit_transaction_id = ?`, creditID,
	).Scan(&n)
	return n, err
}

// nextSeq hands out the next global insertion number.
func (c conn) nextSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := c.q.QueryRowContext(ctx,
		`UPDATE ledger_sequence SET value = value + 1 WHERE name = 'events' RETURNING value`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate sequence: %w", err)
	}
	return seq, nil
}

// =============================================================================
// SCANNING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanCustomer(s scanner) (ledger.Customer, error) {
	var (
		cu                    ledger.Customer
		phone, address, notes sql.NullString
		creditLimit           sql.NullString
		createdAt, updatedAt  string
	)
	err := s.Scan(&cu.ID, &cu.Name, &phone, &address, &notes, &creditLimit, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cu, err
		}
		return cu, fmt.Errorf("failed to scan customer: %w", err)
	}
	cu.Phone = phone.String
	cu.Address = address.String
	cu.Notes = notes.String
	if creditLimit.Valid {
		d, err := parseMoney(creditLimit.String)
		if err != nil {
			return cu, err
		}
		cu.CreditLimit = decimal.NewNullDecimal(d)
	}
	cu.CreatedAt = parseTime(createdAt)
	cu.UpdatedAt = parseTime(updatedAt)
	return cu, nil
}

func scanCredit(s scanner) (ledger.CreditTransaction, error) {
	var (
		cr                     ledger.CreditTransaction
		productID, productName sql.NullString
		amount, amountPaid     string
		date, createdAt        string
		dueDate, notes         sql.NullString
	)
	err := s.Scan(&cr.ID, &cr.CustomerID, &productID, &productName, &cr.Quantity,
		&amount, &amountPaid, &date, &dueDate, &notes, &cr.Seq, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cr, err
		}
		return cr, fmt.Errorf("failed to scan credit: %w", err)
	}
	cr.ProductID = productID.String
	cr.ProductName = productName.String
	cr.Notes = notes.String
	if cr.Amount, err = parseMoney(amount); err != nil {
		return cr, err
	}
	if cr.AmountPaid, err = parseMoney(amountPaid); err != nil {
		return cr, err
	}
	cr.Date = parseTime(date)
	if dueDate.Valid {
		t := parseTime(dueDate.String)
		cr.DueDate = &t
	}
	cr.CreatedAt = parseTime(createdAt)
	return cr, nil
}

func scanPayment(s scanner) (ledger.Payment, error) {
	var (
		p               ledger.Payment
		creditID, notes sql.NullString
		amount, method  string
		date, createdAt string
	)
	err := s.Scan(&p.ID, &p.CustomerID, &creditID, &amount, &method, &date, &notes, &p.Seq, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("failed to scan payment: %w", err)
	}
	p.CreditTransactionID = ledger.CreditID(creditID.String)
	p.Method = ledger.PaymentMethod(method)
	p.Notes = notes.String
	if p.Amount, err = parseMoney(amount); err != nil {
		return p, err
	}
	p.Date = parseTime(date)
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Rows written by hand or older tools may use plain RFC3339.
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(ledger.CentavoPlaces)
}

func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt amount %q: %w", s, err)
	}
	return d, nil
}

func nullDecimal(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return formatMoney(d.Decimal)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
