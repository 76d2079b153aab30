// Package memory provides an in-memory ledger.TxStore.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/sarisari/tindahan/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every row in maps guarded by one mutex. It follows the same
// ordering and cascade rules as the SQLite store.
type Memory struct {
	mu   sync.Mutex
	data *tables
}

var (
	_ ledger.TxStore = (*Memory)(nil)
	_ ledger.Store   = view{}
)

type tables struct {
	customers   map[ledger.CustomerID]ledger.Customer
	credits     map[ledger.CreditID]ledger.CreditTransaction
	payments    map[ledger.PaymentID]ledger.Payment
	allocations []ledger.Allocation
	seq         int64
}

func newTables() *tables {
	return &tables{
		customers: make(map[ledger.CustomerID]ledger.Customer),
		credits:   make(map[ledger.CreditID]ledger.CreditTransaction),
		payments:  make(map[ledger.PaymentID]ledger.Payment),
	}
}

func New() *Memory {
	return &Memory{data: newTables()}
}

// Reset drops every row and restarts the sequence.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = newTables()
	return nil
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	if err := fn(view{t: m.data}); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

// locked runs fn on the live tables outside any transaction.
func (m *Memory) locked(fn func(v view) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(view{t: m.data})
}

func (t *tables) clone() *tables {
	c := &tables{
		customers:   make(map[ledger.CustomerID]ledger.Customer, len(t.customers)),
		credits:     make(map[ledger.CreditID]ledger.CreditTransaction, len(t.credits)),
		payments:    make(map[ledger.PaymentID]ledger.Payment, len(t.payments)),
		allocations: slices.Clone(t.allocations),
		seq:         t.seq,
	}
	for k, v := range t.customers {
		c.customers[k] = v
	}
	for k, v := range t.credits {
		c.credits[k] = v
	}
	for k, v := range t.payments {
		c.payments[k] = v
	}
	return c
}

// =============================================================================
// LOCKED WRAPPERS (ledger.Store outside a transaction)
// =============================================================================

func (m *Memory) InsertCustomer(ctx context.Context, c ledger.Customer) error {
	return m.locked(func(v view) error { return v.InsertCustomer(ctx, c) })
}

func (m *Memory) UpdateCustomer(ctx context.Context, c ledger.Customer) error {
	return m.locked(func(v view) error { return v.UpdateCustomer(ctx, c) })
}

func (m *Memory) GetCustomer(ctx context.Context, id ledger.CustomerID) (c *ledger.Customer, err error) {
	err = m.locked(func(v view) error { c, err = v.GetCustomer(ctx, id); return err })
	return c, err
}

func (m *Memory) ListCustomers(ctx context.Context) (list []ledger.Customer, err error) {
	err = m.locked(func(v view) error { list, err = v.ListCustomers(ctx); return err })
	return list, err
}

func (m *Memory) DeleteCustomer(ctx context.Context, id ledger.CustomerID) (ok bool, err error) {
	err = m.locked(func(v view) error { ok, err = v.DeleteCustomer(ctx, id); return err })
	return ok, err
}

func (m *Memory) InsertCredit(ctx context.Context, c *ledger.CreditTransaction) error {
	return m.locked(func(v view) error { return v.InsertCredit(ctx, c) })
}

func (m *Memory) UpdateCredit(ctx context.Context, c ledger.CreditTransaction) error {
	return m.locked(func(v view) error { return v.UpdateCredit(ctx, c) })
}

func (m *Memory) GetCredit(ctx context.Context, id ledger.CreditID) (c *ledger.CreditTransaction, err error) {
	err = m.locked(func(v view) error { c, err = v.GetCredit(ctx, id); return err })
	return c, err
}

func (m *Memory) ListCredits(ctx context.Context, customerID ledger.CustomerID) (list []ledger.CreditTransaction, err error) {
	err = m.locked(func(v view) error { list, err = v.ListCredits(ctx, customerID); return err })
	return list, err
}

func (m *Memory) ListAllCredits(ctx context.Context) (list []ledger.CreditTransaction, err error) {
	err = m.locked(func(v view) error { list, err = v.ListAllCredits(ctx); return err })
	return list, err
}

func (m *Memory) DeleteCredit(ctx context.Context, id ledger.CreditID) error {
	return m.locked(func(v view) error { return v.DeleteCredit(ctx, id) })
}

func (m *Memory) InsertPayment(ctx context.Context, p *ledger.Payment) error {
	return m.locked(func(v view) error { return v.InsertPayment(ctx, p) })
}

func (m *Memory) GetPayment(ctx context.Context, id ledger.PaymentID) (p *ledger.Payment, err error) {
	err = m.locked(func(v view) error { p, err = v.GetPayment(ctx, id); return err })
	return p, err
}

func (m *Memory) ListPayments(ctx context.Context, customerID ledger.CustomerID) (list []ledger.Payment, err error) {
	err = m.locked(func(v view) error { list, err = v.ListPayments(ctx, customerID); return err })
	return list, err
}

func (m *Memory) ListAllPayments(ctx context.Context) (list []ledger.Payment, err error) {
	err = m.locked(func(v view) error { list, err = v.ListAllPayments(ctx); return err })
	return list, err
}

func (m *Memory) DeletePayment(ctx context.Context, id ledger.PaymentID) error {
	return m.locked(func(v view) error { return v.DeletePayment(ctx, id) })
}

func (m *Memory) InsertAllocation(ctx context.Context, a ledger.Allocation) error {
	return m.locked(func(v view) error { return v.InsertAllocation(ctx, a) })
}

func (m *Memory) ListAllocations(ctx context.Context, paymentID ledger.PaymentID) (list []ledger.Allocation, err error) {
	err = m.locked(func(v view) error { list, err = v.ListAllocations(ctx, paymentID); return err })
	return list, err
}

func (m *Memory) CountAllocationsForCredit(ctx context.Context, creditID ledger.CreditID) (n int, err error) {
	err = m.locked(func(v view) error { n, err = v.CountAllocationsForCredit(ctx, creditID); return err })
	return n, err
}

// =============================================================================
// VIEW - Unlocked access, used inside WithTx and by the wrappers above
// =============================================================================

type view struct {
	t *tables
}

func (v view) InsertCustomer(_ context.Context, c ledger.Customer) error {
	if _, ok := v.t.customers[c.ID]; ok {
		return fmt.Errorf("failed to insert customer: duplicate id %s", c.ID)
	}
	v.t.customers[c.ID] = c
	return nil
}

func (v view) UpdateCustomer(_ context.Context, c ledger.Customer) error {
	if _, ok := v.t.customers[c.ID]; ok {
		v.t.customers[c.ID] = c
	}
	return nil
}

func (v view) GetCustomer(_ context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	c, ok := v.t.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (v view) ListCustomers(_ context.Context) ([]ledger.Customer, error) {
	list := make([]ledger.Customer, 0, len(v.t.customers))
	for _, c := range v.t.customers {
		list = append(list, c)
	}
	slices.SortFunc(list, func(a, b ledger.Customer) int {
		if n := a.CreatedAt.Compare(b.CreatedAt); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return list, nil
}

// DeleteCustomer cascades to credits, payments and allocations.
func (v view) DeleteCustomer(_ context.Context, id ledger.CustomerID) (bool, error) {
	if _, ok := v.t.customers[id]; !ok {
		return false, nil
	}
	delete(v.t.customers, id)
	for cid, c := range v.t.credits {
		if c.CustomerID == id {
			v.dropAllocations(func(a ledger.Allocation) bool { return a.CreditID == cid })
			delete(v.t.credits, cid)
		}
	}
	for pid, p := range v.t.payments {
		if p.CustomerID == id {
			v.dropAllocations(func(a ledger.Allocation) bool { return a.PaymentID == pid })
			delete(v.t.payments, pid)
		}
	}
	return true, nil
}

func (v view) InsertCredit(_ context.Context, c *ledger.CreditTransaction) error {
	if _, ok := v.t.customers[c.CustomerID]; !ok {
		return fmt.Errorf("failed to insert credit: unknown customer %s", c.CustomerID)
	}
	if _, ok := v.t.credits[c.ID]; ok {
		return fmt.Errorf("failed to insert credit: duplicate id %s", c.ID)
	}
	c.Seq = v.nextSeq()
	v.t.credits[c.ID] = *c
	return nil
}

func (v view) UpdateCredit(_ context.Context, c ledger.CreditTransaction) error {
	old, ok := v.t.credits[c.ID]
	if !ok {
		return nil
	}
	// Owner, creation time and sequence are fixed at insert.
	c.CustomerID, c.CreatedAt, c.Seq = old.CustomerID, old.CreatedAt, old.Seq
	v.t.credits[c.ID] = c
	return nil
}

func (v view) GetCredit(_ context.Context, id ledger.CreditID) (*ledger.CreditTransaction, error) {
	c, ok := v.t.credits[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (v view) ListCredits(_ context.Context, customerID ledger.CustomerID) ([]ledger.CreditTransaction, error) {
	return v.credits(func(c ledger.CreditTransaction) bool { return c.CustomerID == customerID }), nil
}

func (v view) ListAllCredits(_ context.Context) ([]ledger.CreditTransaction, error) {
	return v.credits(func(ledger.CreditTransaction) bool { return true }), nil
}

// DeleteCredit drops the credit and its allocations. Payments that targeted
// it become untargeted.
func (v view) DeleteCredit(_ context.Context, id ledger.CreditID) error {
	delete(v.t.credits, id)
	v.dropAllocations(func(a ledger.Allocation) bool { return a.CreditID == id })
	for pid, p := range v.t.payments {
		if p.CreditTransactionID == id {
			p.CreditTransactionID = ""
			v.t.payments[pid] = p
		}
	}
	return nil
}

func (v view) InsertPayment(_ context.Context, p *ledger.Payment) error {
	if _, ok := v.t.customers[p.CustomerID]; !ok {
		return fmt.Errorf("failed to insert payment: unknown customer %s", p.CustomerID)
	}
	if !p.Method.Valid() {
		return fmt.Errorf("failed to insert payment: invalid method %q", p.Method)
	}
	if p.IsTargeted() {
		if _, ok := v.t.credits[p.CreditTransactionID]; !ok {
			return fmt.Errorf("failed to insert payment: unknown credit %s", p.CreditTransactionID)
		}
	}
	if _, ok := v.t.payments[p.ID]; ok {
		return fmt.Errorf("failed to insert payment: duplicate id %s", p.ID)
	}
	p.Seq = v.nextSeq()
	v.t.payments[p.ID] = *p
	return nil
}

func (v view) GetPayment(_ context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	p, ok := v.t.payments[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (v view) ListPayments(_ context.Context, customerID ledger.CustomerID) ([]ledger.Payment, error) {
	return v.payments(func(p ledger.Payment) bool { return p.CustomerID == customerID }), nil
}

func (v view) ListAllPayments(_ context.Context) ([]ledger.Payment, error) {
	return v.payments(func(ledger.Payment) bool { return true }), nil
}

func (v view) DeletePayment(_ context.Context, id ledger.PaymentID) error {
	delete(v.t.payments, id)
	v.dropAllocations(func(a ledger.Allocation) bool { return a.PaymentID == id })
	return nil
}

func (v view) InsertAllocation(_ context.Context, a ledger.Allocation) error {
	if _, ok := v.t.payments[a.PaymentID]; !ok {
		return fmt.Errorf("failed to insert allocation: unknown payment %s", a.PaymentID)
	}
	if _, ok := v.t.credits[a.CreditID]; !ok {
		return fmt.Errorf("failed to insert allocation: unknown credit %s", a.CreditID)
	}
	for _, x := range v.t.allocations {
		if x.PaymentID == a.PaymentID && x.CreditID == a.CreditID {
			return fmt.Errorf("failed to insert allocation: duplicate %s/%s", a.PaymentID, a.CreditID)
		}
	}
	v.t.allocations = append(v.t.allocations, a)
	return nil
}

// ListAllocations orders allocations the way FIFO applied them.
func (v view) ListAllocations(_ context.Context, paymentID ledger.PaymentID) ([]ledger.Allocation, error) {
	var list []ledger.Allocation
	for _, a := range v.t.allocations {
		if a.PaymentID == paymentID {
			list = append(list, a)
		}
	}
	slices.SortFunc(list, func(a, b ledger.Allocation) int {
		return compareCredits(v.t.credits[a.CreditID], v.t.credits[b.CreditID])
	})
	return list, nil
}

func (v view) CountAllocationsForCredit(_ context.Context, creditID ledger.CreditID) (int, error) {
	n := 0
	for _, a := range v.t.allocations {
		if a.CreditID == creditID {
			n++
		}
	}
	return n, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (v view) nextSeq() int64 {
	v.t.seq++
	return v.t.seq
}

func (v view) dropAllocations(match func(ledger.Allocation) bool) {
	v.t.allocations = slices.DeleteFunc(v.t.allocations, match)
}

func (v view) credits(keep func(ledger.CreditTransaction) bool) []ledger.CreditTransaction {
	list := []ledger.CreditTransaction{}
	for _, c := range v.t.credits {
		if keep(c) {
			list = append(list, c)
		}
	}
	slices.SortFunc(list, compareCredits)
	return list
}

func (v view) payments(keep func(ledger.Payment) bool) []ledger.Payment {
	list := []ledger.Payment{}
	for _, p := range v.t.payments {
		if keep(p) {
			list = append(list, p)
		}
	}
	slices.SortFunc(list, func(a, b ledger.Payment) int {
		if n := a.Date.Compare(b.Date); n != 0 {
			return n
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
	return list
}

func compareCredits(a, b ledger.CreditTransaction) int {
	if n := a.Date.Compare(b.Date); n != 0 {
		return n
	}
	return cmp.Compare(a.Seq, b.Seq)
}
