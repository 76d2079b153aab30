package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sarisari/tindahan/ledger"
	"github.com/sarisari/tindahan/store/memory"
	"github.com/sarisari/tindahan/store/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST STORES
// =============================================================================

// racingStore lets another write land as soon as someone lists payments
// outside a transaction.
type racingStore struct {
	*sqlite.Store
	once  sync.Once
	write func()
}

func (r *racingStore) ListPayments(ctx context.Context, id ledger.CustomerID) ([]ledger.Payment, error) {
	r.once.Do(r.write)
	return r.Store.ListPayments(ctx, id)
}

var errDiskFull = errors.New("disk full")

// failingStore fails the failOn-th UpdateCredit made inside a transaction
// once armed.
type failingStore struct {
	ledger.TxStore
	armed  bool
	failOn int
	calls  int
}

func (f *failingStore) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	return f.TxStore.WithTx(ctx, func(st ledger.Store) error {
		return fn(&failingTx{Store: st, parent: f})
	})
}

type failingTx struct {
	ledger.Store
	parent *failingStore
}

func (t *failingTx) UpdateCredit(ctx context.Context, c ledger.CreditTransaction) error {
	if t.parent.armed {
		t.parent.calls++
		if t.parent.calls == t.parent.failOn {
			return errDiskFull
		}
	}
	return t.Store.UpdateCredit(ctx, c)
}

// =============================================================================
// READ SNAPSHOTS
// =============================================================================

func TestGetCustomer_ConcurrentPaymentIsAllOrNothing(t *testing.T) {
	// GIVEN: A ₱500 overdue credit, and a ₱500 payment that commits while
	//        the customer is being read
	// WHEN: Reading the customer summary
	// THEN: Balance, unpaid count and tag all describe the same ledger state

	ctx := context.Background()
	sqliteStore, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	store := &racingStore{Store: sqliteStore}
	svc := ledger.NewService(store, ledger.WithClock((&clock{now: testNow}).Now))

	nena := addCustomer(t, svc, "Aling Nena")
	due := day(1)
	_, err = svc.CreateCredit(ctx, ledger.CreditInput{CustomerID: nena.ID, Amount: php(500), Date: day(1), DueDate: &due})
	require.NoError(t, err)

	store.write = func() {
		_, err := svc.RecordPayment(ctx, ledger.PaymentInput{CustomerID: nena.ID, Amount: php(500)})
		require.NoError(t, err)
	}

	cs, err := svc.GetCustomer(ctx, nena.ID)
	require.NoError(t, err)
	require.NotNil(t, cs)

	if cs.OutstandingBalance.IsZero() {
		assert.Zero(t, cs.UnpaidCount)
		assert.NotEqual(t, ledger.TagOverdue, cs.Tag)
	} else {
		assertMoney(t, 500, cs.OutstandingBalance)
		assert.Equal(t, 1, cs.UnpaidCount)
		assert.Equal(t, ledger.TagOverdue, cs.Tag)
	}

	// The payment still lands, and later reads see all of it.
	store.once.Do(store.write)
	cs, err = svc.GetCustomer(ctx, nena.ID)
	require.NoError(t, err)
	assert.True(t, cs.OutstandingBalance.IsZero())
	assert.Zero(t, cs.UnpaidCount)

	entries, err := svc.CreditHistoryList(ctx, nena.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assertMoney(t, 0, entries[1].RunningBalance)
}

// =============================================================================
// ATOMIC WRITES
// =============================================================================

func TestMultiCreditWrites_RollBackWhenInterrupted(t *testing.T) {
	stores := map[string]func(t *testing.T) ledger.TxStore{
		"sqlite": func(t *testing.T) ledger.TxStore {
			s, err := sqlite.New(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"memory": func(t *testing.T) ledger.TxStore { return memory.New() },
	}
	ops := map[string]func(svc *ledger.Service, id ledger.CustomerID) error{
		"fifo payment": func(svc *ledger.Service, id ledger.CustomerID) error {
			_, err := svc.RecordPayment(context.Background(), ledger.PaymentInput{CustomerID: id, Amount: php(250)})
			return err
		},
		"mark all paid": func(svc *ledger.Service, id ledger.CustomerID) error {
			_, err := svc.MarkAllAsPaid(context.Background(), id, ledger.MethodCash, "")
			return err
		},
	}

	for storeName, newStore := range stores {
		for opName, op := range ops {
			t.Run(storeName+"/"+opName, func(t *testing.T) {
				// GIVEN: Three ₱100 credits, one of them already half paid
				// WHEN: The second credit update of the operation fails
				// THEN: The error comes back and no payment, allocation or
				//       amount_paid change survives

				ctx := context.Background()
				store := &failingStore{TxStore: newStore(t), failOn: 2}
				svc := ledger.NewService(store, ledger.WithClock((&clock{now: testNow}).Now))

				nena := addCustomer(t, svc, "Aling Nena")
				first := addCredit(t, svc, nena.ID, 100, day(1))
				addCredit(t, svc, nena.ID, 100, day(2))
				addCredit(t, svc, nena.ID, 100, day(3))
				_, err := svc.RecordPayment(ctx, ledger.PaymentInput{CustomerID: nena.ID, CreditTransactionID: first.ID, Amount: php(50)})
				require.NoError(t, err)

				before, err := svc.CustomerCredits(ctx, nena.ID)
				require.NoError(t, err)
				paymentsBefore, err := svc.CustomerPayments(ctx, nena.ID)
				require.NoError(t, err)

				store.armed = true
				err = op(svc, nena.ID)
				assert.ErrorIs(t, err, errDiskFull)
				assert.Equal(t, 2, store.calls)
				store.armed = false

				after, err := svc.CustomerCredits(ctx, nena.ID)
				require.NoError(t, err)
				require.Len(t, after, 3)
				for i := range after {
					assert.True(t, before[i].AmountPaid.Equal(after[i].AmountPaid),
						"credit %d: amount_paid %s became %s", i, before[i].AmountPaid, after[i].AmountPaid)
				}

				payments, err := svc.CustomerPayments(ctx, nena.ID)
				require.NoError(t, err)
				assert.Len(t, payments, len(paymentsBefore))

				for i, c := range after {
					n, err := store.CountAllocationsForCredit(ctx, c.ID)
					require.NoError(t, err)
					if i == 0 {
						assert.Equal(t, 1, n, "only the earlier targeted payment")
					} else {
						assert.Zero(t, n)
					}
				}
				assertBalanceIdentity(t, svc, nena.ID)
			})
		}
	}
}

// =============================================================================
// CREDIT LIMIT
// =============================================================================

func TestAddCustomer_CreditLimitPrecision(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	limit := decimal.RequireFromString("100.005")
	_, err := svc.AddCustomer(ctx, ledger.CustomerInput{Name: "Mang Tomas", CreditLimit: &limit})
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "credit_limit", verr.Field)

	ok := php(100.5)
	c, err := svc.AddCustomer(ctx, ledger.CustomerInput{Name: "Mang Tomas", CreditLimit: &ok})
	require.NoError(t, err)

	got, err := svc.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, got.CreditLimit.Valid)
	assertMoney(t, 100.5, got.CreditLimit.Decimal)

	zero := php(0)
	_, err = svc.UpdateCustomer(ctx, c.ID, ledger.CustomerInput{Name: "Mang Tomas", CreditLimit: &zero})
	assert.NoError(t, err)

	_, err = svc.UpdateCustomer(ctx, c.ID, ledger.CustomerInput{Name: "Mang Tomas", CreditLimit: &limit})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}
