package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/sarisari/tindahan/ledger"
	"github.com/sarisari/tindahan/store/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// testNow is "today" for every service test: 10 March 2025, 10:00 in Manila.
var testNow = time.Date(2025, time.March, 10, 10, 0, 0, 0, ledger.DefaultLocation)

// clock ticks a millisecond per reading so rows created in a row keep a
// stable creation order.
type clock struct{ now time.Time }

func (c *clock) Now() time.Time {
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func newTestService(t *testing.T) (*ledger.Service, *sqlite.Store, *clock) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clk := &clock{now: testNow}
	svc := ledger.NewService(store, ledger.WithClock(clk.Now))
	return svc, store, clk
}

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 9, 0, 0, 0, ledger.DefaultLocation)
}

func php(v float64) decimal.Decimal {
	return ledger.Pesos(v)
}

func assertMoney(t *testing.T, want float64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, php(want).Equal(got), "want %s, got %s", php(want).StringFixed(2), got.StringFixed(2))
}

func addCustomer(t *testing.T, svc *ledger.Service, name string) *ledger.Customer {
	t.Helper()
	c, err := svc.AddCustomer(context.Background(), ledger.CustomerInput{Name: name})
	require.NoError(t, err)
	return c
}

func addCredit(t *testing.T, svc *ledger.Service, id ledger.CustomerID, amount float64, date time.Time) *ledger.CreditTransaction {
	t.Helper()
	cr, err := svc.CreateCredit(context.Background(), ledger.CreditInput{
		CustomerID:  id,
		Amount:      php(amount),
		ProductName: "Sardinas",
		Quantity:    1,
		Date:        date,
	})
	require.NoError(t, err)
	return cr
}

// assertBalanceIdentity checks Σ credits − Σ payments equals the per-credit
// remainder, and that amount_paid stays within bounds.
func assertBalanceIdentity(t *testing.T, svc *ledger.Service, id ledger.CustomerID) {
	t.Helper()
	ctx := context.Background()
	credits, err := svc.CustomerCredits(ctx, id)
	require.NoError(t, err)
	payments, err := svc.CustomerPayments(ctx, id)
	require.NoError(t, err)

	outstanding := ledger.OutstandingBalance(credits, payments)
	assert.True(t, outstanding.Equal(ledger.Remaining(credits)),
		"outstanding %s != remaining %s", outstanding, ledger.Remaining(credits))
	for _, c := range credits {
		assert.False(t, c.AmountPaid.IsNegative(), "credit %s amount_paid negative", c.ID)
		assert.False(t, c.AmountPaid.GreaterThan(c.Amount), "credit %s overpaid", c.ID)
	}
}
