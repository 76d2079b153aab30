package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/sarisari/tindahan/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CUSTOMERS
// =============================================================================

func TestAddCustomer_RequiresName(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.AddCustomer(context.Background(), ledger.CustomerInput{Name: "   "})

	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
}

func TestGetCustomer_MissingIsNil(t *testing.T) {
	svc, _, _ := newTestService(t)

	cs, err := svc.GetCustomer(context.Background(), "nobody")

	require.NoError(t, err)
	assert.Nil(t, cs)
}

func TestUpdateCustomer(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()
	c := addCustomer(t, svc, "Aling Nena")

	clk.now = testNow.Add(time.Hour)
	limit := php(1000)
	updated, err := svc.UpdateCustomer(ctx, c.ID, ledger.CustomerInput{
		Name:        "Aling Nena Santos",
		Phone:       "0917 123 4567",
		CreditLimit: &limit,
	})
	require.NoError(t, err)
	assert.Equal(t, "Aling Nena Santos", updated.Name)

	got, err := svc.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "0917 123 4567", got.Phone)
	require.True(t, got.CreditLimit.Valid)
	assertMoney(t, 1000, got.CreditLimit.Decimal)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestUpdateCustomer_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.UpdateCustomer(context.Background(), "nobody", ledger.CustomerInput{Name: "X"})

	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestDeleteCustomer_CascadesAndUpdatesKPIs(t *testing.T) {
	// GIVEN: Two customers owing money, one with a payment
	// WHEN: One is deleted
	// THEN: Its credits and payments are gone and KPIs only count the other

	svc, _, _ := newTestService(t)
	ctx := context.Background()
	nena := addCustomer(t, svc, "Aling Nena")
	tomas := addCustomer(t, svc, "Mang Tomas")
	addCredit(t, svc, nena.ID, 500, day(1))
	addCredit(t, svc, tomas.ID, 200, day(2))
	_, err := svc.RecordPayment(ctx, ledger.PaymentInput{CustomerID: nena.ID, Amount: php(100)})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCustomer(ctx, nena.ID))

	credits, err := svc.CustomerCredits(ctx, nena.ID)
	require.NoError(t, err)
	assert.Empty(t, credits)
	payments, err := svc.CustomerPayments(ctx, nena.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)

	k, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, k.TotalCustomers)
	assertMoney(t, 200, k.TotalOutstanding)
	require.NotNil(t, k.MostOwedCustomer)
	assert.Equal(t, tomas.ID, k.MostOwedCustomer.ID)
	assert.True(t, k.TotalCollectedToday.IsZero())

	assert.ErrorIs(t, svc.DeleteCustomer(ctx, nena.ID), ledger.ErrNotFound)
}

// =============================================================================
// CREDITS
// =============================================================================

func TestCreateCredit_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c := addCustomer(t, svc, "Aling Nena")

	tests := []struct {
		name  string
		in    ledger.CreditInput
		field string
	}{
		{"zero amount", ledger.CreditInput{CustomerID: c.ID, Amount: php(0)}, "amount"},
		{"negative amount", ledger.CreditInput{CustomerID: c.ID, Amount: php(-5)}, "amount"},
		{"sub-centavo amount", ledger.CreditInput{CustomerID: c.ID, Amount: decimal.RequireFromString("10.005")}, "amount"},
		{"negative quantity", ledger.CreditInput{CustomerID: c.ID, Amount: php(5), Quantity: -1}, "quantity"},
		{"due before date", ledger.CreditInput{CustomerID: c.ID, Amount: php(5), Date: day(5), DueDate: ptr(day(4))}, "due_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateCredit(ctx, tt.in)
			var verr *ledger.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCreateCredit_UnknownCustomer(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreateCredit(context.Background(), ledger.CreditInput{CustomerID: "ghost", Amount: php(10)})

	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCreateCredit_StartsUnpaid(t *testing.T) {
	svc, _, _ := newTestService(t)
	c := addCustomer(t, svc, "Aling Nena")

	cr := addCredit(t, svc, c.ID, 45.50, day(1))

	assert.Equal(t, ledger.StatusUnpaid, cr.Status())
	assert.True(t, cr.AmountPaid.IsZero())
	assert.NotZero(t, cr.Seq)
}

func TestUpdateCredit_AmountFrozenAfterPayment(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c := addCustomer(t, svc, "Aling Nena")
	cr := addCredit(t, svc, c.ID, 300, day(1))

	amount := php(250)
	updated, err := svc.UpdateCredit(ctx, cr.ID, ledger.CreditUpdate{Amount: &amount})
	require.NoError(t, err)
	assertMoney(t, 250, updated.Amount)

	_, err = svc.RecordPayment(ctx, ledger.PaymentInput{CustomerID: c.ID, Amount: php(50), CreditTransactionID: cr.ID})
	require.NoError(t, err)

	amount = php(400)
	_, err = svc.UpdateCredit(ctx, cr.ID, ledger.CreditUpdate{Amount: &amount})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	notes := "suki"
	updated, err = svc.UpdateCredit(ctx, cr.ID, ledger.CreditUpdate{Notes: &notes, DueDate: ptr(day(15))})
	require.NoError(t, err)
	assert.Equal(t, "suki", updated.Notes)
	require.NotNil(t, updated.DueDate)
	assertBalanceIdentity(t, svc, c.ID)
}

func TestDeleteCredit_RejectedWhilePaymentsApplied(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c := addCustomer(t, svc, "Aling Nena")
	cr := addCredit(t, svc, c.ID, 300, day(1))
	receipt, err := svc.RecordPayment(ctx, ledger.PaymentInput{CustomerID: c.ID, Amount: php(100)})
	require.NoError(t, err)

	err = svc.DeleteCredit(ctx, cr.ID)
	assert.ErrorIs(t, err, ledger.ErrIntegrity)

	// After the payment is gone the credit can go too.
	require.NoError(t, svc.DeletePayment(ctx, receipt.Payment.ID))
	require.NoError(t, svc.DeleteCredit(ctx, cr.ID))

	credits, err := svc.CustomerCredits(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, credits)
	assert.ErrorIs(t, svc.DeleteCredit(ctx, cr.ID), ledger.ErrNotFound)
}

func TestMarkAllAsPaid(t *testing.T) {
	// GIVEN: Three credits, one partly paid
	// WHEN: Everything is marked as paid
	// THEN: All credits are paid, the balance is zero and the identity holds

	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c := addCustomer(t, svc, "Aling Nena")
	t1 := addCredit(t, svc, c.ID, 100, day(1))
	addCredit(t, svc, c.ID, 200, day(2))
	addCredit(t, svc, c.ID, 50, day(3))
	_, err := svc.RecordPayment(ctx, ledger.PaymentInput{CustomerID: c.ID, Amount: php(40), CreditTransactionID: t1.ID})
	require.NoError(t, err)

	receipt, err := svc.MarkAllAsPaid(ctx, c.ID, "", "")
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assertMoney(t, 310, receipt.Payment.Amount)
	assert.Len(t, receipt.Allocations, 3)
	assert.Equal(t, ledger.MethodCash, receipt.Payment.Method)

	credits, err := svc.CustomerCredits(ctx, c.ID)
	require.NoError(t, err)
	for _, cr := range credits {
		assert.Equal(t, ledger.StatusPaid, cr.Status())
	}
	summary, err := svc.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, summary.OutstandingBalance.IsZero())
	assert.Equal(t, ledger.TagGoodPayer, summary.Tag)
	assertBalanceIdentity(t, svc, c.ID)

	// Nothing left to settle.
	again, err := svc.MarkAllAsPaid(ctx, c.ID, ledger.MethodCash, "")
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestMarkAllAsPaid_UnknownCustomer(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.MarkAllAsPaid(context.Background(), "ghost", ledger.MethodCash, "")

	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestRecordPayment_FIFOAcrossCredits(t *testing.T) {
	// GIVEN: Aling Nena owes ₱500 (day 1) and ₱300 (day 2)
	// WHEN: She pays ₱500 on day 3 without naming a credit
	// THEN: The day-1 credit is paid, the day-2 credit untouched, ₱300 left

	svc, _, clk := newTestService(t)
	ctx := context.Background()
	nena := addCustomer(t, svc, "Aling Nena")
	t1 := addCredit(t, svc, nena.ID, 500, day(1))
	t2 := addCredit(t, svc, nena.ID, 300, day(2))

	clk.now = day(3)
	receipt, err := svc.RecordPayment(ctx, ledger.PaymentInput{CustomerID: nena.ID, Amount: php(500)})
	require.NoError(t, err)
	require.Len(t, receipt.Allocations, 1)
	assert.Equal(t, t1.ID, receipt.Allocations[0].CreditID)
	assert.False(t, receipt.Payment.IsTargeted())

	credits, err := svc.CustomerCredits(ctx, nena.ID)
	require.NoError(t, err)
	require.Len(t, credits, 2)
	assert.Equal(t, t1.ID, credits[0].ID)
	assert.Equal(t, ledger.StatusPaid, credits[0].Status())
	assert.Equal(t, t2.ID, credits[1].ID)
	assert.Equal(t, ledger.StatusUnpaid, credits[1].Status())

	summary, err := svc.GetCustomer(ctx, nena.ID)
	require.NoError(t, err)
	assertMoney(t, 300, summary.OutstandingBalance)
	assertBalanceIdentity(t, svc, nena.ID)
}

func TestRecordPayment_FIFOSpillsIntoNextCredit(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c := addCustomer(t, svc, "Aling Nena")
	addCredit(t, svc, c.ID, 500, day(1))
	t2 := addCredit(t, svc, c.ID, 300, day(2))

	receipt, err := svc.RecordPayment(ctx, ledger.PaymentInput{CustomerID: c.ID, Amount: php(650)})
	require.NoError(t, err)
	require.Len(t, receipt.Allocations, 2)

	credits, err := svc.CustomerCredits(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, t2.ID, credits[1].ID)
	assert.Equal(t, ledger.StatusPartial, credits[1].Status())
	assertMoney(t, 150, credits[1].Remaining())
	assertBalanceIdentity(t, svc, c.ID)
}

func TestRecordPayment_TargetedExceedingRemainingRejected(t *testing.T) {
	// GIVEN: A ₱300 credit
	// WHEN: A ₱350 payment targets it
	// THEN: Validation error; nothing is written

	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c := addCustomer(t, svc, "Aling Nena")
	cr := addCredit(t, svc, c.ID, 300, day(1))

	_, err := svc.RecordPayment(ctx, ledger.PaymentInput{CustomerID: c.ID, Amount: php(350), CreditTransactionID: cr.ID})

	var exceeds *ledger.ExceedsRemainingError
	require.ErrorAs(t, err, &exceeds)
	assert.ErrorIs(t, err, ledger.ErrValidation)
	assertMoney(t, 300, exceeds.Remaining)

	payments, err := svc.CustomerPayments(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
	got, err := svc.CustomerCredits(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got[0].AmountPaid.IsZero())
}

func TestRecordPayment_TargetedPartial(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c := addCustomer(t, svc, "Aling Nena")
	addCredit(t, svc, c.ID, 100, day(1))
	cr := addCredit(t, svc, c.ID, 300, day(2))

	receipt, err := svc.RecordPayment(ctx, ledger.PaymentInput{
		CustomerID:          c.ID,
		Amount:              php(120),
		CreditTransactionID: cr.ID,
		Method:              ledger.MethodBankTransfer,
	})
	require.NoError(t, err)
	assert.True(t, receipt.Payment.IsTargeted())

	credits, err := svc.CustomerCredits(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusUnpaid, credits[0].Status())
	assert.Equal(t, ledger.StatusPartial, credits[1].Status())
	assertBalanceIdentity(t, svc, c.ID)
}

func TestRecordPayment_TargetedOtherCustomersCredit(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	nena := addCustomer(t, svc, "Aling Nena")
	tomas := addCustomer(t, svc, "Mang Tomas")
	cr := addCredit(t, svc, tomas.ID, 100, day(1))
	addCredit(t, svc, nena.ID, 100, day(1))

	_, err := svc.RecordPayment(ctx, ledger.PaymentInput{CustomerID: nena.ID, Amount: php(10), CreditTransactionID: cr.ID})

	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "credit_transaction_id", verr.Field)
}

func TestRecordPayment_UntargetedOverpaymentRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c := addCustomer(t, svc, "Aling Nena")
	addCredit(t, svc, c.ID, 100, day(1))

	_, err := svc.RecordPayment(ctx, ledger.PaymentInput{CustomerID: c.ID, Amount: php(100.01)})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = svc.RecordPayment(ctx, ledger.PaymentInput{CustomerID: c.ID, Amount: php(10), Method: "gcash"})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = svc.RecordPayment(ctx, ledger.PaymentInput{CustomerID: "ghost", Amount: php(10)})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestDeletePayment_ReversesAllocations(t *testing.T) {
	// GIVEN: A FIFO payment spread over two credits
	// WHEN: The payment is deleted
	// THEN: Both credits return to their previous amount_paid

	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c := addCustomer(t, svc, "Aling Nena")
	t1 := addCredit(t, svc, c.ID, 500, day(1))
	addCredit(t, svc, c.ID, 300, day(2))
	_, err := svc.RecordPayment(ctx, ledger.PaymentInput{CustomerID: c.ID, Amount: php(100), CreditTransactionID: t1.ID})
	require.NoError(t, err)
	receipt, err := svc.RecordPayment(ctx, ledger.PaymentInput{CustomerID: c.ID, Amount: php(600)})
	require.NoError(t, err)

	require.NoError(t, svc.DeletePayment(ctx, receipt.Payment.ID))

	credits, err := svc.CustomerCredits(ctx, c.ID)
	require.NoError(t, err)
	assertMoney(t, 100, credits[0].AmountPaid)
	assert.True(t, credits[1].AmountPaid.IsZero())
	summary, err := svc.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assertMoney(t, 700, summary.OutstandingBalance)
	assertBalanceIdentity(t, svc, c.ID)

	assert.ErrorIs(t, svc.DeletePayment(ctx, receipt.Payment.ID), ledger.ErrNotFound)
}

func TestBalanceIdentity_HoldsThroughMixedOperations(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	c := addCustomer(t, svc, "Aling Nena")

	t1 := addCredit(t, svc, c.ID, 120.75, day(1))
	addCredit(t, svc, c.ID, 89.50, day(2))
	assertBalanceIdentity(t, svc, c.ID)

	_, err := svc.RecordPayment(ctx, ledger.PaymentInput{CustomerID: c.ID, Amount: php(20.25), CreditTransactionID: t1.ID})
	require.NoError(t, err)
	assertBalanceIdentity(t, svc, c.ID)

	p, err := svc.RecordPayment(ctx, ledger.PaymentInput{CustomerID: c.ID, Amount: php(150)})
	require.NoError(t, err)
	assertBalanceIdentity(t, svc, c.ID)

	addCredit(t, svc, c.ID, 35, day(4))
	require.NoError(t, svc.DeletePayment(ctx, p.Payment.ID))
	assertBalanceIdentity(t, svc, c.ID)

	_, err = svc.MarkAllAsPaid(ctx, c.ID, ledger.MethodOther, "year-end")
	require.NoError(t, err)
	assertBalanceIdentity(t, svc, c.ID)
}
