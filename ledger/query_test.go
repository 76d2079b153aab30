package ledger_test

import (
	"context"
	"testing"

	"github.com/sarisari/tindahan/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedQueryBook creates four customers:
//
//	Aling Nena  owes 500, overdue
//	Mang Tomas  owes 200
//	Ate Baby    paid up
//	Kuya Jun    no history
func seedQueryBook(t *testing.T, svc *ledger.Service) {
	t.Helper()
	ctx := context.Background()

	nena := addCustomer(t, svc, "Aling Nena")
	_, err := svc.CreateCredit(ctx, ledger.CreditInput{
		CustomerID: nena.ID, Amount: php(500), Date: day(1), DueDate: ptr(day(3)),
	})
	require.NoError(t, err)

	tomas := addCustomer(t, svc, "Mang Tomas")
	addCredit(t, svc, tomas.ID, 200, day(8))

	baby, err := svc.AddCustomer(ctx, ledger.CustomerInput{Name: "Ate Baby", Phone: "09181112222"})
	require.NoError(t, err)
	addCredit(t, svc, baby.ID, 80, day(2))
	_, err = svc.RecordPayment(ctx, ledger.PaymentInput{CustomerID: baby.ID, Amount: php(80), Date: day(4)})
	require.NoError(t, err)

	addCustomer(t, svc, "Kuya Jun")
}

func names(list []ledger.CustomerSummary) []string {
	out := make([]string, len(list))
	for i, cs := range list {
		out[i] = cs.Name
	}
	return out
}

func TestListCustomers_Filters(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedQueryBook(t, svc)
	ctx := context.Background()

	tests := []struct {
		filter ledger.CustomerFilter
		want   []string
	}{
		{ledger.FilterAll, []string{"Aling Nena", "Mang Tomas", "Ate Baby", "Kuya Jun"}},
		{ledger.FilterWithBalance, []string{"Aling Nena", "Mang Tomas"}},
		{ledger.FilterPaid, []string{"Ate Baby", "Kuya Jun"}},
		{ledger.FilterOverdue, []string{"Aling Nena"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.filter), func(t *testing.T) {
			list, err := svc.ListCustomers(ctx, tt.filter, ledger.SortBalanceDesc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(list))
		})
	}
}

func TestListCustomers_Sorts(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedQueryBook(t, svc)
	ctx := context.Background()

	list, err := svc.ListCustomers(ctx, ledger.FilterAll, ledger.SortNameAsc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Aling Nena", "Ate Baby", "Kuya Jun", "Mang Tomas"}, names(list))

	list, err = svc.ListCustomers(ctx, ledger.FilterAll, ledger.SortNameDesc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mang Tomas", "Kuya Jun", "Ate Baby", "Aling Nena"}, names(list))

	list, err = svc.ListCustomers(ctx, ledger.FilterWithBalance, ledger.SortBalanceAsc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mang Tomas", "Aling Nena"}, names(list))

	list, err = svc.ListCustomers(ctx, ledger.FilterAll, ledger.SortRecent)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mang Tomas", "Ate Baby", "Aling Nena", "Kuya Jun"}, names(list))
}

func TestListCustomers_DerivedFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedQueryBook(t, svc)

	list, err := svc.ListCustomers(context.Background(), ledger.FilterAll, ledger.SortNameAsc)
	require.NoError(t, err)

	byName := map[string]ledger.CustomerSummary{}
	for _, cs := range list {
		byName[cs.Name] = cs
	}
	assert.Equal(t, ledger.TagOverdue, byName["Aling Nena"].Tag)
	require.NotNil(t, byName["Aling Nena"].DaysOverdue)
	assert.Equal(t, 7, *byName["Aling Nena"].DaysOverdue)
	assert.Equal(t, ledger.TagGoodPayer, byName["Ate Baby"].Tag)
	assert.Equal(t, ledger.TagNone, byName["Kuya Jun"].Tag)
	assert.Nil(t, byName["Kuya Jun"].LastTransactionDate)
	assert.Equal(t, 1, byName["Mang Tomas"].UnpaidCount)
}

func TestSearchCustomers(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedQueryBook(t, svc)
	ctx := context.Background()

	list, err := svc.SearchCustomers(ctx, "to")
	require.NoError(t, err)
	assert.Equal(t, []string{"Mang Tomas"}, names(list))

	list, err = svc.SearchCustomers(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Aling Nena", "Ate Baby", "Kuya Jun", "Mang Tomas"}, names(list))

	list, err = svc.SearchCustomers(ctx, "NENA")
	require.NoError(t, err)
	assert.Equal(t, []string{"Aling Nena"}, names(list))

	list, err = svc.SearchCustomers(ctx, "0918")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ate Baby"}, names(list))

	list, err = svc.SearchCustomers(ctx, "zzz")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestParseCustomerFilterAndSort(t *testing.T) {
	f, err := ledger.ParseCustomerFilter("")
	require.NoError(t, err)
	assert.Equal(t, ledger.FilterAll, f)

	o, err := ledger.ParseCustomerSort("")
	require.NoError(t, err)
	assert.Equal(t, ledger.SortBalanceDesc, o)

	_, err = ledger.ParseCustomerFilter("vip")
	assert.ErrorIs(t, err, ledger.ErrValidation)
	_, err = ledger.ParseCustomerSort("random")
	assert.ErrorIs(t, err, ledger.ErrValidation)
}
