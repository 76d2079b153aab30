package ledger_test

import (
	"testing"
	"time"

	"github.com/sarisari/tindahan/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func credit(id string, amount, paid float64, date time.Time, due *time.Time) ledger.CreditTransaction {
	return ledger.CreditTransaction{
		ID:         ledger.CreditID(id),
		CustomerID: "c-1",
		Amount:     php(amount),
		AmountPaid: php(paid),
		Date:       date,
		DueDate:    due,
	}
}

func payment(id string, amount float64, date time.Time) ledger.Payment {
	return ledger.Payment{
		ID:         ledger.PaymentID(id),
		CustomerID: "c-1",
		Amount:     php(amount),
		Method:     ledger.MethodCash,
		Date:       date,
	}
}

func ptr[T any](v T) *T { return &v }

// =============================================================================
// STATUS
// =============================================================================

func TestTransactionStatus(t *testing.T) {
	tests := []struct {
		name         string
		amount, paid float64
		want         ledger.CreditStatus
	}{
		{"nothing paid", 100, 0, ledger.StatusUnpaid},
		{"partly paid", 100, 40, ledger.StatusPartial},
		{"exactly paid", 100, 100, ledger.StatusPaid},
		{"overpaid still paid", 100, 120, ledger.StatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ledger.TransactionStatus(php(tt.amount), php(tt.paid)))
		})
	}
}

func TestCreditTransaction_RemainingNeverNegative(t *testing.T) {
	c := credit("t1", 100, 120, day(1), nil)
	assert.True(t, c.Remaining().IsZero())
	assert.True(t, c.IsSettled())
}

// =============================================================================
// BALANCE
// =============================================================================

func TestOutstandingBalance(t *testing.T) {
	// GIVEN: ₱500 + ₱300 credits and a ₱500 payment
	// THEN: ₱300 is outstanding

	credits := []ledger.CreditTransaction{
		credit("t1", 500, 500, day(1), nil),
		credit("t2", 300, 0, day(2), nil),
	}
	payments := []ledger.Payment{payment("p1", 500, day(3))}

	assertMoney(t, 300, ledger.OutstandingBalance(credits, payments))
	assertMoney(t, 300, ledger.Remaining(credits))
}

func TestOutstandingBalance_Empty(t *testing.T) {
	assert.True(t, ledger.OutstandingBalance(nil, nil).IsZero())
}

// =============================================================================
// OVERDUE & TAGS
// =============================================================================

func TestDaysOverdue_EarliestUnpaidDueDate(t *testing.T) {
	// GIVEN: Two past-due credits, the older one already paid
	// THEN: Days overdue is measured from the oldest unpaid due date

	today := day(20)
	credits := []ledger.CreditTransaction{
		credit("t1", 100, 100, day(1), ptr(day(2))),
		credit("t2", 100, 50, day(3), ptr(day(5))),
		credit("t3", 100, 0, day(4), ptr(day(10))),
	}

	days, ok := ledger.DaysOverdue(credits, today)
	require.True(t, ok)
	assert.Equal(t, 15, days)
}

func TestDaysOverdue_DueTodayIsNotOverdue(t *testing.T) {
	credits := []ledger.CreditTransaction{credit("t1", 100, 0, day(1), ptr(day(20)))}

	_, ok := ledger.DaysOverdue(credits, day(20))
	assert.False(t, ok)
}

func TestTag(t *testing.T) {
	rules := ledger.DefaultTagRules()
	today := day(20)

	t.Run("no history is none", func(t *testing.T) {
		assert.Equal(t, ledger.TagNone, ledger.Tag(nil, nil, today, rules))
	})

	t.Run("everything paid is good payer", func(t *testing.T) {
		credits := []ledger.CreditTransaction{credit("t1", 100, 100, day(1), nil)}
		payments := []ledger.Payment{payment("p1", 100, day(2))}
		assert.Equal(t, ledger.TagGoodPayer, ledger.Tag(credits, payments, today, rules))
	})

	t.Run("overdue wins over frequent borrower", func(t *testing.T) {
		var credits []ledger.CreditTransaction
		for i := 1; i <= 6; i++ {
			credits = append(credits, credit("t", 10, 0, day(i), ptr(day(i+1))))
		}
		assert.Equal(t, ledger.TagOverdue, ledger.Tag(credits, nil, today, rules))
	})

	t.Run("many recent credits is frequent borrower", func(t *testing.T) {
		var credits []ledger.CreditTransaction
		for i := 1; i <= 5; i++ {
			credits = append(credits, credit("t", 10, 0, day(i), nil))
		}
		assert.Equal(t, ledger.TagFrequentBorrower, ledger.Tag(credits, nil, today, rules))
	})

	t.Run("credits outside the window do not count", func(t *testing.T) {
		var credits []ledger.CreditTransaction
		for i := 1; i <= 5; i++ {
			credits = append(credits, credit("t", 10, 0, day(i), nil))
		}
		later := today.AddDate(0, 2, 0)
		assert.Equal(t, ledger.TagNone, ledger.Tag(credits, nil, later, rules))
	})
}

func TestSummarize(t *testing.T) {
	// GIVEN: A customer with a ₱200 limit, owing ₱250, one credit overdue
	// THEN: Every derived field reflects the rows

	c := ledger.Customer{ID: "c-1", Name: "Mang Tomas", CreditLimit: ledger.NullPesos(200)}
	credits := []ledger.CreditTransaction{
		credit("t1", 150, 0, day(1), ptr(day(5))),
		credit("t2", 100, 0, day(8), nil),
	}

	s := ledger.Summarize(c, credits, nil, day(10), ledger.DefaultTagRules())

	assertMoney(t, 250, s.OutstandingBalance)
	assertMoney(t, 250, s.TotalCredits)
	assert.True(t, s.TotalPayments.IsZero())
	assert.Equal(t, 2, s.CreditCount)
	assert.Equal(t, 2, s.UnpaidCount)
	assert.Equal(t, ledger.TagOverdue, s.Tag)
	require.NotNil(t, s.DaysOverdue)
	assert.Equal(t, 5, *s.DaysOverdue)
	require.NotNil(t, s.LastTransactionDate)
	assert.True(t, s.LastTransactionDate.Equal(day(8)))
	assert.True(t, s.OverLimit)
	assert.True(t, s.HasBalance())
}

// =============================================================================
// AGING
// =============================================================================

func TestBucketFor(t *testing.T) {
	assert.Equal(t, ledger.AgingCurrent, ledger.BucketFor(-3))
	assert.Equal(t, ledger.AgingCurrent, ledger.BucketFor(0))
	assert.Equal(t, ledger.Aging1To30, ledger.BucketFor(1))
	assert.Equal(t, ledger.Aging1To30, ledger.BucketFor(30))
	assert.Equal(t, ledger.Aging31To60, ledger.BucketFor(31))
	assert.Equal(t, ledger.Aging61To90, ledger.BucketFor(90))
	assert.Equal(t, ledger.AgingOver90, ledger.BucketFor(91))
}

func TestAging_BucketsRemainingByDueDate(t *testing.T) {
	today := time.Date(2025, time.June, 30, 12, 0, 0, 0, ledger.DefaultLocation)
	due := func(daysAgo int) *time.Time { return ptr(today.AddDate(0, 0, -daysAgo)) }

	credits := []ledger.CreditTransaction{
		credit("no-due", 10, 0, day(1), nil),
		credit("future", 20, 0, day(1), ptr(today.AddDate(0, 0, 5))),
		credit("d10", 100, 40, day(1), due(10)),
		credit("d45", 200, 0, day(1), due(45)),
		credit("d75", 300, 0, day(1), due(75)),
		credit("d120", 400, 0, day(1), due(120)),
		credit("paid", 500, 500, day(1), due(120)),
	}

	r := ledger.Aging(credits, today)

	assertMoney(t, 30, r.Current)
	assertMoney(t, 60, r.Days1To30)
	assertMoney(t, 200, r.Days31To60)
	assertMoney(t, 300, r.Days61To90)
	assertMoney(t, 400, r.Over90)
	assertMoney(t, 990, r.Total())
	assertMoney(t, 960, r.PastDue())
	assert.True(t, r.Total().Equal(ledger.Remaining(credits)))
}

// =============================================================================
// CALENDAR
// =============================================================================

func TestDaysBetween_UsesStoreCalendar(t *testing.T) {
	// 23:30 UTC on the 1st is already the 2nd in Manila.
	from := time.Date(2025, time.March, 1, 23, 30, 0, 0, time.UTC)
	to := time.Date(2025, time.March, 3, 1, 0, 0, 0, ledger.DefaultLocation)

	assert.Equal(t, 1, ledger.DaysBetween(from, to, ledger.DefaultLocation))
	assert.True(t, ledger.SameDay(from, day(2), ledger.DefaultLocation))
}
