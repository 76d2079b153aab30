package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// AgingBucket groups unpaid remainders by how far past due they are.
type AgingBucket string

const (
	AgingCurrent AgingBucket = "current" // no due date, or not yet due
	Aging1To30   AgingBucket = "1-30"
	Aging31To60  AgingBucket = "31-60"
	Aging61To90  AgingBucket = "61-90"
	AgingOver90  AgingBucket = "90+"
)

// AgingBuckets lists buckets from youngest to oldest.
var AgingBuckets = []AgingBucket{AgingCurrent, Aging1To30, Aging31To60, Aging61To90, AgingOver90}

// BucketFor maps days past due to a bucket.
func BucketFor(daysPastDue int) AgingBucket {
	switch {
	case daysPastDue <= 0:
		return AgingCurrent
	case daysPastDue <= 30:
		return Aging1To30
	case daysPastDue <= 60:
		return Aging31To60
	case daysPastDue <= 90:
		return Aging61To90
	default:
		return AgingOver90
	}
}

// AgingReport sums unpaid remainders per bucket.
type AgingReport struct {
	Current    decimal.Decimal
	Days1To30  decimal.Decimal
	Days31To60 decimal.Decimal
	Days61To90 decimal.Decimal
	Over90     decimal.Decimal
}

// Get returns the total of one bucket.
func (a AgingReport) Get(b AgingBucket) decimal.Decimal {
	switch b {
	case Aging1To30:
		return a.Days1To30
	case Aging31To60:
		return a.Days31To60
	case Aging61To90:
		return a.Days61To90
	case AgingOver90:
		return a.Over90
	default:
		return a.Current
	}
}

func (a *AgingReport) add(b AgingBucket, amount decimal.Decimal) {
	switch b {
	case Aging1To30:
		a.Days1To30 = a.Days1To30.Add(amount)
	case Aging31To60:
		a.Days31To60 = a.Days31To60.Add(amount)
	case Aging61To90:
		a.Days61To90 = a.Days61To90.Add(amount)
	case AgingOver90:
		a.Over90 = a.Over90.Add(amount)
	default:
		a.Current = a.Current.Add(amount)
	}
}

// Merge returns the bucket-wise sum of a and b.
func (a AgingReport) Merge(b AgingReport) AgingReport {
	for _, bucket := range AgingBuckets {
		a.add(bucket, b.Get(bucket))
	}
	return a
}

// Total is the sum over all buckets.
func (a AgingReport) Total() decimal.Decimal {
	return a.Current.Add(a.Days1To30).Add(a.Days31To60).Add(a.Days61To90).Add(a.Over90)
}

// PastDue is everything outside the current bucket.
func (a AgingReport) PastDue() decimal.Decimal {
	return a.Total().Sub(a.Current)
}

// Aging buckets the remaining balance of every unsettled credit.
func Aging(credits []CreditTransaction, today time.Time) AgingReport {
	var report AgingReport
	loc := today.Location()
	for _, c := range credits {
		remaining := c.Remaining()
		if !remaining.IsPositive() {
			continue
		}
		days := 0
		if c.DueDate != nil {
			days = DaysBetween(*c.DueDate, today, loc)
		}
		report.add(BucketFor(days), remaining)
	}
	return report
}
