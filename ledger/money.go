package ledger

import (
	"github.com/shopspring/decimal"
)

// CentavoPlaces is the precision every peso amount is kept at.
const CentavoPlaces = 2

// Pesos builds an amount from a float literal. Intended for tests, seeds
// and constants; user input should go through ParsePesos.
func Pesos(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(CentavoPlaces)
}

// ParsePesos parses a decimal string such as "150.25".
func ParsePesos(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "not a decimal number"}
	}
	return d, nil
}

// SumCredits adds up the amounts of credits.
func SumCredits(credits []CreditTransaction) decimal.Decimal {
	total := decimal.Zero
	for _, c := range credits {
		total = total.Add(c.Amount)
	}
	return total
}

// SumPayments adds up the amounts of payments.
func SumPayments(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

// checkAmount rejects non-positive amounts and sub-centavo precision.
func checkAmount(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return &ValidationError{Field: field, Reason: "must be greater than zero"}
	}
	return checkCentavos(field, d)
}

// checkCentavos rejects amounts that would not survive the two-decimal
// storage format unchanged.
func checkCentavos(field string, d decimal.Decimal) error {
	if !d.Equal(d.Round(CentavoPlaces)) {
		return &ValidationError{Field: field, Reason: "must not have more than two decimal places"}
	}
	return nil
}

// NullPesos is Pesos for optional amounts such as a credit limit.
func NullPesos(v float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(Pesos(v))
}
