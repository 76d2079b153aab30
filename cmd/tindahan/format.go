package main

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// printer groups thousands the way receipts in the Philippines do (1,234.50).
var printer = message.NewPrinter(language.English)

// peso renders an amount as "₱1,234.50".
func peso(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	return sign + "₱" + printer.Sprint(number.Decimal(d.InexactFloat64(), number.Scale(2)))
}

func shortDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("Jan 2, 2006")
}

func optionalDate(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "-"
	}
	return shortDate(*t, loc)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return printer.Sprintf("%d %s", n, one)
	}
	return printer.Sprintf("%d %s", n, many)
}
