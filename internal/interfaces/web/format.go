package web

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Money formats an amount in millions: "$1,234.5M", "-$12.0M".
func Money(v float64) string {
	return signed(v, func(a float64) string { return printer.Sprintf("$%.1fM", a) })
}

// MoneyPrecise is Money with two decimals, used for per-percent values.
func MoneyPrecise(v float64) string {
	return signed(v, func(a float64) string { return printer.Sprintf("$%.2fM", a) })
}

// Price formats a per-patient price in dollars without decimals.
func Price(v float64) string {
	return signed(v, func(a float64) string { return printer.Sprintf("$%.0f", a) })
}

// Percent formats a fraction as a percentage with one decimal.
func Percent(frac float64) string {
	return printer.Sprintf("%.1f%%", frac*100)
}

// Count formats a whole number with thousands separators.
func Count(n int64) string {
	return printer.Sprintf("%d", n)
}

// Years formats a duration in years, dropping a trailing ".0".
func Years(v float64) string {
	if v == math.Trunc(v) {
		return printer.Sprintf("%.0f yrs", v)
	}
	return printer.Sprintf("%.1f yrs", v)
}

func signed(v float64, f func(float64) string) string {
	if v < 0 {
		return "-" + f(-v)
	}
	return f(v)
}
