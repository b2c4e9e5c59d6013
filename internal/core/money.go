// Package core holds the canonical domain records, the normalizer that
// produces them from raw store documents, and the pure aggregation functions
// that derive dashboard and analytics views from full snapshots.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Currency is a display currency code from the fixed supported set.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	INR Currency = "INR"
)

// DefaultCurrency is used whenever a profile is missing or carries a code
// outside the supported set.
const DefaultCurrency = USD

// currencyFormat describes how a currency renders: its symbol, the number of
// minor-unit digits, and the separators of its reference locale.
type currencyFormat struct {
	symbol     string
	minorUnits int
	thousands  string
	decimal    string
	indian     bool // Indian digit grouping (1,23,456)
}

var currencyFormats = map[Currency]currencyFormat{
	USD: {symbol: "$", minorUnits: 2, thousands: ",", decimal: "."},
	EUR: {symbol: "€", minorUnits: 2, thousands: ".", decimal: ","},
	GBP: {symbol: "£", minorUnits: 2, thousands: ",", decimal: "."},
	JPY: {symbol: "¥", minorUnits: 0, thousands: ",", decimal: "."},
	INR: {symbol: "₹", minorUnits: 2, thousands: ",", decimal: ".", indian: true},
}

// ParseCurrency maps a stored currency string to a supported Currency.
// Unknown or empty values fall back to USD without error.
func ParseCurrency(s string) Currency {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := currencyFormats[c]; ok {
		return c
	}
	return DefaultCurrency
}

// SupportedCurrency reports whether s names a currency this system can
// format. Unlike ParseCurrency it does not fall back.
func SupportedCurrency(s string) bool {
	_, ok := currencyFormats[Currency(strings.ToUpper(strings.TrimSpace(s)))]
	return ok
}

// Symbol returns the display symbol for the currency.
func (c Currency) Symbol() string {
	return formatFor(c).symbol
}

// MinorUnits returns the number of decimal places the currency displays.
// JPY displays none; every other supported currency displays two.
func (c Currency) MinorUnits() int {
	return formatFor(c).minorUnits
}

func formatFor(c Currency) currencyFormat {
	if f, ok := currencyFormats[c]; ok {
		return f
	}
	return currencyFormats[DefaultCurrency]
}

// FormattedAmount is a locale-correct rendering of an amount.
type FormattedAmount struct {
	Formatted  string // digits only, e.g. "1,234.56"
	Symbol     string // e.g. "$"
	WithSymbol string // e.g. "$1,234.56" ("-$1,234.56" when negative)
}

// FormatAmount renders an amount in the given currency. Rounding to the
// currency's minor units happens here, at display time, not in the
// aggregation that produced the value.
func FormatAmount(amount float64, c Currency) FormattedAmount {
	f := formatFor(c)

	intPart, fracPart, neg := roundDecimal(amount, f.minorUnits)

	grouped := groupDigits(intPart, f.thousands, f.indian)
	if fracPart != "" {
		grouped += f.decimal + fracPart
	}

	formatted := grouped
	withSymbol := f.symbol + grouped
	if neg {
		formatted = "-" + formatted
		withSymbol = "-" + withSymbol
	}

	return FormattedAmount{
		Formatted:  formatted,
		Symbol:     f.symbol,
		WithSymbol: withSymbol,
	}
}

// RoundTo rounds half away from zero at the given number of decimal places.
func RoundTo(v float64, decimals int) float64 {
	intPart, fracPart, neg := roundDecimal(v, decimals)
	s := intPart
	if fracPart != "" {
		s += "." + fracPart
	}
	if neg {
		s = "-" + s
	}
	rounded, _ := strconv.ParseFloat(s, 64)
	return rounded
}

// roundDecimal rounds half away from zero on the shortest decimal
// representation of v, so a user-entered 10.005 becomes 10.01 even though
// the nearest float64 sits a hair below the midpoint. Returns the integer
// digits, the fractional digits padded to the requested places (empty when
// decimals is 0), and the sign.
func roundDecimal(v float64, decimals int) (intPart, fracPart string, neg bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}

	s := strconv.FormatFloat(v, 'f', -1, 64)
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	if len(frac) <= decimals {
		fracPart = frac + strings.Repeat("0", decimals-len(frac))
		return intPart, fracPart, neg
	}

	digits := intPart + frac[:decimals]
	if frac[decimals] >= '5' {
		digits = incrementDigits(digits)
	}

	if decimals > 0 {
		intPart = digits[:len(digits)-decimals]
		fracPart = digits[len(digits)-decimals:]
		if intPart == "" {
			intPart = "0"
		}
	} else {
		intPart = digits
		fracPart = ""
	}
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	if neg && intPart == "0" && strings.Trim(fracPart, "0") == "" {
		neg = false
	}
	return intPart, fracPart, neg
}

// incrementDigits adds one to an unsigned decimal digit string.
func incrementDigits(s string) string {
	b := []byte(s)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < '9' {
			b[i]++
			return string(b)
		}
		b[i] = '0'
	}
	return "1" + string(b)
}

// groupDigits inserts thousands separators into an unsigned integer string.
// Indian grouping separates the last three digits, then every two.
func groupDigits(s, sep string, indian bool) string {
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	if indian {
		head := s[:len(s)-3]
		tail := s[len(s)-3:]
		rem := len(head) % 2
		if rem > 0 {
			b.WriteString(head[:rem])
		}
		for i := rem; i < len(head); i += 2 {
			if b.Len() > 0 {
				b.WriteString(sep)
			}
			b.WriteString(head[i : i+2])
		}
		b.WriteString(sep)
		b.WriteString(tail)
		return b.String()
	}

	rem := len(s) % 3
	if rem > 0 {
		b.WriteString(s[:rem])
	}
	for i := rem; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// ParseAmount converts a user-entered decimal string to a positive float64
// amount. It accepts both dot (12.34) and comma (12,34) decimal separators.
// Signs are rejected: the transaction type selects the stored sign.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	if strings.Count(s, ".") > 1 {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return 0, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}
