package money

import (
	"fmt"
	"strconv"
	"strings"
)

// minorUnits maps ISO 4217 currency codes to their number of decimal places.
// Currencies not listed default to two decimals, which is what the gateway
// uses for everything it settles today.
var minorUnits = map[string]int{
	"RUB": 2,
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"JPY": 0,
}

// Exponent returns the number of decimal places for a currency code.
func Exponent(currency string) int {
	if exp, ok := minorUnits[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return exp
	}
	return 2
}

// ToMinorUnits converts a decimal amount string as sent by the gateway
// (e.g. "123.45") into integer minor units (12345). Parsing is exact: the
// string is split on the decimal point instead of going through a float, so
// two-decimal inputs round-trip without loss. Amounts with more fractional
// digits than the currency allows are rejected.
func ToMinorUnits(value, currency string) (int64, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("invalid amount %q", value)
	}

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart = s[:i]
		fracPart = s[i+1:]
	}
	if intPart == "" {
		intPart = "0"
	}

	exp := Exponent(currency)
	if len(fracPart) > exp {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", value, exp)
	}
	// Zero-pad the fraction to the currency exponent.
	fracPart += strings.Repeat("0", exp-len(fracPart))

	major, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}

	minor := major
	for i := 0; i < exp; i++ {
		minor *= 10
	}
	if fracPart != "" {
		frac, err := strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %w", value, err)
		}
		minor += frac
	}

	if negative {
		minor = -minor
	}
	return minor, nil
}

// FromMinorUnits formats integer minor units back into the gateway's decimal
// string representation ("12345" RUB -> "123.45").
func FromMinorUnits(minor int64, currency string) string {
	exp := Exponent(currency)
	if exp == 0 {
		return strconv.FormatInt(minor, 10)
	}

	negative := minor < 0
	if negative {
		minor = -minor
	}

	pow := int64(1)
	for i := 0; i < exp; i++ {
		pow *= 10
	}

	out := fmt.Sprintf("%d.%0*d", minor/pow, exp, minor%pow)
	if negative {
		out = "-" + out
	}
	return out
}
