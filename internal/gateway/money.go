package gateway

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Minor-unit exponents for currencies that deviate from 2. Lemon Squeezy
// settles most stores in USD but the exponent is looked up rather than
// assumed so multi-currency stores normalize correctly.
var minorUnitExponents = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0,
	"KMF": 0, "KRW": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0,
	"VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// CurrencyExponent returns the number of minor-unit digits for a currency
// code, defaulting to 2.
func CurrencyExponent(currency string) int32 {
	if exp, ok := minorUnitExponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// MinorToMajor converts integer minor units (e.g. 1999 cents) to major
// units (19.99) without rounding drift.
func MinorToMajor(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -CurrencyExponent(currency))
}

// MajorToMinor is the exact inverse of MinorToMajor for amounts that fit
// the currency's exponent.
func MajorToMinor(major decimal.Decimal, currency string) int64 {
	return major.Shift(CurrencyExponent(currency)).IntPart()
}
