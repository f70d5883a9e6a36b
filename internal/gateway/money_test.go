package gateway

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinorToMajor(t *testing.T) {
	tests := []struct {
		minor    int64
		currency string
		want     string
	}{
		{minor: 1999, currency: "USD", want: "19.99"},
		{minor: 100, currency: "USD", want: "1"},
		{minor: 0, currency: "USD", want: "0"},
		{minor: 1, currency: "EUR", want: "0.01"},
		{minor: 500, currency: "JPY", want: "500"},
		{minor: 1999, currency: "KWD", want: "1.999"},
		{minor: -250, currency: "USD", want: "-2.5"},
	}

	for _, tt := range tests {
		got := MinorToMajor(tt.minor, tt.currency)
		assert.Equal(t, tt.want, got.String(), "%d %s", tt.minor, tt.currency)
	}
}

func TestMoneyRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, currency := range []string{"USD", "JPY", "BHD"} {
		for i := 0; i < 100; i++ {
			minor := rng.Int63n(10_000_000)
			major := MinorToMajor(minor, currency)
			require.Equal(t, minor, MajorToMinor(major, currency),
				"round trip drift for %d %s", minor, currency)
		}
	}
}

func TestMajorToMinorExact(t *testing.T) {
	price := decimal.RequireFromString("19.99")
	assert.Equal(t, int64(1999), MajorToMinor(price, "USD"))
	assert.Equal(t, int64(19), MajorToMinor(price, "JPY"))
}

func TestCurrencyExponent(t *testing.T) {
	assert.Equal(t, int32(2), CurrencyExponent("USD"))
	assert.Equal(t, int32(2), CurrencyExponent("usd"))
	assert.Equal(t, int32(0), CurrencyExponent("jpy"))
	assert.Equal(t, int32(3), CurrencyExponent("KWD"))
	assert.Equal(t, int32(2), CurrencyExponent(""))
}
