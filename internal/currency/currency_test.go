package currency_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/paystack-provider/internal/currency"
)

func TestToSubunitSupportedCurrencies(t *testing.T) {
	n := currency.Normalizer{Logger: zerolog.Nop()}
	cases := []struct {
		amount string
		want   int64
	}{
		{"0", 0},
		{"1", 100},
		{"10.5", 1050},
		{"2500.99", 250099},
		{"0.005", 1},
		{"0.004", 0},
		{"19.995", 2000},
		{"-0.005", -1},
	}
	for _, code := range currency.SupportedCodes() {
		for _, tc := range cases {
			got := n.ToSubunit(decimal.RequireFromString(tc.amount), code)
			require.Equalf(t, tc.want, got, "%s %s", code, tc.amount)
		}
	}
}

func TestToSubunitFloatInputRounds(t *testing.T) {
	n := currency.Normalizer{Logger: zerolog.Nop()}
	require.Equal(t, int64(1999), n.ToSubunit(decimal.NewFromFloat(19.99), "NGN"))
	require.Equal(t, int64(30), n.ToSubunit(decimal.NewFromFloat(0.1).Add(decimal.NewFromFloat(0.2)), "usd"))
}

func TestToSubunitUnsupportedFallsBackWithWarning(t *testing.T) {
	var buf bytes.Buffer
	n := currency.Normalizer{Logger: zerolog.New(&buf)}

	got := n.ToSubunit(decimal.RequireFromString("12.34"), "EUR")
	require.Equal(t, int64(1234), got)
	require.True(t, strings.Contains(buf.String(), "unsupported currency"), buf.String())
	require.True(t, strings.Contains(buf.String(), `"currency":"EUR"`), buf.String())
}

func TestLookupAndNormalize(t *testing.T) {
	c, ok := currency.Lookup(" ghs ")
	require.True(t, ok)
	require.Equal(t, "pesewas", c.SubunitName)

	require.False(t, currency.IsSupported("KES"))
	require.Equal(t, "NGN", currency.Normalize(""))
	require.Equal(t, "ZAR", currency.Normalize(" zar"))
	require.Equal(t, []string{"GHS", "NGN", "USD", "ZAR"}, currency.SupportedCodes())
}

func TestFromSubunit(t *testing.T) {
	require.True(t, decimal.RequireFromString("25.5").Equal(currency.FromSubunit(2550, "NGN")))
	require.True(t, decimal.RequireFromString("1.01").Equal(currency.FromSubunit(101, "XYZ")))
}
