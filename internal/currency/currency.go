package currency

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultCode is assumed when the host does not send a currency code.
const DefaultCode = "NGN"

// fallbackSubunit is used for codes Paystack does not settle in.
const fallbackSubunit = 100

// Currency describes a Paystack settlement currency and its smallest unit.
type Currency struct {
	Code        string
	Name        string
	SubunitName string
	Subunit     int64
}

var supported = map[string]Currency{
	"NGN": {Code: "NGN", Name: "Naira", SubunitName: "kobo", Subunit: 100},
	"GHS": {Code: "GHS", Name: "Cedi", SubunitName: "pesewas", Subunit: 100},
	"USD": {Code: "USD", Name: "Dollar", SubunitName: "cents", Subunit: 100},
	"ZAR": {Code: "ZAR", Name: "Rand", SubunitName: "cents", Subunit: 100},
}

// Normalize trims and upper-cases a currency code, defaulting to NGN when empty.
func Normalize(code string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		return DefaultCode
	}
	return trimmed
}

// Lookup returns the currency definition for the code, if supported.
func Lookup(code string) (Currency, bool) {
	c, ok := supported[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

// IsSupported reports whether Paystack accepts the currency code.
func IsSupported(code string) bool {
	_, ok := Lookup(code)
	return ok
}

// SupportedCodes returns the supported currency codes in alphabetical order.
func SupportedCodes() []string {
	codes := make([]string, 0, len(supported))
	for code := range supported {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Normalizer converts major-unit amounts into the integer subunits Paystack expects.
type Normalizer struct {
	Logger zerolog.Logger
}

// ToSubunit multiplies amount by the currency's subunit factor and rounds half
// away from zero. Unsupported codes fall back to a factor of 100 with a warning.
func (n Normalizer) ToSubunit(amount decimal.Decimal, code string) int64 {
	factor := int64(fallbackSubunit)
	if c, ok := Lookup(code); ok {
		factor = c.Subunit
	} else {
		n.Logger.Warn().Str("currency", code).Msg("unsupported currency, defaulting to subunit 100")
	}
	return amount.Mul(decimal.NewFromInt(factor)).Round(0).IntPart()
}

// FromSubunit converts a gateway amount back into major units for display.
func FromSubunit(amount int64, code string) decimal.Decimal {
	factor := int64(fallbackSubunit)
	if c, ok := Lookup(code); ok {
		factor = c.Subunit
	}
	return decimal.New(amount, 0).Div(decimal.NewFromInt(factor))
}
