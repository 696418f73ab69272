package calculator

import (
	"fmt"
	"strings"

	"github.com/divan/num2words"
	"github.com/shopspring/decimal"
)

type currencyUnits struct {
	major string
	minor string
}

var units = map[string]currencyUnits{
	"SAR": {"riyals", "halalas"},
	"AED": {"dirhams", "fils"},
	"USD": {"dollars", "cents"},
	"EUR": {"euros", "cents"},
	"GBP": {"pounds", "pence"},
}

// DefaultCurrency is used when a draft does not name one.
const DefaultCurrency = "SAR"

// AmountInWords spells amount in English, e.g. "five hundred seventeen riyals
// and fifty halalas". Unknown currencies fall back to the code itself.
func AmountInWords(amount decimal.Decimal, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	u, ok := units[currency]
	if !ok {
		u = currencyUnits{major: currency, minor: "cents"}
	}

	rounded := amount.Round(MoneyPlaces)
	prefix := ""
	if rounded.IsNegative() {
		prefix = "minus "
		rounded = rounded.Abs()
	}
	major := rounded.Truncate(0)
	minor := rounded.Sub(major).Mul(hundred).IntPart()

	words := fmt.Sprintf("%s%s %s", prefix, num2words.Convert(int(major.IntPart())), u.major)
	if minor > 0 {
		words += fmt.Sprintf(" and %s %s", num2words.Convert(int(minor)), u.minor)
	}
	return words
}
