package cart

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatPrice renders an amount as "235,00". Strings are parsed first;
// anything unparseable renders as "0,00".
func FormatPrice(v any) string {
	var d decimal.Decimal
	switch x := v.(type) {
	case decimal.Decimal:
		d = x
	case *decimal.Decimal:
		if x == nil {
			return "0,00"
		}
		d = *x
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return "0,00"
		}
		d = parsed
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "0,00"
		}
		d = decimal.NewFromFloat(x)
	case int:
		d = decimal.NewFromInt(int64(x))
	case int64:
		d = decimal.NewFromInt(x)
	default:
		return "0,00"
	}
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}

// FormatCurrency renders an amount as "R$ 235,00".
func FormatCurrency(v any) string {
	return "R$ " + FormatPrice(v)
}
