package cart

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{decimal.RequireFromString("235"), "235,00"},
		{"129.9", "129,90"},
		{20.5, "20,50"},
		{int64(3), "3,00"},
		{"abc", "0,00"},
		{math.NaN(), "0,00"},
		{nil, "0,00"},
	}
	for _, tc := range cases {
		if got := FormatPrice(tc.in); got != tc.want {
			t.Errorf("FormatPrice(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatCurrency(t *testing.T) {
	if got := FormatCurrency("1234.5"); got != "R$ 1234,50" {
		t.Fatalf("unexpected currency %q", got)
	}
}
