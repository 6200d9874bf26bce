package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1.00", true},
		{"1.0", "1.00", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{"1.004", "1.00", true},
		{" 2.50 ", "2.50", true},
		{"0", "0.00", true},
		{"-3.5", "-3.50", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyFromCents(t *testing.T) {
	m := MoneyFromCents(14778)
	if m.String() != "147.78" {
		t.Fatalf("got %s", m)
	}
	if m.Cents() != 14778 {
		t.Fatalf("cents round trip: got %d", m.Cents())
	}
}

func TestMoneyArithmeticIsExact(t *testing.T) {
	var sum Money
	for i := 0; i < 10; i++ {
		sum = sum.Add(NewMoney(decimal.RequireFromString("0.10")))
	}
	if sum.String() != "1.00" {
		t.Fatalf("ten dimes: got %s", sum)
	}
	if !sum.Sub(MoneyFromCents(100)).IsZero() {
		t.Fatalf("expected zero after subtracting 1.00")
	}
}
