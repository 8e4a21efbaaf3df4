package money

import "testing"

func TestDecimalRoundTrip(t *testing.T) {
	for _, m := range []int64{0, 1, 49, 50, 99, 100, 499, 4999, 10000, 123456789, -1, -99, -4999} {
		if got := FromDecimal(ToDecimal(m)); got != m {
			t.Errorf("round trip %d -> %v -> %d", m, ToDecimal(m), got)
		}
	}
}

func TestFromDecimalHalfUp(t *testing.T) {
	cases := []struct {
		in   float64
		want int64
	}{
		{4.99, 499},
		{4.985, 499},
		{4.984, 498},
		{0.005, 1},
		{-0.005, -1},
		{-4.985, -499},
	}
	for _, c := range cases {
		if got := FromDecimal(c.in); got != c.want {
			t.Errorf("FromDecimal(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestFormatDisplay(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{499, "4.99"},
		{10000, "100.00"},
		{-1850, "-18.50"},
	}
	for _, c := range cases {
		if got := FormatDisplay(c.in); got != c.want {
			t.Errorf("FormatDisplay(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestAddCurrencyMismatch(t *testing.T) {
	a := Must(100, "USD")
	b := Must(100, "EUR")
	if _, err := a.Add(b); err != ErrCurrencyMismatch {
		t.Errorf("expected currency mismatch, got %v", err)
	}
}

func TestPercent(t *testing.T) {
	m := Must(10000, "USD")
	if got := m.Percent(20); got.Amount != 2000 {
		t.Errorf("20%% of 10000 = %d, want 2000", got.Amount)
	}
	if got := m.Percent(33); got.Amount != 3300 {
		t.Errorf("33%% of 10000 = %d, want 3300", got.Amount)
	}
}
