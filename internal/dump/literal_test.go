package dump

import (
	"testing"
)

func mustNumber(tb testing.TB, s string) Number {
	tb.Helper()
	n, err := ParseNumber(s)
	if err != nil {
		tb.Fatalf("ParseNumber(%q): %v", s, err)
	}
	return n
}

func TestParseNumberCanonicalForm(t *testing.T) {
	t.Parallel()

	// Display variants of the same value collapse to one canonical form.
	same := []string{"100", "+100", "1e2", "100.00", "10.0e1", "1000e-1"}
	want := mustNumber(t, "100")
	for _, s := range same {
		n := mustNumber(t, s)
		a, err := n.Int64()
		if err != nil {
			t.Fatalf("Int64(%q): %v", s, err)
		}
		b, _ := want.Int64()
		if a != b {
			t.Errorf("ParseNumber(%q) = %d, want %d", s, a, b)
		}
	}
}

func TestNumberIsInteger(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want bool
	}{
		{"0", true},
		{"-17", true},
		{"3.14", false},
		{"1e3", true},
		{"100e-2", true},  // 1
		{"105e-1", false}, // 10.5
		{"2.50", false},
		{"3.00", true},
	}

	for _, c := range cases {
		n := mustNumber(t, c.in)
		if got := n.IsInteger(); got != c.want {
			t.Errorf("IsInteger(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestNumberInt64Bounds(t *testing.T) {
	t.Parallel()

	if v, err := mustNumber(t, "9223372036854775807").Int64(); err != nil || v != 9223372036854775807 {
		t.Fatalf("max int64: got %d, %v", v, err)
	}
	if v, err := mustNumber(t, "-9223372036854775808").Int64(); err != nil || v != -9223372036854775808 {
		t.Fatalf("min int64: got %d, %v", v, err)
	}
	if _, err := mustNumber(t, "9223372036854775808").Int64(); err == nil {
		t.Fatal("max int64 + 1 should not fit")
	}
	if v, err := mustNumber(t, "18446744073709551615").Uint64(); err != nil || v != 18446744073709551615 {
		t.Fatalf("max uint64: got %d, %v", v, err)
	}
}

func TestNumberInt64NoFloatRoundTrip(t *testing.T) {
	t.Parallel()

	// 2^53 + 1 is not representable as float64; the integer path must keep it
	// exact.
	n := mustNumber(t, "9007199254740993")
	v, err := n.Int64()
	if err != nil {
		t.Fatalf("Int64: %v", err)
	}
	if v != 9007199254740993 {
		t.Fatalf("got %d, want 9007199254740993", v)
	}
}

func TestParseNumberRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "abc", "1.2.3", "--5", "0x10", "1e"} {
		if _, err := ParseNumber(s); err == nil {
			t.Errorf("ParseNumber(%q) should fail", s)
		}
	}
}
