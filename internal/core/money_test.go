package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12.34", 1234, true},
		{"12,34", 1234, true},
		{"12", 1200, true},
		{"0.5", 50, true},
		{"12.345", 1234, true},
		{"12.346", 1235, true},
		{"300000", 30000000, true},
		{"", 0, false},
		{"-5", 0, false},
		{"+5", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"0", 0, false},
	}
	for i, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("case %d (%q): unexpected error %v", i, tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("case %d (%q): got %d want %d", i, tc.in, got, tc.want)
			}
		} else if err == nil {
			t.Fatalf("case %d (%q): expected error", i, tc.in)
		}
	}
}

func TestMoneyHelpers(t *testing.T) {
	m := Money{Cents: 1250}
	if m.Units() != 12.5 {
		t.Fatalf("Units: got %v", m.Units())
	}
	if m.Neg().Cents != -1250 {
		t.Fatalf("Neg: got %d", m.Neg().Cents)
	}
	if m.Add(Money{Cents: 250}).Cents != 1500 {
		t.Fatalf("Add: got %d", m.Add(Money{Cents: 250}).Cents)
	}
}
