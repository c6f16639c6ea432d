package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"15000", 15000, true},
		{" 500000 ", 500000, true},
		{"15.000", 15000, true},
		{"1.500.000", 1500000, true},
		{"15,000", 15000, true},
		{"1", 1, true},
		{"", 0, false},
		{"0", 0, false},
		{"-3", 0, false},
		{"+3", 0, false},
		{"12.34", 0, false},   // not a grouping
		{"1.00.000", 0, false}, // broken groups
		{"1.000,5", 0, false}, // mixed separators
		{"abc", 0, false},
		{"12a", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("ParseAmount(%q) = %d, %v; expected %d", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseAmount(%q) expected error, got %d", tc.in, got)
		}
	}
}
