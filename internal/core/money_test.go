package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"0", 0, true},
		{".5", 50, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyWireFormat(t *testing.T) {
	b, err := Money{Cents: 1205}.MarshalJSON()
	if err != nil || string(b) != "12.05" {
		t.Fatalf("unexpected marshal %s (err=%v)", b, err)
	}
	var m Money
	if err := m.UnmarshalJSON([]byte("19.999")); err != nil || m.Cents != 2000 {
		t.Fatalf("unexpected unmarshal %d (err=%v)", m.Cents, err)
	}
	if err := m.UnmarshalJSON([]byte("null")); err != nil || m.Cents != 0 {
		t.Fatalf("null should decode to zero, got %d (err=%v)", m.Cents, err)
	}
}
