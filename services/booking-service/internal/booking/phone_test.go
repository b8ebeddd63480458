package booking

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+7 (916) 123-45-67", "79161234567", true},
		{"8 916 123 45 67", "79161234567", true},
		{"9161234567", "79161234567", true},
		{"79161234567", "79161234567", true},
		{"+375 29 123 45 67", "375291234567", true},
		{"12", "", false},
		{"", "", false},
		{"not a phone", "", false},
	}

	for _, tc := range cases {
		got, ok := NormalizePhone(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("NormalizePhone(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
