package booking

import "strings"

// NormalizePhone reduces a user-entered phone number to its canonical
// digits-only form, the natural key of the clients table. Russian local
// forms (8XXXXXXXXXX and bare 9XXXXXXXXX) are rewritten to the 7-prefixed
// international form; other international numbers keep their digits.
func NormalizePhone(raw string) (string, bool) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	s := digits.String()

	switch {
	case len(s) == 10 && s[0] == '9':
		return "7" + s, true
	case len(s) == 11 && s[0] == '8':
		return "7" + s[1:], true
	case len(s) >= 11 && len(s) <= 15:
		return s, true
	default:
		return "", false
	}
}
