package session

import (
	"fmt"
	"regexp"
	"strings"
)

var e164Regexp = regexp.MustCompile(`^\+[0-9]{7,15}$`)

// NormalizePhone canonicalizes a user-supplied phone number to E.164 form
// using the given default country code for national formats. Accepted inputs
// (with country code "98"): "+989123456789", "00989123456789",
// "09123456789", "989123456789", "9123456789".
func NormalizePhone(raw, countryCode string) (string, error) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	if s == "" {
		return "", fmt.Errorf("empty phone number")
	}

	switch {
	case strings.HasPrefix(s, "+"):
		// Already international.
	case strings.HasPrefix(s, "00"):
		s = "+" + s[2:]
	case strings.HasPrefix(s, "0"):
		// National format: replace the trunk prefix with the country code.
		s = "+" + countryCode + s[1:]
	case countryCode != "" && strings.HasPrefix(s, countryCode):
		s = "+" + s
	default:
		// Bare subscriber number.
		s = "+" + countryCode + s
	}

	if !e164Regexp.MatchString(s) {
		return "", fmt.Errorf("invalid phone number %q", raw)
	}
	return s, nil
}

// ValidateAccountID checks that an account identifier is a normalized phone number.
func ValidateAccountID(accountID string) error {
	if !e164Regexp.MatchString(accountID) {
		return fmt.Errorf("invalid account id %q: must be an E.164 phone number", accountID)
	}
	return nil
}
