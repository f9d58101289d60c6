// Package phone turns free-form phone input into the canonical local form
// used for API calls, audit rows and mailbox keys.
package phone

import "strings"

const countryCode = "84"

// Normalize keeps digits only, rewrites a leading country code to the local
// "0" prefix and adds the "0" to bare 9+ digit subscriber numbers.
// It never fails: input without digits yields "", which callers treat as invalid.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw) + 1)
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	p := b.String()

	if strings.HasPrefix(p, countryCode) && len(p) > len(countryCode) {
		p = "0" + p[len(countryCode):]
	}
	if !strings.HasPrefix(p, "0") && len(p) >= 9 {
		p = "0" + p
	}
	return p
}

// MailboxKey is the key under which the OTP gateway stores the latest OTP
// for a phone.
func MailboxKey(prefix, raw string) string {
	return prefix + Normalize(raw)
}
