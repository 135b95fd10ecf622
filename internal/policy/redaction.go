// Package policy scrubs operator and model text before it reaches logs.
package policy

import "regexp"

// MaxLoggedText bounds how much free text a single log field may carry.
const MaxLoggedText = 512

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

// RedactPII masks email addresses, card numbers and phone numbers.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	// Cards before phones so long digit runs are not taken for phone numbers.
	for _, r := range []struct {
		pattern *regexp.Regexp
		marker  string
	}{
		{emailPattern, "[REDACTED_EMAIL]"},
		{cardPattern, "[REDACTED_CARD]"},
		{phonePattern, "[REDACTED_PHONE]"},
	} {
		next := r.pattern.ReplaceAllString(out, r.marker)
		changed = changed || next != out
		out = next
	}
	return out, changed
}

// LogText returns input redacted and cut to MaxLoggedText bytes.
func LogText(input string) string {
	out, _ := RedactPII(input)
	if len(out) <= MaxLoggedText {
		return out
	}
	cut := MaxLoggedText
	// Do not split a UTF-8 sequence.
	for cut > 0 && out[cut]&0xC0 == 0x80 {
		cut--
	}
	return out[:cut] + "...(truncated)"
}
