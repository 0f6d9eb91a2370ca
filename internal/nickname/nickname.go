// Package nickname canonicalizes and validates user display names.
//
// Uniqueness comparisons happen on the normalized form: trimmed, NFKC
// composed, then case folded. Case insensitivity is intentional.
package nickname

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	// MinLen and MaxLen bound the nickname length in Unicode code points,
	// never in bytes, so multi-byte scripts are not penalized.
	MinLen = 3
	MaxLen = 10
)

// Normalize returns the canonical form used for uniqueness comparison.
func Normalize(raw string) string {
	s := norm.NFKC.String(strings.TrimSpace(raw))
	return cases.Fold().String(s)
}

// allowed reports whether r belongs to the nickname character class.
func allowed(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' || r == '-'
}

// IsValid reports whether raw is an acceptable nickname after trim+NFKC:
// 3-10 code points, letters/digits/"."/"_"/"-" only.
func IsValid(raw string) bool {
	s := norm.NFKC.String(strings.TrimSpace(raw))
	n := utf8.RuneCountInString(s)
	if n < MinLen || n > MaxLen {
		return false
	}
	for _, r := range s {
		if !allowed(r) {
			return false
		}
	}
	return true
}

// SanitizeAutoCandidate derives a best-effort nickname from an identity
// claim. Whitespace and disallowed-character runs collapse to a single
// underscore, repeated underscores collapse, leading/trailing underscores
// are trimmed and the result is truncated to MaxLen code points. Returns
// ok=false when nothing valid remains.
func SanitizeAutoCandidate(base string) (string, bool) {
	s := norm.NFKC.String(strings.TrimSpace(base))

	var b strings.Builder
	pendingSep := false
	for _, r := range s {
		if allowed(r) && r != '_' {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		// whitespace, disallowed runes and literal underscores all
		// become at most one separator
		pendingSep = true
	}

	out := b.String()
	if utf8.RuneCountInString(out) > MaxLen {
		runes := []rune(out)
		out = string(runes[:MaxLen])
	}
	out = strings.Trim(out, "_")

	if !IsValid(out) {
		return "", false
	}
	return out, true
}
