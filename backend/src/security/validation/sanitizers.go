// backend/src/security/validation/sanitizers.go
package validation

import (
	"strings"
	"unicode"
)

// formulaPrefixes are the leading characters spreadsheets evaluate. The quote
// itself is included so that escaping can always be undone.
const formulaPrefixes = "=+-@\t\r'"

// SanitizeForFormulaInjection prepends a single quote if the string starts with a formula character.
// This makes most spreadsheet software treat it as text.
func SanitizeForFormulaInjection(s string) string {
	trimmed := strings.TrimLeft(s, " ")
	if trimmed != "" && strings.ContainsRune(formulaPrefixes, rune(trimmed[0])) {
		return "'" + s
	}
	return s
}

// UnsanitizeFormulaInjection reverses SanitizeForFormulaInjection.
func UnsanitizeFormulaInjection(s string) string {
	if strings.HasPrefix(s, "'") {
		return s[1:]
	}
	return s
}

// StripUnprintable removes non-printable characters, allowing common whitespace
// like space, tab, newline, and carriage return.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
}
