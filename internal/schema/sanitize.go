package schema

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// reservedWords are SQL keywords that must never be used bare as identifiers.
// A sanitized name that collides gets the "_col" suffix.
var reservedWords = map[string]struct{}{
	"index": {}, "order": {}, "group": {}, "select": {},
	"from": {}, "where": {}, "table": {}, "user": {},
}

// SanitizeColumnName converts an arbitrary spreadsheet header into a safe,
// lower-case SQL identifier restricted to [a-z0-9_].
//
// Rules, in order:
//   - NFKC-normalize so full-width and compatibility characters fold to ASCII
//     before filtering (common in Thai-locale spreadsheets).
//   - Lower-case; map separator runs to a single underscore; drop everything
//     else outside [a-z0-9_].
//   - Collapse underscore runs and trim leading/trailing underscores.
//   - An empty or all-digit result becomes "column".
//   - Reserved SQL keywords get the "_col" suffix.
//   - The result is capped at 63 bytes for backend identifier limits.
//
// Sanitization is idempotent: feeding the output back in returns it unchanged.
func SanitizeColumnName(raw string) string {
	out := sanitizeIdent(raw)
	if out == "" || allDigits(out) {
		return "column"
	}
	if _, reserved := reservedWords[out]; reserved {
		out += "_col"
	}
	return truncateIdent(out)
}

// SanitizeTableName applies the same identifier rules as SanitizeColumnName
// but returns an empty string for blank or all-digit input so the caller can
// reject it instead of silently ingesting into a table named "column".
func SanitizeTableName(raw string) string {
	out := sanitizeIdent(raw)
	if out == "" || allDigits(out) {
		return ""
	}
	if _, reserved := reservedWords[out]; reserved {
		out += "_col"
	}
	return truncateIdent(out)
}

func sanitizeIdent(raw string) string {
	s := norm.NFKC.String(strings.TrimSpace(raw))
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))

	lastUnderscore := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.' || r == '/' || r == '\\' || r == ':' || r == ';' || r == '\t':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		default:
			// Drop everything else.
		}
	}

	return strings.Trim(b.String(), "_")
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// truncateIdent enforces the 63-byte identifier limit while preserving
// UTF-8 validity. Sanitized names are ASCII, but the guard keeps this safe
// for any future relaxation of the character set.
func truncateIdent(s string) string {
	const maxLen = 63
	if len(s) <= maxLen {
		return s
	}
	b := []byte(s)
	cut := maxLen
	for cut > 0 && !utf8.Valid(b[:cut]) {
		cut--
	}
	if cut <= 0 {
		return s[:maxLen]
	}
	return strings.Trim(string(b[:cut]), "_")
}
