package storage

import (
	"math"
	"strings"
)

// nullTokens are string values standardized to SQL NULL at bind time.
// Sources already normalize most of these, but rows handed to a backend
// directly (tests, API callers) get the same treatment.
var nullTokens = map[string]struct{}{
	"":     {},
	"null": {},
	"none": {},
	"n/a":  {},
	"#n/a": {},
	"nan":  {},
}

// NormalizeValue converts a row value to a canonical bindable form.
//
// Backends must not assume a particular underlying type for cell values; this
// helper keeps bind behavior consistent across backends:
//   - nil stays nil.
//   - null-sentinel strings ("NULL", "N/A", "nan", ...) become nil.
//   - other strings are trimmed.
//   - NaN and infinite floats become nil (engines reject them).
//   - []byte becomes a trimmed string.
//   - everything else passes through for the driver to bind.
func NormalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return normalizeString(t)
	case []byte:
		return normalizeString(string(t))
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	case float32:
		f := float64(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return t
	default:
		return v
	}
}

func normalizeString(s string) any {
	s = strings.TrimSpace(s)
	if _, isNull := nullTokens[strings.ToLower(s)]; isNull {
		return nil
	}
	return s
}

// RowsPerBatch returns how many rows fit in one multi-row INSERT given the
// engine's bind-parameter limit.
//
// Edge cases:
//   - Always at least 1, even when a single row exceeds maxParams; the
//     engine then reports its own error, which is more useful than a silent
//     zero-row loop.
func RowsPerBatch(maxParams, numColumns int) int {
	if numColumns < 1 {
		return 1
	}
	n := maxParams / numColumns
	if n < 1 {
		return 1
	}
	return n
}
