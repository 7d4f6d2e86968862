package schema

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Infer assigns a FieldType to every column present in the sample.
//
// The classification per column is priority-ordered:
//  1. boolean  — every value is a boolean-like token AND the column has at
//     most 4 distinct lower-cased values. This tie-break deliberately
//     classifies a {"0","1"} column as boolean rather than integer.
//  2. integer  — every value parses as an integer with no fractional part.
//  3. float    — every value parses as a float.
//  4. datetime — every value matches a supported date pattern.
//  5. string, upgraded to text when any value exceeds 255 characters.
//
// Null, empty, and whitespace-only values are excluded from the evidence; a
// column with no evidence defaults to string. Inference is deterministic,
// side-effect free, and never fails on malformed data: a value that parses
// as nothing simply falls through to the string bucket.
func Infer(sample []map[string]any) map[string]FieldType {
	evidence := map[string][]string{}
	for _, row := range sample {
		for col, v := range row {
			s, ok := stringifyEvidence(v)
			if !ok {
				continue
			}
			evidence[col] = append(evidence[col], s)
		}
	}

	// Columns that appear in the sample only as nulls still need an entry.
	out := make(map[string]FieldType, len(evidence))
	for _, row := range sample {
		for col := range row {
			if _, ok := out[col]; !ok {
				out[col] = TypeString
			}
		}
	}

	for col, values := range evidence {
		out[col] = classifyColumn(values)
	}
	return out
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), // YYYY-MM-DD
	regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`), // DD/MM/YYYY
	regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`), // DD-MM-YYYY
}

func classifyColumn(values []string) FieldType {
	if len(values) == 0 {
		return TypeString
	}

	allBool := true
	allInt := true
	allFloat := true
	allDate := true
	maxLen := 0
	distinct := map[string]struct{}{}

	for _, v := range values {
		if len(v) > maxLen {
			maxLen = len(v)
		}

		lower := strings.ToLower(v)
		if allBool {
			if _, ok := boolTokens[lower]; !ok {
				allBool = false
			} else if len(distinct) <= 4 {
				distinct[lower] = struct{}{}
			}
		}
		if allInt && !parseIntStrict(v) {
			allInt = false
		}
		if allFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allFloat = false
			}
		}
		if allDate && !matchesDatePattern(v) {
			allDate = false
		}
	}

	switch {
	case allBool && len(distinct) <= 4:
		return TypeBoolean
	case allInt:
		return TypeInteger
	case allFloat:
		return TypeFloat
	case allDate:
		return TypeDatetime
	case maxLen > 255:
		return TypeText
	default:
		return TypeString
	}
}

var boolTokens = map[string]struct{}{
	"true": {}, "false": {},
	"1": {}, "0": {},
	"yes": {}, "no": {},
	"y": {}, "n": {},
}

// parseIntStrict accepts values that are integers with no fractional part.
// A literal dot disqualifies the value even when the fraction is zero
// ("3.0" is float evidence, not integer evidence).
func parseIntStrict(s string) bool {
	if strings.Contains(s, ".") {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func matchesDatePattern(s string) bool {
	for _, p := range datePatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// stringifyEvidence converts a sampled value into classification evidence.
// Returns ok=false for values that carry no evidence (nil, empty strings).
func stringifyEvidence(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case []byte:
		s := strings.TrimSpace(string(t))
		return s, s != ""
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	case int:
		return strconv.Itoa(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case time.Time:
		return t.Format("2006-01-02"), true
	default:
		return "", false
	}
}
