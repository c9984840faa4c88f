package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IsNull reports whether v is a null cell.
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case *string:
		return x == nil
	case *int64:
		return x == nil
	}
	return false
}

// IsBlank reports whether v is null or a string holding only whitespace.
// Key fields treat both as "no key".
func IsBlank(v any) bool {
	if IsNull(v) {
		return true
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x) == ""
	case *string:
		return strings.TrimSpace(*x) == ""
	case []byte:
		return strings.TrimSpace(string(x)) == ""
	}
	return false
}

// KeyString renders a natural-key value in canonical string form. GUIDs are
// lower-cased without braces, integral floats print as integers and strings
// are trimmed. The second result is false for nulls and blank strings, which
// never participate in key matching.
func KeyString(v any) (string, bool) {
	if IsNull(v) {
		return "", false
	}
	s := formatValue(v)
	if s == "" {
		return "", false
	}
	return s, true
}

// FormatValue renders any cell for reports. Nulls render as "NULL".
func FormatValue(v any) string {
	if IsNull(v) {
		return "NULL"
	}
	return formatValue(v)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return canonicalString(x)
	case *string:
		return canonicalString(*x)
	case []byte:
		return canonicalString(string(x))
	case uuid.UUID:
		return x.String()
	case int:
		return strconv.Itoa(x)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case *int64:
		return strconv.FormatInt(*x, 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case float32:
		return formatFloat(float64(x))
	case float64:
		return formatFloat(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return canonicalString(x.String())
	default:
		return fmt.Sprint(v)
	}
}

func canonicalString(s string) string {
	s = strings.TrimSpace(s)
	if n := len(s); n == 36 || (n == 38 && s[0] == '{' && s[n-1] == '}') {
		if id, err := uuid.Parse(s); err == nil {
			return id.String()
		}
	}
	return s
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
