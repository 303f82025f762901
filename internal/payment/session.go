package payment

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionData is the opaque key/value state the host persists between calls.
// Values may arrive JSON-decoded, so numbers can be float64 or json.Number.
type SessionData map[string]any

// Clone returns a shallow copy; a nil receiver yields an empty map.
func (d SessionData) Clone() SessionData {
	out := make(SessionData, len(d)+8)
	maps.Copy(out, d)
	return out
}

// String returns the value under key as a trimmed string.
func (d SessionData) String(key string) string {
	switch v := d[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Bool reports whether key holds the boolean true. Strings such as "true"
// do not count.
func (d SessionData) Bool(key string) bool {
	v, ok := d[key].(bool)
	return ok && v
}

// Int64 returns an integral value under key.
func (d SessionData) Int64(key string) (int64, bool) {
	switch v := d[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		if f, err := v.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Decimal returns a decimal value under key.
func (d SessionData) Decimal(key string) (decimal.Decimal, bool) {
	switch v := d[key].(type) {
	case decimal.Decimal:
		return v, true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case float64:
		return decimal.NewFromFloat(v), true
	case json.Number:
		if dec, err := decimal.NewFromString(v.String()); err == nil {
			return dec, true
		}
	case string:
		if dec, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			return dec, true
		}
	}
	return decimal.Zero, false
}

// resolveReference picks the gateway reference for a session: the host
// session id, then a reference stored by an earlier initiate, then a new one.
func resolveReference(d SessionData) string {
	if id := d.String("session_id"); id != "" {
		return id
	}
	if ref := d.String("reference"); ref != "" {
		return ref
	}
	return "txn_" + uuid.NewString()
}

// putIfSet stores v unless it is an empty string.
func (d SessionData) putIfSet(key, v string) {
	if v != "" {
		d[key] = v
	}
}
