package types

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Params is a button's type-specific parameter bag. Values are strings or
// numbers; numbers decoded from JSON are kept as json.Number so they are
// written back exactly as read.
type Params map[string]any

// String returns the value for key as text. Numbers are formatted; a missing
// key yields "".
func (p Params) String(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprint(v)
	}
}

// Float returns the numeric value for key. Numeric strings are accepted.
func (p Params) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// Int returns the value for key as an integer. Fractional values are
// rejected.
func (p Params) Int(key string) (int64, bool) {
	f, ok := p.Float(key)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

// Has reports whether key is present with a non-empty value.
func (p Params) Has(key string) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}
	c := make(Params, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CheckScalars returns an error naming the first key whose value is neither a
// string nor a number.
func (p Params) CheckScalars() error {
	for _, k := range p.Keys() {
		switch p[k].(type) {
		case string, json.Number, float64, float32, int, int64:
		default:
			return fmt.Errorf("param %q: value must be a string or number", k)
		}
	}
	return nil
}
