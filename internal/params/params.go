// Package params converts the filter and pagination state of a data view to
// and from a canonical URL query string.
package params

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// PageKey is the query key holding the page offset.
const PageKey = "page"

// FirstPage is the value PageKey takes after a reset.
const FirstPage = 0

// Params holds one view's filters and pagination cursors. Values are
// string, bool, int, int64 or float64. Ordering is defined by Encode.
type Params map[string]any

// DecodeError reports a query string that could not be parsed.
type DecodeError struct {
	Query string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode params %q: %v", e.Query, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UnsupportedValueError reports a Params value Encode cannot represent.
type UnsupportedValueError struct {
	Key   string
	Value any
}

func (e *UnsupportedValueError) Error() string {
	return fmt.Sprintf("param %q: unsupported value type %T", e.Key, e.Value)
}

// Encode returns the canonical query string for p: keys sorted, values
// formatted without locale or padding. Equal logical params always produce an
// identical string.
func Encode(p Params) (string, error) {
	v := make(url.Values, len(p))
	for key, val := range p {
		s, err := formatValue(val)
		if err != nil {
			return "", &UnsupportedValueError{Key: key, Value: val}
		}
		v.Set(key, s)
	}
	// url.Values.Encode sorts by key.
	return v.Encode(), nil
}

// MustEncode is Encode for params built from literals.
func MustEncode(p Params) string {
	s, err := Encode(p)
	if err != nil {
		panic(err)
	}
	return s
}

func formatValue(val any) (string, error) {
	switch v := val.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported %T", val)
	}
}

// Decode parses a query string. Keys absent from the query are absent from the
// result; defaulting is left to the caller. Every decoded value is a string.
func Decode(query string) (Params, error) {
	query = strings.TrimPrefix(query, "?")
	v, err := url.ParseQuery(query)
	if err != nil {
		return nil, &DecodeError{Query: query, Err: err}
	}
	p := make(Params, len(v))
	for key, vals := range v {
		if len(vals) > 1 {
			return nil, &DecodeError{Query: query, Err: fmt.Errorf("repeated key %q", key)}
		}
		p[key] = vals[0]
	}
	return p, nil
}

// Merge applies patch on top of current and returns a new map. A nil patch
// value removes the key. With resetPage the page offset goes back to the
// first page.
func Merge(current, patch Params, resetPage bool) Params {
	out := current.Clone()
	for key, val := range patch {
		if val == nil {
			delete(out, key)
			continue
		}
		out[key] = val
	}
	if resetPage {
		out[PageKey] = FirstPage
	}
	return out
}

// Clone returns a shallow copy; values are primitives so the copy is
// independent. Clone of nil is an empty, non-nil map.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Equal reports whether p and o share a canonical encoding. Params that
// cannot be encoded are never equal.
func (p Params) Equal(o Params) bool {
	a, err := Encode(p)
	if err != nil {
		return false
	}
	b, err := Encode(o)
	if err != nil {
		return false
	}
	return a == b
}

// String returns the value of key formatted as in a query string, or "".
func (p Params) String(key string) string {
	val, ok := p[key]
	if !ok {
		return ""
	}
	s, err := formatValue(val)
	if err != nil {
		return ""
	}
	return s
}

// Int returns key as an integer, accepting both numeric and decoded string
// values. Missing or unparsable values give def.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Bool returns key as a boolean with the same leniency as Int.
func (p Params) Bool(key string, def bool) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Page returns the page offset, FirstPage when unset.
func (p Params) Page() int {
	return p.Int(PageKey, FirstPage)
}
