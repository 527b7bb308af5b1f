package validate

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
)

// Params is a request parameter mapping built by omission: setters drop
// values that are empty, zero, or false, so an unspecified argument never
// reaches the wire. The same map serves as a query string (Values) or as a
// JSON request body.
//
// Omission makes an explicit false indistinguishable from "not given". Use
// OptBool when the service must receive an explicit false.
type Params map[string]any

// NewParams returns an empty parameter mapping.
func NewParams() Params {
	return Params{}
}

// Str sets key when value is non-empty.
func (p Params) Str(key, value string) Params {
	if value != "" {
		p[key] = value
	}
	return p
}

// Int sets key when value is non-zero.
func (p Params) Int(key string, value int) Params {
	if value != 0 {
		p[key] = value
	}
	return p
}

// Bool sets key only when value is true.
func (p Params) Bool(key string, value bool) Params {
	if value {
		p[key] = true
	}
	return p
}

// OptBool sets key whenever value is non-nil, including an explicit false.
func (p Params) OptBool(key string, value *bool) Params {
	if value != nil {
		p[key] = *value
	}
	return p
}

// Merge copies extra parameters that are present and non-empty. Keys already
// set by a typed setter win.
func (p Params) Merge(extra map[string]any) Params {
	for key, value := range extra {
		if _, exists := p[key]; exists {
			continue
		}
		if isEmpty(value) {
			continue
		}
		p[key] = value
	}
	return p
}

// Values renders the mapping as a query string. Keys are emitted in sorted
// order so requests are reproducible.
func (p Params) Values() url.Values {
	if len(p) == 0 {
		return nil
	}

	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	values := make(url.Values, len(p))
	for _, key := range keys {
		values.Set(key, format(p[key]))
	}
	return values
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case int:
		return v == 0
	case int64:
		return v == 0
	case bool:
		return !v
	case *bool:
		return v == nil
	case *string:
		return v == nil || *v == ""
	case []string:
		return len(v) == 0
	default:
		return false
	}
}

func format(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case *bool:
		return strconv.FormatBool(*v)
	case *string:
		return *v
	default:
		return fmt.Sprint(v)
	}
}
