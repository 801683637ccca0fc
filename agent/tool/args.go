package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Args is the decoded JSON object a model passed to a tool.
type Args map[string]any

func decodeArgs(raw string) (Args, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Args{}, nil
	}
	var args Args
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	if args == nil {
		args = Args{}
	}
	return args, nil
}

// String returns a trimmed string argument. Numbers are rendered as text.
func (a Args) String(name string) string {
	switch v := a[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// ID returns a positive integer argument given as a JSON number or a numeric
// string. ok is false when the argument is absent, zero, or not an integer.
func (a Args) ID(name string) (int64, bool) {
	switch v := a[name].(type) {
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
		if v <= 0 || v != math.Trunc(v) || v >= math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Updates returns an object argument as column/value text pairs.
func (a Args) Updates(name string) (map[string]string, error) {
	raw, ok := a[name]
	if !ok || raw == nil {
		return nil, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an object", name)
	}
	out := make(map[string]string, len(obj))
	for col, v := range obj {
		switch val := v.(type) {
		case string:
			out[col] = val
		case float64:
			out[col] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[col] = strconv.FormatBool(val)
		default:
			return nil, fmt.Errorf("%s.%s must be a string", name, col)
		}
	}
	return out, nil
}
