package tools

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/krug-dev/krug-mcp/internal/domain/tool"
)

func invalidArg(format string, a ...any) error {
	return fmt.Errorf("%w: %s", tool.ErrInvalidArguments, fmt.Sprintf(format, a...))
}

// stringArg returns args[key] as a trimmed string.
func stringArg(args map[string]any, key string, required bool) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		if required {
			return "", invalidArg("%s is required", key)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidArg("%s must be a string", key)
	}
	s = strings.TrimSpace(s)
	if s == "" && required {
		return "", invalidArg("%s is required", key)
	}
	return s, nil
}

// intArg returns args[key] as an integer. JSON numbers arrive as float64 and
// must be whole; numeric strings are accepted too.
func intArg(args map[string]any, key string, required bool, def int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		if required {
			return 0, invalidArg("%s is required", key)
		}
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, invalidArg("%s must be an integer", key)
		}
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, invalidArg("%s must be an integer", key)
		}
		return i, nil
	default:
		return 0, invalidArg("%s must be an integer", key)
	}
}

// idArg returns an identifier that may be sent as a string or a number.
func idArg(args map[string]any, key string) (string, error) {
	switch v := args[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s, nil
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return "", invalidArg("%s is required", key)
}
