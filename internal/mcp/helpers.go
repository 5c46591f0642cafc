package mcp

import (
	"encoding/json"
	"fmt"

	"webdriver-fleet-mcp/internal/fleet"
)

// marshalForDecode re-serializes a generic JSON-decoded map so it can be
// unmarshalled into a concrete struct via the same encoding/json path the
// rest of the recipe package uses.
func marshalForDecode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func getStringArg(args map[string]interface{}, key string) string {
	val, ok := args[key]
	if !ok {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", val)
}

func getIntArg(args map[string]interface{}, key string, fallback int) int {
	val, ok := args[key]
	if !ok {
		return fallback
	}
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func getBoolArg(args map[string]interface{}, key string, fallback bool) bool {
	val, ok := args[key]
	if !ok {
		return fallback
	}
	if b, ok := val.(bool); ok {
		return b
	}
	return fallback
}

func getMapArg(args map[string]interface{}, key string) map[string]interface{} {
	val, ok := args[key]
	if !ok {
		return nil
	}
	m, _ := val.(map[string]interface{})
	return m
}

// requireStrings validates that every name in required is present and
// non-empty in args, returning an InvalidArguments-class error naming the
// first missing one.
func requireStrings(args map[string]interface{}, required ...string) error {
	for _, name := range required {
		if getStringArg(args, name) == "" {
			return fleet.NewError(fleet.InvalidArguments, nil, "missing required argument %q", name)
		}
	}
	return nil
}
