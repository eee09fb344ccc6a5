package capability

import (
	"fmt"
	"strconv"
)

// argString extracts a string argument, "" if absent.
func argString(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// requireString extracts a string argument and errors if it is missing or
// empty, naming the argument so the planner can correct itself.
func requireString(args map[string]any, key string) (string, error) {
	s := argString(args, key)
	if s == "" {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	return s, nil
}

// argInt extracts an integer argument; JSON numbers arrive as float64.
func argInt(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
