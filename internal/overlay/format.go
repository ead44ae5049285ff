// Package overlay implements detection of framework error overlays and the
// formatting and deduplication rules applied to intercepted console errors.
package overlay

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches the console format placeholders the monitor
// substitutes: %s %i %d %f %o %O.
var placeholderPattern = regexp.MustCompile(`%[sidfoO]`)

// FormatMessage renders console arguments into a single string following the
// console format convention. When the first argument is a string containing
// placeholders, each placeholder consumes one subsequent argument and any
// arguments left over are appended space-separated. Otherwise all arguments
// are coerced to strings and space-joined.
func FormatMessage(args ...interface{}) string {
	if len(args) == 0 {
		return ""
	}

	format, ok := args[0].(string)
	if !ok || !placeholderPattern.MatchString(format) {
		return joinArgs(args)
	}

	rest := args[1:]
	next := 0
	out := placeholderPattern.ReplaceAllStringFunc(format, func(match string) string {
		if next >= len(rest) {
			return match
		}
		value := rest[next]
		next++
		if match == "%o" || match == "%O" {
			return serializeArg(value)
		}
		return coerceArg(value)
	})

	if next < len(rest) {
		out += " " + joinArgs(rest[next:])
	}
	return out
}

// CoerceArgs converts raw console arguments into the string form carried in a
// console-kind envelope.
func CoerceArgs(args []interface{}) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		out = append(out, coerceArg(arg))
	}
	return out
}

func joinArgs(args []interface{}) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, coerceArg(arg))
	}
	return strings.Join(parts, " ")
}

// coerceArg converts a single console argument to its display string.
func coerceArg(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case map[string]interface{}, []interface{}:
		return serializeArg(val)
	default:
		return fmt.Sprint(val)
	}
}

// serializeArg renders structured values as JSON, falling back to fmt
// formatting when the value cannot be encoded.
func serializeArg(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
