package redact

import (
	"regexp"
	"strings"
)

// RedactedValue is the placeholder substituted for scrubbed content.
const RedactedValue = "[REDACTED]"

// Scrubber masks sensitive values in console messages and arguments.
// Matching is structural: a denylisted field name followed by '=' or ':'
// has its value replaced, whether the pair appears as a bare key=value
// fragment or inside JSON-ish output.
type Scrubber struct {
	enabled bool
	pattern *regexp.Regexp
}

// New creates a Scrubber with the default field denylist.
func New(enabled bool) *Scrubber {
	return NewWithFields(enabled, nil)
}

// NewWithFields creates a Scrubber with extra denylisted field names on top
// of the defaults.
func NewWithFields(enabled bool, extra []string) *Scrubber {
	raw := make([]string, 0, len(DefaultFieldDenylist)+len(extra))
	raw = append(raw, DefaultFieldDenylist...)
	raw = append(raw, extra...)

	fields := make([]string, 0, len(raw))
	for _, f := range raw {
		fields = append(fields, regexp.QuoteMeta(f))
	}
	// Field names may carry prefixes/suffixes (user_password, passwordHash);
	// values are either quoted strings or bare tokens.
	expr := `(?i)("?[a-z0-9_-]*(?:` + strings.Join(fields, "|") + `)[a-z0-9_-]*"?\s*[:=]\s*)("[^"]*"|[^\s,;}&]+)`
	return &Scrubber{
		enabled: enabled,
		pattern: regexp.MustCompile(expr),
	}
}

// IsEnabled returns whether scrubbing is enabled.
func (s *Scrubber) IsEnabled() bool {
	return s.enabled
}

// ScrubMessage masks sensitive values in a formatted console message.
func (s *Scrubber) ScrubMessage(message string) string {
	if !s.enabled || message == "" {
		return message
	}
	return s.pattern.ReplaceAllString(message, "${1}"+RedactedValue)
}

// ScrubArgs masks sensitive values in serialized console arguments.
func (s *Scrubber) ScrubArgs(args []string) []string {
	if !s.enabled || len(args) == 0 {
		return args
	}
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = s.pattern.ReplaceAllString(arg, "${1}"+RedactedValue)
	}
	return out
}
