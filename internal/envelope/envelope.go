// Package envelope defines the report messages forwarded to the parent collector.
package envelope

import (
	"encoding/json"
	"time"
)

// DefaultSource tags every envelope so receivers can filter monitor traffic
// from anything else arriving on the same channel.
const DefaultSource = "superengineer"

// Kind discriminates the two report variants.
type Kind string

const (
	// KindDOM reports a framework error overlay captured from the page.
	KindDOM Kind = "dom"
	// KindConsole reports an intercepted console error.
	KindConsole Kind = "console"
)

// DOMReport carries the serialized markup of a framework error overlay.
type DOMReport struct {
	Markup string
}

// ConsoleReport carries an intercepted console error. Args holds the
// string-coerced console arguments in call order.
type ConsoleReport struct {
	Method   string
	Message  string
	Args     []string
	IsServer bool
}

// Envelope is a single error report. Exactly one of DOM or Console is
// populated, matching Kind. Envelopes are built once, sent once, then
// discarded; there is no queue and no retry.
type Envelope struct {
	Source    string
	Kind      Kind
	DOM       *DOMReport
	Console   *ConsoleReport
	Timestamp time.Time
}

// NewDOM builds a dom-kind envelope from serialized overlay markup.
func NewDOM(markup string) *Envelope {
	return &Envelope{
		Source:    DefaultSource,
		Kind:      KindDOM,
		DOM:       &DOMReport{Markup: markup},
		Timestamp: time.Now().UTC(),
	}
}

// NewConsole builds a console-kind envelope for an intercepted console call.
func NewConsole(method, message string, args []string) *Envelope {
	return &Envelope{
		Source:    DefaultSource,
		Kind:      KindConsole,
		Console:   &ConsoleReport{Method: method, Message: message, Args: args},
		Timestamp: time.Now().UTC(),
	}
}

// wireEnvelope is the flat JSON shape posted to the parent. The receiver
// switches on "type"; variant fields are flattened alongside the tag.
// Pointer fields so the active variant's fields appear even when empty
// while the other variant's fields stay absent.
type wireEnvelope struct {
	Source    string  `json:"source"`
	Type      string  `json:"type"`
	DOM       *string `json:"dom,omitempty"`
	Method    *string `json:"method,omitempty"`
	Message   *string `json:"message,omitempty"`
	Args      *string `json:"args,omitempty"`
	IsServer  *bool   `json:"isServer,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// MarshalJSON flattens the envelope into the wire shape. Each variant always
// carries its full field set, empty or not. Console args are JSON-encoded
// into a single string field; if encoding fails the field is substituted
// with an empty array rather than aborting the whole report.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	w := wireEnvelope{
		Source:    e.Source,
		Type:      string(e.Kind),
		Timestamp: e.Timestamp.Format(time.RFC3339Nano),
	}

	switch e.Kind {
	case KindDOM:
		if e.DOM != nil {
			w.DOM = &e.DOM.Markup
		}
	case KindConsole:
		if e.Console != nil {
			w.Method = &e.Console.Method
			w.Message = &e.Console.Message
			args := encodeArgs(e.Console.Args)
			w.Args = &args
			w.IsServer = &e.Console.IsServer
		}
	}

	return json.Marshal(w)
}

// encodeArgs serializes console arguments as a JSON array-of-strings.
func encodeArgs(args []string) string {
	if args == nil {
		args = []string{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "[]"
	}
	return string(data)
}
