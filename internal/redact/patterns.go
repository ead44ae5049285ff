// Package redact scrubs sensitive values from intercepted console output
// before it leaves the machine.
package redact

// DefaultFieldDenylist contains field names whose values are scrubbed when
// they appear in console messages as key=value or "key": "value" pairs.
var DefaultFieldDenylist = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"apikey",
	"api_key",
	"access_token",
	"refresh_token",
	"private_key",
	"client_secret",
	"credential",
	"credentials",
	"authorization",
	"cookie",
	"ssn",
	"credit_card",
	"card_number",
	"cvv",
}
