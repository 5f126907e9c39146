package config

import "strings"

const redacted = "[REDACTED]"

// Secret holds a credential from the config file: the Binance key pair or the
// comma-separated gRPC API keys. Every printing and marshaling path redacts a
// non-empty value, so Config.String and startup logs never leak it.
type Secret string

func (s Secret) mask() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) String() string { return s.mask() }

// GoString covers %#v
func (s Secret) GoString() string { return `"` + s.mask() + `"` }

func (s Secret) MarshalYAML() (interface{}, error) { return s.mask(), nil }

func (s Secret) MarshalJSON() ([]byte, error) { return []byte(`"` + s.mask() + `"`), nil }

// Reveal returns the raw value for the client that authenticates with it
func (s Secret) Reveal() string {
	return string(s)
}

// List splits a comma-separated secret into trimmed, non-empty entries
func (s Secret) List() []string {
	var out []string
	for _, part := range strings.Split(string(s), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
