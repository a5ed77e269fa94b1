package types

import "strings"

// redactedPlaceholder replaces secret values in logs and serialization.
const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds a credential (webhook URL, API token) that must never be
// printed. String and MarshalJSON return a placeholder; Unmask returns the
// plaintext for the few places that need it (Authorization header, POST target).
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value of the secret.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsEmpty reports whether the secret is unset or whitespace only.
func (s SecretString) IsEmpty() bool {
	return strings.TrimSpace(string(s)) == ""
}
