package types

import "log/slog"

// SecretString wraps sensitive values (tokens, DSNs, keys) so they cannot
// leak through logs or fmt verbs. The underlying value is only reachable via
// an explicit Value() call.
type SecretString string

// redacted is what every formatting path renders for a SecretString.
const redacted = "[REDACTED]"

// String implements fmt.Stringer and always returns the redaction marker.
func (s SecretString) String() string { return redacted }

// GoString prevents %#v from exposing the value.
func (s SecretString) GoString() string { return redacted }

// MarshalJSON renders the redaction marker so secrets never serialize.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// LogValue implements slog.LogValuer so structured logs never print the raw value.
func (s SecretString) LogValue() slog.Value { return slog.StringValue(redacted) }

// Value returns the raw secret. Call sites should pass the result directly
// to the consumer (driver, signer) rather than storing it in intermediate
// structs.
func (s SecretString) Value() string { return string(s) }

// IsEmpty reports whether the secret is unset.
func (s SecretString) IsEmpty() bool { return s == "" }
