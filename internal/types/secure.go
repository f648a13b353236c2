package types

// SecretString holds a credential that must never appear in logs, error
// payloads, or serialized config. The service carries four of them: the
// Stripe secret key, the webhook signing secret, the JWT signing secret,
// and the database URL (which embeds a password). Both fmt rendering and
// JSON marshaling yield a fixed placeholder, so a config dump or a logged
// struct cannot leak the value by accident.
//
// The plaintext is only reachable through Unmask, which keeps every use of
// the raw credential greppable.
type SecretString string

const secretPlaceholder = "***REDACTED***"

// String implements fmt.Stringer with the placeholder.
func (s SecretString) String() string {
	return secretPlaceholder
}

// MarshalJSON emits the placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + secretPlaceholder + `"`), nil
}

// Unmask returns the plaintext. Call sites are limited to the points that
// hand the credential to a collaborator: the Stripe Authorization header,
// webhook signature verification, JWT parsing, and pool construction.
func (s SecretString) Unmask() string {
	return string(s)
}
