package security

import (
	"crypto/rand"
	"encoding/base64"
)

// NewRandomString returns a URL-safe string carrying n bytes of entropy from
// the system CSPRNG. Used for verification token strings.
func NewRandomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
