package resolve

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Verifier checks a submitted credential against the configured secret.
type Verifier interface {
	Verify(credential string) bool
}

// NewVerifier returns a verifier for secret. Secrets starting with a bcrypt
// prefix are treated as hashes; anything else is compared verbatim. An empty
// secret rejects every credential.
func NewVerifier(secret string) Verifier {
	switch {
	case secret == "":
		return rejectAll{}
	case isBcryptHash(secret):
		return bcryptVerifier{hash: []byte(secret)}
	default:
		return plainVerifier{secret: []byte(secret)}
	}
}

func isBcryptHash(secret string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(secret, prefix) {
			return true
		}
	}
	return false
}

type rejectAll struct{}

func (rejectAll) Verify(string) bool { return false }

type plainVerifier struct {
	secret []byte
}

func (v plainVerifier) Verify(credential string) bool {
	return subtle.ConstantTimeCompare(v.secret, []byte(credential)) == 1
}

type bcryptVerifier struct {
	hash []byte
}

func (v bcryptVerifier) Verify(credential string) bool {
	return bcrypt.CompareHashAndPassword(v.hash, []byte(credential)) == nil
}
