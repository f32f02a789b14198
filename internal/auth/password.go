package auth

import (
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"

	"github.com/malabook/mala/server/internal/gerrors"
)

// HashPassword returns the bcrypt hash stored alongside the Keycloak
// credential, used by check-auth and local verification paths.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", gerrors.Wrap(err)
	}
	return string(hash), nil
}

func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NewCSRFToken returns 16 random bytes hex-encoded, issued as the
// csrf_token cookie at login.
func NewCSRFToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", gerrors.Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}
