// Package secrets hashes account passwords and generates random tokens.
// Credential knowledge factors use internal/credential/verifier instead.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/bcrypt"

	dErrors "verichain/pkg/domain-errors"
)

// MinPasswordLength is enforced on registration.
const MinPasswordLength = 8

// Hasher hashes passwords with bcrypt at a fixed cost.
type Hasher struct {
	cost int
}

// NewHasher returns a hasher using cost, or bcrypt.DefaultCost when cost is
// out of range. Tests pass bcrypt.MinCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Generate creates a cryptographically secure random token, base64url encoded.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate secret")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeValidation, "password is too long")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not hash password")
	}
	return string(hashed), nil
}

// Verify checks password against a bcrypt hash. A mismatch is CodeUnauthorized.
func (h *Hasher) Verify(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not verify password")
	}
	return nil
}
