package cryptox

import (
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies passwords with bcrypt. The zero value
// is not usable; construct with NewPasswordHasher.
type PasswordHasher struct {
	cost      int
	decoyHash string
}

// NewPasswordHasher creates a hasher at the given bcrypt cost. Costs outside
// bcrypt's valid range fall back to the library default.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	// A throwaway hash compared against when no user record exists, so a
	// lookup miss costs the same as a password mismatch.
	secret, _ := TokenSecret(24)
	decoy, _ := bcrypt.GenerateFromPassword([]byte(secret), cost)

	return &PasswordHasher{
		cost:      cost,
		decoyHash: string(decoy),
	}
}

// Hash returns the bcrypt hash of a plaintext password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", ErrKeyGeneration(err)
	}
	return string(b), nil
}

// Verify reports whether password matches the stored hash.
func (h *PasswordHasher) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// VerifyDecoy burns a bcrypt comparison without revealing anything. Always
// returns false.
func (h *PasswordHasher) VerifyDecoy(password string) bool {
	bcrypt.CompareHashAndPassword([]byte(h.decoyHash), []byte(password))
	return false
}
