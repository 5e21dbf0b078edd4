package services

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the fixed bcrypt work factor for all stored passwords.
const BcryptCost = bcrypt.DefaultCost

// HashedPassword holds a bcrypt hash. It can only be built from plaintext
// through HashPassword, so a plaintext value can never end up in a field
// that gets persisted, and hashing happens in exactly one layer.
type HashedPassword struct {
	hash string
}

// HashPassword hashes the plaintext with a fresh random salt.
func HashPassword(plaintext string) (HashedPassword, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), BcryptCost)
	if err != nil {
		return HashedPassword{}, fmt.Errorf("hash password: %w", err)
	}
	return HashedPassword{hash: string(hash)}, nil
}

// String returns the hash in modular crypt format, ready for storage.
func (p HashedPassword) String() string { return p.hash }

// Verify reports whether the plaintext matches the hash.
func (p HashedPassword) Verify(plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(p.hash), []byte(plaintext)) == nil
}
