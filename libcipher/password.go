// Package libcipher holds the credential hashing used by the admin surface.
package libcipher

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrPasswordMismatch = errors.New("libcipher: password mismatch")

// NewPasswordHash derives a bcrypt hash for storage in configuration.
func NewPasswordHash(password string) (string, error) {
	if password == "" {
		return "", errors.New("libcipher: empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("libcipher: hash generation failed: %w", err)
	}
	return string(hash), nil
}

// CheckPasswordHash compares a candidate password against a stored hash.
func CheckPasswordHash(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("libcipher: hash comparison failed: %w", err)
	}
	return nil
}
