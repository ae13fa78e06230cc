package security

import "golang.org/x/crypto/bcrypt"

// bcryptCost matches the cost the original deployment hashed with, so
// existing stored hashes keep verifying.
const bcryptCost = 10

// HashPassword hashes a plain text password with bcrypt. Each call salts
// independently, so equal inputs produce distinct hashes.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password. A malformed
// hash yields an error, never a panic, so callers fail closed.
func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
