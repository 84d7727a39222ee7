package password

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor applied by Hash.
const DefaultCost = bcrypt.DefaultCost

// Hash generates a bcrypt hash for the plaintext password at DefaultCost.
func Hash(plain string) (string, error) {
	return HashWithCost(plain, DefaultCost)
}

// HashWithCost generates a bcrypt hash at the given work factor. A cost
// outside bcrypt's accepted range falls back to DefaultCost.
func HashWithCost(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify checks a plaintext password against its stored hash.
func Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Cost reports the work factor a stored hash was generated with, so callers
// can rehash after a cost increase.
func Cost(hash string) (int, error) {
	return bcrypt.Cost([]byte(hash))
}
