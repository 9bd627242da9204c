package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/reviewdesk/draft-review-console/internal/domain"
)

// HashPassword hashes a plaintext password. Costs outside bcrypt's range fall back to the default.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyOperator reports whether plain matches the operator's configured hash.
func VerifyOperator(operator domain.Operator, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(plain)) == nil
}
