package authprovider

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	domain "loyaltyloop/internal/domain/account"
)

// ResetCodeTTL bounds how long a password-reset link works.
const ResetCodeTTL = time.Hour

const (
	resetIssuer  = "loyaltyloop"
	resetPurpose = "password_reset"
)

// ErrInvalidResetCode covers expired, tampered, reused and unknown codes.
var ErrInvalidResetCode = errors.New("password reset link is invalid or has expired")

// resetClaims is the payload of a reset code.
// Pwh ties the code to the password hash it was issued for.
type resetClaims struct {
	Purpose string `json:"purpose"`
	Pwh     string `json:"pwh"`
	jwt.RegisteredClaims
}

func (s *Service) issueResetCode(acc domain.Account) (string, error) {
	now := s.now()
	claims := resetClaims{
		Purpose: resetPurpose,
		Pwh:     acc.PasswordFingerprint(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    resetIssuer,
			Subject:   acc.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ResetCodeTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign reset code: %w", err)
	}
	return signed, nil
}

// parseResetCode checks signature, issuer, expiry and purpose. The password
// fingerprint is checked by the caller against the stored account.
func (s *Service) parseResetCode(code string) (*resetClaims, error) {
	claims := &resetClaims{}
	_, err := jwt.ParseWithClaims(code, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(resetIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResetCode, err)
	}
	if claims.Purpose != resetPurpose || claims.Subject == "" {
		return nil, ErrInvalidResetCode
	}
	return claims, nil
}
