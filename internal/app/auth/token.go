// Package auth mints and validates the JWTs carried by privileged callers.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rezars19/rz-automedata/pkg/config"
)

type AdminClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

const RoleAdmin = "admin"

// GenerateAdminToken signs a short-lived privileged token for the admin
// identified by email.
func GenerateAdminToken(cfg *config.Config, email string) (string, time.Time, error) {
	ttl := cfg.Auth.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	expiresAt := time.Now().Add(ttl)
	claims := AdminClaims{
		Email: email,
		Role:  RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseAdminToken validates the signature and expiry and returns the claims.
func ParseAdminToken(cfg *config.Config, tokenString string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.Auth.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*AdminClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}
