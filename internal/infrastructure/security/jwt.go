// Package security provides JWT token utilities
package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidToken indicates a token that failed validation or carried
// malformed claims.
var ErrInvalidToken = errors.New("invalid token")

// TokenClaims is the verified identity carried by a CropAlert JWT.
type TokenClaims struct {
	UserID string
	Role   string
}

// ValidateJWT validates a JWT token and returns the claims
func ValidateJWT(tokenString, jwtSecret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// TokenClaimsFrom extracts the CropAlert identity claims from validated claims.
func TokenClaimsFrom(claims jwt.MapClaims) (*TokenClaims, error) {
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, ErrInvalidToken
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return nil, ErrInvalidToken
	}
	return &TokenClaims{UserID: sub, Role: role}, nil
}

// GenerateAccessToken creates a signed JWT for an authenticated user.
func GenerateAccessToken(userID, role, jwtSecret string, expiry time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"iat":  time.Now().UTC().Unix(),
		"exp":  time.Now().UTC().Add(expiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}
