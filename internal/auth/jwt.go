// Package auth verifies the bearer credential a client presents over
// the socket and maps it to a user identity.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wecall/signaling/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier maps a bearer credential to a user identity.
type Verifier interface {
	Verify(token string) (domain.UserID, error)
}

// JWT verifies HMAC-signed tokens carrying a userId claim.
type JWT struct {
	secret []byte
}

func NewJWT(secret string) *JWT {
	return &JWT{secret: []byte(secret)}
}

func (j *JWT) Verify(tokenString string) (domain.UserID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return j.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	userID, ok := claims["userId"].(string)
	if !ok || userID == "" {
		return "", ErrInvalidToken
	}
	return domain.UserID(userID), nil
}

// Sign issues a token for userID. The auth service signs tokens the
// same way; this lives here for tooling and tests.
func (j *JWT) Sign(userID domain.UserID, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"userId": string(userID),
		"exp":    time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}
