// Package auth verifies caller bearer tokens. Tokens are HS256 JWTs carrying
// the user id and an optional role; issuing them is the job of the external
// identity service (and of the admin CLI for operators).
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the registered claims plus the caller's user id and role.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Role   string `json:"role,omitempty"`
}

// GenerateToken signs a token for userID with the given role.
func GenerateToken(userID, role string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID: userID,
		Role:   role,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken validates tokenString and returns the caller identity.
// Expired tokens yield common.ErrTokenExpired, anything else invalid
// yields common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, common.ErrTokenExpired
		}
		return Identity{}, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return Identity{}, common.ErrInvalidToken
	}

	role := claims.Role
	if role == "" {
		role = common.RoleUser
	}
	return Identity{UserID: claims.UserID, Role: role}, nil
}
