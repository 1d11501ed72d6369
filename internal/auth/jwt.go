package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// ParseToken verifies an HMAC-signed bearer token and extracts the principal.
// Expected claims: sub (user UUID), role, name.
func ParseToken(secret, tokenString string) (Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenMalformed
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: sub is not a UUID", ErrInvalidToken)
	}

	roleStr, _ := claims["role"].(string)
	role := Role(roleStr)
	switch role {
	case RolePatient, RoleDoctor, RoleAdmin:
	default:
		role = RolePatient
	}

	name, _ := claims["name"].(string)

	return Principal{UserID: userID, Name: name, Role: role}, nil
}

// SignToken mints a token for the given principal. Used by the seed tool and
// tests; the production identity provider issues real tokens.
func SignToken(secret string, p Principal) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  p.UserID.String(),
		"role": string(p.Role),
		"name": p.Name,
	})
	return token.SignedString([]byte(secret))
}
