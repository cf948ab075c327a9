package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const adminTokenTTL = 12 * time.Hour

var ErrInvalidToken = errors.New("invalid admin token")

// GenerateAdminJWT issues a signed token identifying an administrator.
// Returns the token string and its unix expiry timestamp.
func GenerateAdminJWT(username string, secret []byte) (string, int64, error) {
	expiresAt := time.Now().Add(adminTokenTTL).Unix()
	claims := jwt.MapClaims{
		"sub":  username,
		"role": "admin",
		"exp":  expiresAt,
		"iat":  time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", 0, err
	}
	return signed, expiresAt, nil
}

// ValidateAdminJWT verifies a token and returns the admin username it carries.
func ValidateAdminJWT(tokenString string, secret []byte) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}
