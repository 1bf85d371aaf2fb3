package identity

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// User is the caller behind an access token. Token is kept so outbound calls
// to the account and order services can forward it.
type User struct {
	ID    string
	Role  string
	Token string
}

func (u User) IsAdmin() bool {
	return u.Role == "admin"
}

// FromToken verifies an HS256 access token and reads its sub and role claims.
// The auth service issues numeric subjects; string subjects are accepted too.
func FromToken(raw string, secret []byte) (User, error) {
	tkn, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	})
	if err != nil || !tkn.Valid {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := tkn.Claims.(jwt.MapClaims)
	if !ok {
		return User{}, fmt.Errorf("%w: cannot parse claims", ErrInvalidToken)
	}
	if typ, ok := claims["typ"]; ok && typ == "refresh" {
		return User{}, fmt.Errorf("%w: refresh token", ErrInvalidToken)
	}

	sub := subject(claims["sub"])
	if sub == "" {
		return User{}, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	role, _ := claims["role"].(string)

	return User{ID: sub, Role: role, Token: raw}, nil
}

func subject(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		if s < 0 || s != float64(uint64(s)) {
			return ""
		}
		return strconv.FormatUint(uint64(s), 10)
	}
	return ""
}

// Sign issues an access token in the auth service's format.
func Sign(userID uint, role string, secret []byte, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}
