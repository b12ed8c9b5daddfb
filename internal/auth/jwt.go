package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims this service reads. FamilyID is the data
// partition every query is scoped to; Subject carries the acting user id.
type Claims struct {
	FamilyID string `json:"familyId"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

var hs256Only = jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})

// ParseJWT validates a bearer token and returns its claims. Tokens without
// a family partition or with an unknown role are rejected even when the
// signature is valid.
func ParseJWT(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("auth: empty token")
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: empty secret")
	}

	claims := &Claims{}
	token, err := jwt.NewParser(hs256Only).ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return secret, nil })
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token")
	}
	if claims.FamilyID == "" {
		return nil, errors.New("auth: missing familyId")
	}
	if _, ok := NormalizeRole(claims.Role); !ok {
		return nil, errors.New("auth: invalid role")
	}
	if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
		return nil, errors.New("auth: token expired")
	}
	return claims, nil
}

// IssueJWT mints a signed session token for the given family member.
func IssueJWT(secret []byte, familyID string, role Role, userID string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("auth: empty secret")
	}
	if familyID == "" {
		return "", errors.New("auth: missing familyId")
	}
	now := time.Now()
	claims := Claims{
		FamilyID: familyID,
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
