package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// accessClaims authorize API calls for one session.
type accessClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	TokenType string `json:"typ"`
}

// refreshClaims additionally carry the rotation identifier that makes a
// refresh token single-use.
type refreshClaims struct {
	jwt.RegisteredClaims
	SessionID  string `json:"sid"`
	RotationID string `json:"rid"`
	TokenType  string `json:"typ"`
}

func signAccess(userID, sessionID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		SessionID: sessionID,
		TokenType: typeAccess,
	})
	return t.SignedString(secret)
}

func signRefresh(userID, sessionID, rotationID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		SessionID:  sessionID,
		RotationID: rotationID,
		TokenType:  typeRefresh,
	})
	return t.SignedString(secret)
}

func parseAccess(tokenString string, secret []byte) (*accessClaims, error) {
	claims := &accessClaims{}
	if err := parseInto(tokenString, secret, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != typeAccess {
		return nil, ErrInvalid
	}
	return claims, nil
}

func parseRefresh(tokenString string, secret []byte) (*refreshClaims, error) {
	claims := &refreshClaims{}
	if err := parseInto(tokenString, secret, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != typeRefresh {
		return nil, ErrInvalid
	}
	return claims, nil
}

func parseInto(tokenString string, secret []byte, claims jwt.Claims) error {
	t, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}
		return ErrInvalid
	}
	if !t.Valid {
		return ErrInvalid
	}
	return nil
}
