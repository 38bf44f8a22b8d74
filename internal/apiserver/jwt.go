// This file implements a JSON Web Token service for issuing and verifying
// API access tokens (HS256) using golang-jwt/jwt/v5.
package apiserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTService generates and validates HS256-signed JWTs for the BDP API.
type JWTService struct {
	secret   []byte
	issuer   string
	audience string
}

func NewJWTService(secret string) *JWTService {
	return &JWTService{secret: []byte(secret)}
}

// NewJWTServiceWithIssuer creates a JWT service that also validates the
// token's issuer and audience claims.
func NewJWTServiceWithIssuer(secret, issuer, audience string) *JWTService {
	return &JWTService{secret: []byte(secret), issuer: issuer, audience: audience}
}

type bdpClaims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes,omitempty"`
}

// GenerateToken creates a signed JWT for userID, valid for expiration.
func (j *JWTService) GenerateToken(userID string, expiration time.Duration) (string, error) {
	return j.GenerateTokenWithScopes(userID, expiration, nil)
}

// GenerateTokenWithScopes creates a signed JWT carrying authorization scopes
// (e.g. "organizations:write", "audit:export") alongside the standard claims.
func (j *JWTService) GenerateTokenWithScopes(userID string, expiration time.Duration, scopes []string) (string, error) {
	now := time.Now()
	claims := bdpClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
		},
		Scopes: scopes,
	}
	if j.issuer != "" {
		claims.Issuer = j.issuer
	}
	if j.audience != "" {
		claims.Audience = jwt.ClaimStrings{j.audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies the token's signature, expiration, issuer, and
// audience (when configured) and returns the parsed claims.
func (j *JWTService) ValidateToken(tokenString string) (*bdpClaims, error) {
	opts := []jwt.ParserOption{}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	if j.audience != "" {
		opts = append(opts, jwt.WithAudience(j.audience))
	}

	claims := &bdpClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return j.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("token expired: %w", err)
		}
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
