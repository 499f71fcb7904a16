// Package auth verifies access tokens issued by the hosted auth backend and
// checks role permissions
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the access token claims; Subject is the user ID
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject as a user UUID
func (c *Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid token subject: %w", err)
	}
	return id, nil
}

// Token is a signed access token
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"`
}

// JWTService handles JWT operations
type JWTService struct {
	secretKey   []byte
	tokenExpiry time.Duration
	issuer      string
}

// NewJWTService creates a JWT service keyed with the backend secret
func NewJWTService(secret string, expiry time.Duration) *JWTService {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &JWTService{
		secretKey:   []byte(secret),
		tokenExpiry: expiry,
		issuer:      "a2s-gestion",
	}
}

// GenerateToken signs an access token for a user. Production tokens come
// from the auth backend; this is used by the CLI and tests.
func (s *JWTService) GenerateToken(userID uuid.UUID, email string) (*Token, error) {
	now := time.Now()
	expiresAt := now.Add(s.tokenExpiry)

	claims := &Claims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   userID.String(),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	return &Token{
		AccessToken: signed,
		ExpiresAt:   expiresAt,
		TokenType:   "Bearer",
	}, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithExpirationRequired())

	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}
