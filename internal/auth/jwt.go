package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the claims in our JWT tokens
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"` // "user" or "service"
	jwt.RegisteredClaims
}

// TokenManager signs and validates session tokens
type TokenManager struct {
	secret []byte
}

// NewTokenManager creates a token manager with the given signing secret
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// GenerateUserToken generates a JWT for control API access
func (m *TokenManager) GenerateUserToken(userID string) (string, error) {
	claims := &Claims{
		UserID: userID,
		Role:   "user",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// GenerateServiceToken generates a short-lived bearer token for calls to
// collaborator backends (document storage, workspace, assessment).
func (m *TokenManager) GenerateServiceToken(userID string) (string, error) {
	claims := &Claims{
		UserID: userID,
		Role:   "service",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate validates a token string and returns its claims
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}
