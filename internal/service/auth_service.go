package service

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// TokenType distinguishes learner vs instructor tokens.
type TokenType string

const (
	TokenTypeLearner    TokenType = "learner"
	TokenTypeInstructor TokenType = "instructor"
)

// Claims extends JWT standard claims with app-specific fields. Tokens are
// issued by the platform's identity service; this service only verifies them.
type Claims struct {
	jwt.RegisteredClaims
	TokenType   TokenType `json:"token_type"`
	UserID      int       `json:"user_id"`
	Permissions []string  `json:"permissions,omitempty"` // Instructor only
}

// HasPermission reports whether the token carries p.
func (c *Claims) HasPermission(p model.Permission) bool {
	return slices.Contains(c.Permissions, string(p))
}

// Grader derives the grading identity from instructor claims.
func (c *Claims) Grader() Grader {
	return Grader{
		UserID:   c.UserID,
		GradeAll: c.HasPermission(model.PermissionAttemptsGradeAll),
	}
}

// AuthService verifies platform JWTs.
type AuthService struct {
	secret []byte
}

// NewAuthService creates a new AuthService for an HMAC secret.
func NewAuthService(secret string) *AuthService {
	return &AuthService{secret: []byte(secret)}
}

// IssueToken signs a token. Used by the issue-token tool and tests; the
// platform mints production tokens.
func (s *AuthService) IssueToken(tokenType TokenType, userID int, permissions []string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType:   tokenType,
		UserID:      userID,
		Permissions: permissions,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID <= 0 {
		return nil, errors.New("token has no user id")
	}

	return claims, nil
}
