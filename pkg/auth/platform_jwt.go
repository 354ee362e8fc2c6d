package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RolePlatform marks tokens issued to the orchestration platform itself.
// Such tokens may act on any user.
const RolePlatform = "platform"

const issuer = "meetsync"

// Caller represents an authenticated caller
type Caller struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
}

// CanActFor reports whether the caller may operate on userID's session
func (c *Caller) CanActFor(userID string) bool {
	return c.Role == RolePlatform || c.Subject == userID
}

// ExtractToken extracts the JWT token from an Authorization header value.
// Supports "Bearer <token>" format.
func ExtractToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("empty authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty token")
	}

	return token, nil
}

// PlatformJWTAuth verifies HS256 bearer tokens shared with the calling platform
type PlatformJWTAuth struct {
	SecretKey   []byte
	TokenExpiry time.Duration // Default: 1 hour
}

// NewPlatformJWTAuth creates a verifier. An empty secret is an error.
func NewPlatformJWTAuth(secretKey string, expiry time.Duration) (*PlatformJWTAuth, error) {
	if secretKey == "" {
		return nil, errors.New("JWT secret key cannot be empty")
	}
	if expiry == 0 {
		expiry = time.Hour
	}
	return &PlatformJWTAuth{SecretKey: []byte(secretKey), TokenExpiry: expiry}, nil
}

// PlatformClaims represents the JWT token claims
type PlatformClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for subject with the given role
func (a *PlatformJWTAuth) IssueToken(subject, role string) (string, error) {
	now := time.Now()
	claims := PlatformClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.SecretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// VerifyToken verifies a token and returns the caller
func (a *PlatformJWTAuth) VerifyToken(tokenString string) (*Caller, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PlatformClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.SecretKey, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*PlatformClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" && claims.Role != RolePlatform {
		return nil, errors.New("token has no subject")
	}
	return &Caller{Subject: claims.Subject, Role: claims.Role}, nil
}
