package auth

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 24 * time.Hour

// Settings are the signing parameters shared by issuing and validation.
type Settings struct {
	Secret   string
	Issuer   string
	Audience string
}

var (
	mu       sync.RWMutex
	settings = Settings{
		Secret:   getEnv("JWT_SECRET", "development-insecure-secret-change-me"),
		Issuer:   getEnv("JWT_ISSUER", "task-notifications-api"),
		Audience: getEnv("JWT_AUDIENCE", "task-notifications-clients"),
	}
)

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrInvalidIssuer   = errors.New("invalid token issuer")
	ErrInvalidAudience = errors.New("invalid token audience")
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Configure replaces the signing parameters. Empty fields keep their
// current value.
func Configure(s Settings) {
	mu.Lock()
	defer mu.Unlock()
	if s.Secret != "" {
		settings.Secret = s.Secret
	}
	if s.Issuer != "" {
		settings.Issuer = s.Issuer
	}
	if s.Audience != "" {
		settings.Audience = s.Audience
	}
}

func current() Settings {
	mu.RLock()
	defer mu.RUnlock()
	return settings
}

// Claims represents the JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateToken generates a JWT token for the given user
func GenerateToken(userID, username string) (string, error) {
	s := current()
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.Issuer,
			Audience:  jwt.ClaimStrings{s.Audience},
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Secret))
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*Claims, error) {
	s := current()
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(s.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != s.Issuer {
		return nil, ErrInvalidIssuer
	}
	for _, aud := range claims.Audience {
		if aud == s.Audience {
			return claims, nil
		}
	}
	return nil, ErrInvalidAudience
}
