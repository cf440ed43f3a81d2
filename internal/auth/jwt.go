package auth

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const minSecretLength = 32

var ErrNotConfigured = errors.New("auth: token secret not configured")

// Config holds token signing settings.
type Config struct {
	Secret              string
	RefreshSecret       string
	AccessTokenMinutes  int
	RefreshTokenDays    int
	RememberRefreshDays int
	CookieSecure        bool
}

var (
	mu                  sync.RWMutex
	jwtSecret           []byte
	refreshSecret       []byte
	accessTokenMinutes  = 15
	refreshTokenDays    = 7
	rememberRefreshDays = 30
	CookieSecure        = true
)

// ConfigFromEnv reads JWT_SECRET, JWT_REFRESH_SECRET, COOKIE_SECURE and the
// optional expiry overrides.
func ConfigFromEnv() Config {
	cfg := Config{
		Secret:        os.Getenv("JWT_SECRET"),
		RefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
		CookieSecure:  os.Getenv("COOKIE_SECURE") != "false",
	}
	if v := os.Getenv("ACCESS_TOKEN_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AccessTokenMinutes = n
		}
	}
	if v := os.Getenv("REFRESH_TOKEN_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RefreshTokenDays = n
		}
	}
	if v := os.Getenv("REMEMBER_REFRESH_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RememberRefreshDays = n
		}
	}
	return cfg
}

// Configure installs the signing secrets. It must run before any token is
// issued or validated.
func Configure(cfg Config) error {
	if cfg.Secret == "" {
		return errors.New("JWT secret is required and must not be empty")
	}
	if len(cfg.Secret) < minSecretLength {
		return fmt.Errorf("JWT secret must be at least %d characters long", minSecretLength)
	}

	mu.Lock()
	defer mu.Unlock()

	jwtSecret = []byte(cfg.Secret)
	// Refresh tokens use a separate secret, derived from the main one if not provided.
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.Secret + "-refresh"
	}
	refreshSecret = []byte(cfg.RefreshSecret)
	CookieSecure = cfg.CookieSecure

	if cfg.AccessTokenMinutes > 0 {
		accessTokenMinutes = cfg.AccessTokenMinutes
	}
	if cfg.RefreshTokenDays > 0 {
		refreshTokenDays = cfg.RefreshTokenDays
	}
	if cfg.RememberRefreshDays > 0 {
		rememberRefreshDays = cfg.RememberRefreshDays
	}
	return nil
}

type Claims struct {
	UserID    int    `json:"user_id"`
	Username  string `json:"username"`
	TokenType string `json:"token_type,omitempty"` // "access" or "refresh"
	jwt.RegisteredClaims
}

func secrets() ([]byte, []byte, error) {
	mu.RLock()
	defer mu.RUnlock()
	if len(jwtSecret) == 0 {
		return nil, nil, ErrNotConfigured
	}
	return jwtSecret, refreshSecret, nil
}

// GenerateToken creates a short-lived access token
func GenerateToken(userID int, username string) (string, error) {
	access, _, err := secrets()
	if err != nil {
		return "", err
	}
	mu.RLock()
	ttl := time.Duration(accessTokenMinutes) * time.Minute
	mu.RUnlock()

	claims := Claims{
		UserID:    userID,
		Username:  username,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(access)
}

// GenerateRefreshToken creates a refresh token that expires after the given number of days
func GenerateRefreshToken(userID int, username string, days int) (string, error) {
	_, refresh, err := secrets()
	if err != nil {
		return "", err
	}
	if days <= 0 {
		days = RefreshDays(false)
	}
	claims := Claims{
		UserID:    userID,
		Username:  username,
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(days) * 24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(refresh)
}

func parse(tokenString string, secret []byte, tokenType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		if claims.TokenType != tokenType {
			return nil, errors.New("invalid token type")
		}
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

func ValidateToken(tokenString string) (*Claims, error) {
	access, _, err := secrets()
	if err != nil {
		return nil, err
	}
	return parse(tokenString, access, "access")
}

// ValidateRefreshToken validates a refresh token
func ValidateRefreshToken(tokenString string) (*Claims, error) {
	_, refresh, err := secrets()
	if err != nil {
		return nil, err
	}
	return parse(tokenString, refresh, "refresh")
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func CheckPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// RefreshDays returns configured refresh token TTL in days depending on remember flag
func RefreshDays(remember bool) int {
	mu.RLock()
	defer mu.RUnlock()
	if remember {
		return rememberRefreshDays
	}
	return refreshTokenDays
}
