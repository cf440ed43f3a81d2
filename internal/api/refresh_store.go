package api

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// sqliteTimeLayouts covers the formats go-sqlite3 produces depending on how
// values were inserted.
var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05Z07:00",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseSQLiteTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case []byte:
		return parseSQLiteTime(string(t))
	case string:
		if t == "" {
			return time.Time{}, false
		}
		for _, layout := range sqliteTimeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func parseSQLiteBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case int64:
		return t != 0, true
	case int:
		return t != 0, true
	case []byte:
		return parseSQLiteBool(string(t))
	case string:
		s := strings.TrimSpace(strings.ToLower(t))
		switch s {
		case "true":
			return true, true
		case "false":
			return false, true
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n != 0, true
		}
	}
	return false, false
}

// StoreRefreshToken stores a refresh token hash in the database with expiry
func StoreRefreshToken(db *sql.DB, userID int, token string, expiresAt time.Time, ttlDays int) error {
	th := hashToken(token)
	// Identical tokens can be generated within the same second; ignore the
	// duplicate and refresh its metadata instead.
	if _, err := db.Exec(
		"INSERT OR IGNORE INTO refresh_tokens (user_id, token_hash, expires_at, ttl_days) VALUES (?, ?, ?, ?)",
		userID, th, expiresAt, ttlDays,
	); err != nil {
		return err
	}
	_, err := db.Exec("UPDATE refresh_tokens SET expires_at = ?, ttl_days = ?, revoked = 0 WHERE token_hash = ?", expiresAt, ttlDays, th)
	return err
}

// ValidateRefreshTokenInDB checks that the token exists, is not revoked and
// not expired. It returns the owning user ID and the token's TTL in days.
func ValidateRefreshTokenInDB(db *sql.DB, token string) (int, int, error) {
	var (
		userID    int
		ttlDays   int
		expiresAt any
		revoked   any
	)
	row := db.QueryRow("SELECT user_id, expires_at, revoked, ttl_days FROM refresh_tokens WHERE token_hash = ?", hashToken(token))
	if err := row.Scan(&userID, &expiresAt, &revoked, &ttlDays); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, errors.New("refresh token not found")
		}
		return 0, 0, err
	}

	r, ok := parseSQLiteBool(revoked)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected revoked type: %T", revoked)
	}
	if r {
		return 0, 0, errors.New("refresh token revoked")
	}
	if t, ok := parseSQLiteTime(expiresAt); ok && time.Now().After(t) {
		return 0, 0, errors.New("refresh token expired")
	}
	return userID, ttlDays, nil
}

// RevokeRefreshToken revokes a refresh token by token string
func RevokeRefreshToken(db *sql.DB, token string) error {
	_, err := db.Exec("UPDATE refresh_tokens SET revoked = 1 WHERE token_hash = ?", hashToken(token))
	return err
}
