// Package cache holds short-lived session values such as CSRF tokens.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// TokenCache stores tokens with a per-entry expiry
type TokenCache interface {
	Get(key string) (string, bool)
	Set(key string, token string, ttl time.Duration)
	Delete(key string)
	Clear()
}

// TokenKey identifies the token of one account on one API endpoint.
// The account name is hashed so keys are safe to log.
func TokenKey(apiURL, user string) string {
	hash := sha256.Sum256([]byte(apiURL + "\x00" + user))
	return "wikiclaim:csrf:v1:" + hex.EncodeToString(hash[:8])
}
