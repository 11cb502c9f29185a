package accounts

import (
	"strings"
	"time"
)

// Account is a named upstream API credential set.
type Account struct {
	// ID is the opaque unique identifier (UUIDv4).
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// BaseURL is the absolute URL of the upstream API, e.g. "https://api.anthropic.com".
	BaseURL string `json:"base_url"`

	// APIKey is the secret sent upstream in the x-api-key header.
	APIKey string `json:"api_key"`

	// CreatedAt is the creation time in UTC.
	CreatedAt time.Time `json:"created_at"`

	// IsActive reports whether the relay routes through this account.
	IsActive bool `json:"is_active"`
}

// Redacted returns a copy of the account with the API key masked.
// Listings and logs use it so keys never leave the process in full.
func (a Account) Redacted() Account {
	a.APIKey = MaskKey(a.APIKey)
	return a
}

// MaskKey keeps the first and last four characters of a key.
func MaskKey(key string) string {
	key = strings.TrimSpace(key)
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
