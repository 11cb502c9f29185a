package logging

import (
	"regexp"
	"strings"
)

// Redactor masks secrets in log values.
type Redactor struct {
	patterns []*redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Pattern names.
const (
	PatternAPIKey      = "api_key"
	PatternBearerToken = "bearer_token"
	PatternHeaderKey   = "header_key"
)

var sensitiveKeys = []string{
	"api_key", "apikey", "x-api-key",
	"secret", "token", "password",
	"authorization", "private_key",
}

// NewRedactor creates a Redactor with the built-in patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*redactPattern{
			{
				// Provider keys: sk-ant-api03-..., sk-proj-..., sk-...
				name:        PatternAPIKey,
				regex:       regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{6,}`),
				replacement: "sk-***",
			},
			{
				name:        PatternBearerToken,
				regex:       regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9\-._~+/]+=*`),
				replacement: "Bearer ***",
			},
			{
				name:        PatternHeaderKey,
				regex:       regexp.MustCompile(`(?i)(x-api-key["']?\s*[:=]\s*["']?)[^\s"',}]+`),
				replacement: "${1}***",
			},
		},
	}
}

// RedactString masks secrets embedded in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// IsSensitiveKey reports whether an attribute key names a secret.
func (r *Redactor) IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// RedactAPIKey keeps the first four characters of a key.
func RedactAPIKey(apiKey string) string {
	if len(apiKey) <= 4 {
		return "***"
	}
	return apiKey[:4] + "***"
}
