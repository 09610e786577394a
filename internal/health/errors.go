package health

import (
	"strings"
	"time"
)

// IsQuotaError detects if an error message is related to quota exhaustion or rate limiting
func IsQuotaError(errMsg string) bool {
	lower := strings.ToLower(errMsg)
	quotaPatterns := []string{
		"429",
		"quota exceeded",
		"rate limit",
		"too many requests",
		"tokens per minute",
		"requests per minute",
		"insufficient_quota",
		"rate_limit_exceeded",
		"ratelimitexceeded",
	}

	for _, pattern := range quotaPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// CooldownFor determines how long to back off after a quota error
func CooldownFor(errMsg string) time.Duration {
	lower := strings.ToLower(errMsg)

	// Billing issues and daily caps do not clear quickly
	if strings.Contains(lower, "insufficient_quota") || strings.Contains(lower, "daily limit") {
		return 6 * time.Hour
	}
	return 5 * time.Minute
}
