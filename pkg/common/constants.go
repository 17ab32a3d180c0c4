package common

import "fmt"

const (
	// DefaultAccount is the single portfolio account this deployment manages.
	DefaultAccount = "default"

	redisKeyLastQuote    = "last_quote:%s"
	redisKeyScanProgress = "scan_progress:%s"
)

// RedisKeyLastQuote is the cache key for the most recent quote of a stock code.
func RedisKeyLastQuote(code string) string {
	return fmt.Sprintf(redisKeyLastQuote, code)
}

// RedisKeyScanProgress is the key the scanner publishes cycle progress under.
func RedisKeyScanProgress(account string) string {
	return fmt.Sprintf(redisKeyScanProgress, account)
}
