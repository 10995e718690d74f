// Package retry holds the backoff budget attached to every delayed job and the
// rules that decide whether a failed publish attempt deserves another try.
package retry

import (
	"context"
	"errors"
	"math"
	"net"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"
)

const (
	DefaultMaxRetries = 5
	DefaultBaseDelay  = 2 * time.Second
	DefaultMaxDelay   = 60 * time.Second

	maxMessageLength = 500
)

// Policy is the retry budget travelling with a delayed job.
type Policy struct {
	MaxRetries int           `json:"max_retries"`
	BaseDelay  time.Duration `json:"base_delay"`
	MaxDelay   time.Duration `json:"max_delay"`
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
	}
}

// Delay returns min(MaxDelay, BaseDelay * 2^retried).
func (p Policy) Delay(retried int) time.Duration {
	if retried < 0 {
		retried = 0
	}
	base, ceiling := p.BaseDelay, p.MaxDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if ceiling <= 0 {
		ceiling = DefaultMaxDelay
	}
	d := float64(base) * math.Pow(2, float64(retried))
	if d >= float64(ceiling) {
		return ceiling
	}
	return time.Duration(d)
}

// Exhausted reports whether an attempt that already saw `retried` redeliveries
// is the last one the budget allows.
func (p Policy) Exhausted(retried int) bool {
	return retried >= p.MaxRetries
}

// Delay applies the default policy.
func Delay(retried int) time.Duration {
	return DefaultPolicy().Delay(retried)
}

var permanentMarkers = []string{
	"401",
	"403",
	"unauthorized",
	"forbidden",
	"invalid credentials",
}

var transientMarkers = []string{
	"timeout",
	"timed out",
	"network",
	"econnrefused",
	"connection refused",
	"enotfound",
	"host not found",
	"no such host",
	"econnreset",
	"etimedout",
	"rate limit",
	"rate-limit",
	"ratelimit",
	"too many requests",
	"429",
	"502",
	"503",
	"504",
	"connection",
}

// IsTransient classifies a failure as retryable. Transport-level resets and
// timeouts are transient regardless of their message.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return IsTransientMessage(err.Error())
}

// IsTransientMessage matches a failure message case-insensitively against the
// known retryable markers. Auth failures win over everything else.
func IsTransientMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, m := range permanentMarkers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	for _, m := range transientMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// SanitizeMessage flattens whitespace and truncates a failure message so it
// can be stored on a post.
func SanitizeMessage(msg string) string {
	msg = strings.Join(strings.Fields(msg), " ")
	if utf8.RuneCountInString(msg) <= maxMessageLength {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:maxMessageLength-3]) + "..."
}
