package monitor

import (
	"context"
	"errors"
	"net"
	"syscall"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// isNetworkError reports whether err is a transient transport-level failure
// (timeout, DNS, connection refused/reset, upstream throttling). These are
// expected in normal operation and logged at warn; everything else is an
// error.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	if errors.Is(err, domain.ErrRateLimited) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// classify names the failure category for structured logs.
func classify(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrInvalidQuote):
		return "invalid_quote"
	case isNetworkError(err):
		return "network"
	default:
		return "venue"
	}
}
