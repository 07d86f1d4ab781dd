package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"github.com/fabrichq/fabric/internal/infrastructure/resilience"
)

// Kind is the coarse failure classification used to decide retryability.
type Kind int

const (
	// KindUnknown covers errors with no recognizable shape.
	KindUnknown Kind = iota
	// KindTransient covers connection refused/reset and network timeouts.
	KindTransient
	// KindServer covers 5xx-equivalent downstream failures.
	KindServer
	// KindRateLimited covers 429-equivalent throttling responses.
	KindRateLimited
	// KindClient covers 4xx-equivalent caller bugs (excluding 429).
	KindClient
	// KindBreakerOpen marks a call rejected by an open breaker.
	KindBreakerOpen
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindServer:
		return "server"
	case KindRateLimited:
		return "rate_limited"
	case KindClient:
		return "client"
	case KindBreakerOpen:
		return "breaker_open"
	default:
		return "unknown"
	}
}

// StatusError carries a downstream protocol status, produced by invokers
// for non-2xx responses.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("downstream returned %s", e.Status)
}

// Classify maps an error onto the failure taxonomy.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return KindBreakerOpen
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindClient
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == http.StatusTooManyRequests:
			return KindRateLimited
		case statusErr.Code >= 500:
			return KindServer
		case statusErr.Code >= 400:
			return KindClient
		}
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransient
	}

	return KindUnknown
}

// DefaultRetryable is the fabric's standard retry predicate: transient
// network failures, server errors, and throttling are worth retrying;
// caller bugs, cancellation, and open breakers are not. Unrecognized
// errors are retried, matching the availability bias of the rest of the
// fabric.
func DefaultRetryable(err error) bool {
	switch Classify(err) {
	case KindClient, KindBreakerOpen:
		return false
	default:
		return true
	}
}
