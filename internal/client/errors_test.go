package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fabrichq/fabric/internal/infrastructure/resilience"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"breaker open", resilience.ErrCircuitOpen, KindBreakerOpen},
		{"half-open budget", resilience.ErrTooManyRequests, KindBreakerOpen},
		{"wrapped breaker open", fmt.Errorf("service orders: %w", resilience.ErrCircuitOpen), KindBreakerOpen},
		{"canceled", context.Canceled, KindClient},
		{"deadline", context.DeadlineExceeded, KindClient},
		{"throttled", &StatusError{Code: http.StatusTooManyRequests}, KindRateLimited},
		{"server error", &StatusError{Code: http.StatusBadGateway}, KindServer},
		{"client error", &StatusError{Code: http.StatusNotFound}, KindClient},
		{"conn refused", syscall.ECONNREFUSED, KindTransient},
		{"conn reset", syscall.ECONNRESET, KindTransient},
		{"net timeout", timeoutErr{}, KindTransient},
		{"opaque", errors.New("mystery"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestDefaultRetryable(t *testing.T) {
	assert.True(t, DefaultRetryable(syscall.ECONNREFUSED))
	assert.True(t, DefaultRetryable(&StatusError{Code: http.StatusServiceUnavailable}))
	assert.True(t, DefaultRetryable(&StatusError{Code: http.StatusTooManyRequests}))
	assert.True(t, DefaultRetryable(errors.New("mystery")), "unknown errors lean toward retry")

	assert.False(t, DefaultRetryable(&StatusError{Code: http.StatusUnauthorized}))
	assert.False(t, DefaultRetryable(context.Canceled))
	assert.False(t, DefaultRetryable(resilience.ErrCircuitOpen))
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{Code: http.StatusBadGateway, Status: "502 Bad Gateway"}
	assert.Contains(t, err.Error(), "502")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "transient", KindTransient.String())
	assert.Equal(t, "breaker_open", KindBreakerOpen.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
