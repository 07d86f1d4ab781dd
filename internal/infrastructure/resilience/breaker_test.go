package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabrichq/fabric/internal/clock"
)

var errDownstream = errors.New("downstream failed")

func failN(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		_, _ = b.Execute(func() (interface{}, error) {
			return nil, errDownstream
		})
	}
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		requests      []bool // true = success, false = failure
		expectedState State
	}{
		{
			name: "stays closed on successes",
			settings: Settings{
				MaxRequests: 1,
			},
			requests:      []bool{true, true, true},
			expectedState: StateClosed,
		},
		{
			name: "opens after consecutive failures",
			settings: Settings{
				MaxRequests: 1,
				ReadyToTrip: Trip(3, 1.0, 1000),
			},
			requests:      []bool{false, false, false},
			expectedState: StateOpen,
		},
		{
			name: "success resets consecutive failures",
			settings: Settings{
				MaxRequests: 1,
				ReadyToTrip: Trip(3, 1.0, 1000),
			},
			requests:      []bool{false, false, true, false, false},
			expectedState: StateClosed,
		},
		{
			name: "opens on failure rate without a consecutive run",
			settings: Settings{
				MaxRequests: 1,
				ReadyToTrip: Trip(100, 0.6, 10),
			},
			requests:      []bool{true, true, true, false, false, false, false, false, false, false},
			expectedState: StateOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.settings.Clock = clock.NewMock()
			breaker := New("test", tt.settings)

			for _, success := range tt.requests {
				_, _ = breaker.Execute(func() (interface{}, error) {
					if success {
						return "ok", nil
					}
					return nil, errDownstream
				})
			}

			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerCounts(t *testing.T) {
	breaker := New("test", Settings{Clock: clock.NewMock()})

	_, err := breaker.Execute(func() (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	counts := breaker.Counts()
	assert.Equal(t, uint32(1), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.ConsecutiveSuccesses)
	assert.Equal(t, uint32(0), counts.TotalFailures)

	_, err = breaker.Execute(func() (interface{}, error) {
		return nil, errDownstream
	})
	assert.Error(t, err)

	counts = breaker.Counts()
	assert.Equal(t, uint32(2), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Equal(t, uint32(0), counts.ConsecutiveSuccesses)
}

func TestBreakerFastFailsWithoutInvoking(t *testing.T) {
	mock := clock.NewMock()
	breaker := New("test", Settings{
		ReadyToTrip: Trip(5, 1.0, 1000),
		Clock:       mock,
	})

	failN(breaker, 5)
	require.Equal(t, StateOpen, breaker.State())
	assert.Equal(t, mock.Now(), breaker.OpenedAt())

	invoked := false
	_, err := breaker.Execute(func() (interface{}, error) {
		invoked = true
		return "ok", nil
	})
	assert.Equal(t, ErrCircuitOpen, err)
	assert.False(t, invoked, "open breaker must not invoke the operation")
}

func TestBreakerRecovery(t *testing.T) {
	mock := clock.NewMock()
	breaker := New("test", Settings{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: Trip(2, 1.0, 1000),
		Clock:       mock,
	})

	failN(breaker, 2)
	require.Equal(t, StateOpen, breaker.State())

	// Still open just before the timeout elapses.
	mock.Advance(29 * time.Second)
	assert.Equal(t, StateOpen, breaker.State())

	mock.Advance(2 * time.Second)
	assert.Equal(t, StateHalfOpen, breaker.State())

	// One successful trial closes the breaker and resets counters.
	_, err := breaker.Execute(func() (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, Counts{}, breaker.Counts())
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	mock := clock.NewMock()
	breaker := New("test", Settings{
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: Trip(2, 1.0, 1000),
		Clock:       mock,
	})

	failN(breaker, 2)
	mock.Advance(11 * time.Second)
	require.Equal(t, StateHalfOpen, breaker.State())

	reopenedAt := mock.Now()
	failN(breaker, 1)
	assert.Equal(t, StateOpen, breaker.State())
	assert.Equal(t, reopenedAt, breaker.OpenedAt())

	// The open timeout restarts from the failed trial.
	mock.Advance(9 * time.Second)
	assert.Equal(t, StateOpen, breaker.State())
	mock.Advance(2 * time.Second)
	assert.Equal(t, StateHalfOpen, breaker.State())
}

func TestBreakerHalfOpenTrialBudget(t *testing.T) {
	mock := clock.NewMock()
	breaker := New("test", Settings{
		MaxRequests: 2,
		Timeout:     time.Second,
		ReadyToTrip: Trip(1, 1.0, 1000),
		Clock:       mock,
	})

	failN(breaker, 1)
	mock.Advance(2 * time.Second)
	require.Equal(t, StateHalfOpen, breaker.State())

	// Two slow trials in flight exhaust the budget; a third is rejected.
	release := make(chan struct{})
	started := make(chan struct{})
	for i := 0; i < 2; i++ {
		go func() {
			_, _ = breaker.Execute(func() (interface{}, error) {
				started <- struct{}{}
				<-release
				return "ok", nil
			})
		}()
	}
	<-started
	<-started

	_, err := breaker.Execute(func() (interface{}, error) {
		return "ok", nil
	})
	assert.Equal(t, ErrTooManyRequests, err)
	close(release)
}

func TestBreakerIsFailurePredicate(t *testing.T) {
	errBenign := errors.New("not found")
	breaker := New("test", Settings{
		ReadyToTrip: Trip(1, 1.0, 1000),
		IsFailure: func(err error) bool {
			return !errors.Is(err, errBenign)
		},
		Clock: clock.NewMock(),
	})

	// Classified as non-failure: the error propagates but does not trip.
	_, err := breaker.Execute(func() (interface{}, error) {
		return nil, errBenign
	})
	assert.Equal(t, errBenign, err)
	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, uint32(0), breaker.Counts().TotalFailures)

	failN(breaker, 1)
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerWindowRollover(t *testing.T) {
	mock := clock.NewMock()
	breaker := New("test", Settings{
		Interval:    time.Minute,
		ReadyToTrip: Trip(5, 1.0, 1000),
		Clock:       mock,
	})

	failN(breaker, 4)
	assert.Equal(t, uint32(4), breaker.Counts().ConsecutiveFailures)

	// A new interval clears the window; the old near-trip run is gone.
	mock.Advance(61 * time.Second)
	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, Counts{}, breaker.Counts())

	failN(breaker, 4)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerCallbacks(t *testing.T) {
	mock := clock.NewMock()
	var transitions []string

	breaker := New("test", Settings{
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: Trip(2, 1.0, 1000),
		OnStateChange: func(name string, from State, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
		Clock: mock,
	})

	failN(breaker, 2)
	mock.Advance(11 * time.Second)
	require.Equal(t, StateHalfOpen, breaker.State())

	_, err := breaker.Execute(func() (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}
