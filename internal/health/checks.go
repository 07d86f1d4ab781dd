package health

import (
	"context"
	"fmt"

	"github.com/fabrichq/fabric/internal/infrastructure/resilience"
	"github.com/fabrichq/fabric/internal/registry"
)

// BreakerCheck reports unhealthy while the breaker guarding a downstream
// is open: the dependency is known-bad and the service is not ready to
// take traffic for it.
func BreakerCheck(breaker *resilience.Breaker) CheckFunc {
	return func(ctx context.Context) error {
		if state := breaker.State(); state == resilience.StateOpen {
			return fmt.Errorf("circuit breaker for %s is %s", breaker.Name(), state)
		}
		return nil
	}
}

// RegistryCheck verifies that a service name still resolves. Stale-cache
// fallback counts as healthy; only a hard resolution failure does not.
func RegistryCheck(client *registry.Client, service string) CheckFunc {
	return func(ctx context.Context) error {
		_, err := client.Resolve(ctx, service)
		return err
	}
}
