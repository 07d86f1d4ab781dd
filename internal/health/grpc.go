package health

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCCheck probes a downstream's standard gRPC health service
// (grpc.health.v1.Health/Check). The connection is established lazily on
// the first probe and reused afterwards; gRPC reconnects transparently.
// An empty service string queries the server's overall health.
func GRPCCheck(target, service string) CheckFunc {
	var (
		once    sync.Once
		conn    *grpc.ClientConn
		dialErr error
	)

	return func(ctx context.Context) error {
		once.Do(func() {
			conn, dialErr = grpc.NewClient(target,
				grpc.WithTransportCredentials(insecure.NewCredentials()),
			)
		})
		if dialErr != nil {
			return fmt.Errorf("grpc dial %s: %w", target, dialErr)
		}

		resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{
			Service: service,
		})
		if err != nil {
			return err
		}
		if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
			return fmt.Errorf("grpc health status %s", resp.GetStatus())
		}
		return nil
	}
}
