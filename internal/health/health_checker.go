package health

import (
	"context"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// TraversalService is the health service name that tracks batch progress.
const TraversalService = "hwexplore.Traversal"

// HealthChecker implements the gRPC health checking protocol for a batch
// run. The empty service name reports the process itself; named services
// report whatever was last set for them.
type HealthChecker struct {
	grpc_health_v1.UnimplementedHealthServer
	mu        sync.RWMutex
	statusMap map[string]grpc_health_v1.HealthCheckResponse_ServingStatus
	watchers  map[string]map[chan grpc_health_v1.HealthCheckResponse_ServingStatus]struct{}
	shutdown  bool
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		statusMap: map[string]grpc_health_v1.HealthCheckResponse_ServingStatus{
			"": grpc_health_v1.HealthCheckResponse_SERVING,
		},
		watchers: make(map[string]map[chan grpc_health_v1.HealthCheckResponse_ServingStatus]struct{}),
	}
}

// Check implements the health check RPC
func (h *HealthChecker) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st, ok := h.statusMap[req.GetService()]
	if !ok {
		return nil, status.Error(codes.NotFound, "service not found")
	}
	return &grpc_health_v1.HealthCheckResponse{Status: st}, nil
}

// Watch sends the current status, then every change until the client goes
// away. Unknown services report SERVICE_UNKNOWN and keep the stream open,
// as the protocol requires.
func (h *HealthChecker) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	service := req.GetService()
	updates := make(chan grpc_health_v1.HealthCheckResponse_ServingStatus, 1)

	h.mu.Lock()
	st, ok := h.statusMap[service]
	if !ok {
		st = grpc_health_v1.HealthCheckResponse_SERVICE_UNKNOWN
	}
	updates <- st
	if h.watchers[service] == nil {
		h.watchers[service] = make(map[chan grpc_health_v1.HealthCheckResponse_ServingStatus]struct{})
	}
	h.watchers[service][updates] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.watchers[service], updates)
		h.mu.Unlock()
	}()

	var last grpc_health_v1.HealthCheckResponse_ServingStatus = -1
	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case st := <-updates:
			if st == last {
				continue
			}
			last = st
			if err := stream.Send(&grpc_health_v1.HealthCheckResponse{Status: st}); err != nil {
				return err
			}
		}
	}
}

// SetServingStatus sets the serving status for a specific service and
// notifies its watchers. Calls after Shutdown are ignored.
func (h *HealthChecker) SetServingStatus(service string, st grpc_health_v1.HealthCheckResponse_ServingStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.shutdown {
		return
	}
	h.set(service, st)
}

// Shutdown marks every service NOT_SERVING and freezes the statuses.
func (h *HealthChecker) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shutdown = true
	for service := range h.statusMap {
		h.set(service, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
}

func (h *HealthChecker) set(service string, st grpc_health_v1.HealthCheckResponse_ServingStatus) {
	h.statusMap[service] = st
	for ch := range h.watchers[service] {
		// keep only the newest status for slow watchers
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}
