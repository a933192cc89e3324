package health

import (
	"context"
	"log"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Имена компонентов станции в gRPC health
const (
	ServiceMonitor = "eda.monitor.Station"
	ServiceBackend = "eda.monitor.MLBackend"
	ServiceStore   = "eda.monitor.SessionStore"
)

// HealthServer реализует grpc_health_v1 по набору компонентов станции
type HealthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	mu       sync.RWMutex
	services map[string]grpc_health_v1.HealthCheckResponse_ServingStatus
}

func NewHealthServer() *HealthServer {
	return &HealthServer{
		services: make(map[string]grpc_health_v1.HealthCheckResponse_ServingStatus),
	}
}

func (h *HealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	service := req.GetService()

	if service == "" {
		return &grpc_health_v1.HealthCheckResponse{
			Status: grpc_health_v1.HealthCheckResponse_SERVING,
		}, nil
	}

	servingStatus, exists := h.services[service]
	if !exists {
		return nil, status.Error(codes.NotFound, "service not found")
	}

	return &grpc_health_v1.HealthCheckResponse{
		Status: servingStatus,
	}, nil
}

func (h *HealthServer) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	response, err := h.Check(stream.Context(), req)
	if err != nil {
		return err
	}

	if err := stream.Send(response); err != nil {
		return err
	}

	<-stream.Context().Done()
	return stream.Context().Err()
}

func (h *HealthServer) SetServingStatus(service string) {
	h.setStatus(service, grpc_health_v1.HealthCheckResponse_SERVING)
}

func (h *HealthServer) SetNotServingStatus(service string) {
	h.setStatus(service, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}

func (h *HealthServer) setStatus(service string, status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.services[service]; ok && prev != status {
		log.Printf("[INFO] Health %s: %s -> %s", service, prev, status)
	}
	h.services[service] = status
}

// Pinger проверка доступности зависимости
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe периодически проверяет зависимость и переключает статус компонента.
// Первая проверка выполняется сразу.
func (h *HealthServer) Probe(ctx context.Context, service string, pinger Pinger, interval time.Duration) {
	check := func() {
		pingCtx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()

		if err := pinger.Ping(pingCtx); err != nil {
			if ctx.Err() == nil {
				log.Printf("[WARN] Health probe %s failed: %v", service, err)
			}
			h.SetNotServingStatus(service)
			return
		}
		h.SetServingStatus(service)
	}

	check()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
