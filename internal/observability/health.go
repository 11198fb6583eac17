package observability

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthChecker reports readiness over gRPC health and HTTP, and serves /metrics
type HealthChecker struct {
	grpcHealth   *health.Server
	httpServer   *http.Server
	logger       *zap.Logger
	mu           sync.RWMutex
	ready        bool
	sessionReady bool
	kafkaReady   bool
	usesKafka    bool
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		grpcHealth: health.NewServer(),
		logger:     logger,
		ready:      true,
	}
}

// RegisterGRPC registers the health service with the gRPC server
func (h *HealthChecker) RegisterGRPC(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, h.grpcHealth)
	h.publishStatus()
}

// Handler returns the HTTP mux with /healthz and /metrics
func (h *HealthChecker) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// StartHTTPServer starts the HTTP health and metrics server
func (h *HealthChecker) StartHTTPServer(addr string) error {
	h.httpServer = &http.Server{
		Addr:    addr,
		Handler: h.Handler(),
	}

	h.logger.Info("starting HTTP health server", zap.String("addr", addr))
	return h.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the health checker
func (h *HealthChecker) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.ready = false
	h.mu.Unlock()
	h.publishStatus()

	if h.httpServer != nil {
		return h.httpServer.Shutdown(ctx)
	}
	return nil
}

// SetSessionReady records whether the FIX session is logged on
func (h *HealthChecker) SetSessionReady(ready bool) {
	h.mu.Lock()
	h.sessionReady = ready
	h.mu.Unlock()

	if ready {
		SessionConnected.Set(1)
	} else {
		SessionConnected.Set(0)
	}
	h.publishStatus()
}

// SetKafkaReady sets the Kafka client readiness status
func (h *HealthChecker) SetKafkaReady(ready bool) {
	h.mu.Lock()
	h.kafkaReady = ready
	h.usesKafka = true
	h.mu.Unlock()
	h.publishStatus()
}

// Healthy reports whether the service is ready to process intents
func (h *HealthChecker) Healthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready && h.sessionReady && (!h.usesKafka || h.kafkaReady)
}

func (h *HealthChecker) publishStatus() {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if h.Healthy() {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	h.grpcHealth.SetServingStatus("", status)
}

func (h *HealthChecker) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.Healthy() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte("NOT_READY"))
}
