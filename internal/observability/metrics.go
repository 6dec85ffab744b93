package observability

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/signalsfoundry/p2p-supplicant/internal/engine"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Collector bundles Prometheus metrics for the P2P gRPC surface, the
// engine resource gauges and callback delivery, and provides helpers to
// wire them into gRPC servers and HTTP handlers.
type Collector struct {
	gatherer prometheus.Gatherer

	RPCRequests   *prometheus.CounterVec
	RPCDurations  *prometheus.HistogramVec
	ActiveStreams *prometheus.GaugeVec

	CallbackEvents *prometheus.CounterVec

	EngineInterfaces      prometheus.Gauge
	EngineNetworks        prometheus.Gauge
	EngineGroups          prometheus.Gauge
	EngineServiceRequests prometheus.Gauge
	EnginePeers           prometheus.Gauge
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil. Registering twice on one registry reuses
// the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "p2p_rpc_requests_total",
		Help: "Total number of handled P2P RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "p2p_rpc_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "p2p_rpc_duration_seconds",
		Help:    "P2P RPC latency in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"service", "method"}), "p2p_rpc_duration_seconds")
	if err != nil {
		return nil, err
	}

	streams, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "p2p_rpc_active_streams",
		Help: "Open server streams, labeled by service and method.",
	}, []string{"service", "method"}), "p2p_rpc_active_streams")
	if err != nil {
		return nil, err
	}

	callbacks, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "p2p_callback_events_total",
		Help: "Interface events offered to callbacks, labeled by event type and whether a callback received it.",
	}, []string{"event", "delivered"}), "p2p_callback_events_total")
	if err != nil {
		return nil, err
	}

	gauges := make([]prometheus.Gauge, 0, 5)
	for _, g := range []struct{ name, help string }{
		{"p2p_engine_interfaces", "Current number of P2P interfaces in the engine."},
		{"p2p_engine_networks", "Current number of network profiles across interfaces."},
		{"p2p_engine_groups", "Current number of active groups across interfaces."},
		{"p2p_engine_service_requests", "Current number of outstanding service discovery requests."},
		{"p2p_engine_peers", "Current number of peers in the peer table."},
	} {
		gauge, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: g.name, Help: g.help}), g.name)
		if err != nil {
			return nil, err
		}
		gauges = append(gauges, gauge)
	}

	return &Collector{
		gatherer:              gatherer,
		RPCRequests:           requests,
		RPCDurations:          durations,
		ActiveStreams:         streams,
		CallbackEvents:        callbacks,
		EngineInterfaces:      gauges[0],
		EngineNetworks:        gauges[1],
		EngineGroups:          gauges[2],
		EngineServiceRequests: gauges[3],
		EnginePeers:           gauges[4],
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *Collector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}
		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		c.observe(fullMethod, err, time.Since(start))
		return resp, err
	}
}

// StreamServerInterceptor tracks open streams and records their outcome
// once they end.
func (c *Collector) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if c == nil {
			return handler(srv, ss)
		}
		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		if c.ActiveStreams != nil {
			c.ActiveStreams.WithLabelValues(service, method).Inc()
			defer c.ActiveStreams.WithLabelValues(service, method).Dec()
		}

		start := time.Now()
		err := handler(srv, ss)
		c.observe(fullMethod, err, time.Since(start))
		return err
	}
}

func (c *Collector) observe(fullMethod string, err error, took time.Duration) {
	service, method := SplitMethod(fullMethod)
	if c.RPCRequests != nil {
		c.RPCRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()
	}
	if c.RPCDurations != nil {
		c.RPCDurations.WithLabelValues(service, method).Observe(took.Seconds())
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetEngineCounts satisfies engine.MetricsRecorder so the engine drives
// the gauges from its mutators.
func (c *Collector) SetEngineCounts(counts engine.EngineCounts) {
	if c == nil {
		return
	}
	set := func(g prometheus.Gauge, v int) {
		if g != nil {
			g.Set(float64(v))
		}
	}
	set(c.EngineInterfaces, counts.Interfaces)
	set(c.EngineNetworks, counts.Networks)
	set(c.EngineGroups, counts.Groups)
	set(c.EngineServiceRequests, counts.ServiceRequests)
	set(c.EnginePeers, counts.Peers)
}

// ObserveCallbackEvent satisfies p2p.CallbackRecorder.
func (c *Collector) ObserveCallbackEvent(eventType string, delivered bool) {
	if c == nil || c.CallbackEvents == nil {
		return
	}
	c.CallbackEvents.WithLabelValues(eventType, strconv.FormatBool(delivered)).Inc()
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
