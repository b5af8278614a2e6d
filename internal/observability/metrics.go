package observability

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/schoolbus-tracker/model"
)

// TrackerCollector bundles Prometheus metrics for the simulation loop and
// the API surfaces, and provides helpers to wire them into gRPC servers and
// HTTP routers. It implements core.Recorder.
type TrackerCollector struct {
	gatherer prometheus.Gatherer

	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram
	StatusChange *prometheus.CounterVec

	AnimationsStarted    prometheus.Counter
	AnimationsSuperseded prometheus.Counter
	AnimationsFinished   prometheus.Counter
	AnimationFrames      prometheus.Counter
	ActiveAnimations     prometheus.Gauge

	FleetBuses   *prometheus.GaugeVec
	Students     prometheus.Gauge
	UnreadAlerts prometheus.Gauge

	RPCRequests   *prometheus.CounterVec
	RPCDurations  *prometheus.HistogramVec
	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
}

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// NewTrackerCollector registers tracker metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewTrackerCollector(reg prometheus.Registerer) (*TrackerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	c := &TrackerCollector{gatherer: gatherer}

	var err error
	if c.Ticks, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_sim_ticks_total",
		Help: "Number of simulator ticks run.",
	}), "tracker_sim_ticks_total"); err != nil {
		return nil, err
	}
	if c.TickDuration, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_sim_tick_duration_seconds",
		Help:    "Wall time spent in one simulator tick.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}), "tracker_sim_tick_duration_seconds"); err != nil {
		return nil, err
	}
	if c.StatusChange, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_status_changes_total",
		Help: "Bus status transitions, labeled by previous and new status.",
	}, []string{"from", "to"}), "tracker_status_changes_total"); err != nil {
		return nil, err
	}

	if c.AnimationsStarted, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_animations_started_total",
		Help: "Position animations started.",
	}), "tracker_animations_started_total"); err != nil {
		return nil, err
	}
	if c.AnimationsSuperseded, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_animations_superseded_total",
		Help: "Position animations cancelled by a newer animation for the same bus.",
	}), "tracker_animations_superseded_total"); err != nil {
		return nil, err
	}
	if c.AnimationsFinished, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_animations_finished_total",
		Help: "Position animations that reached their target.",
	}), "tracker_animations_finished_total"); err != nil {
		return nil, err
	}
	if c.AnimationFrames, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_animation_frames_total",
		Help: "Interpolated position samples applied to the store.",
	}), "tracker_animation_frames_total"); err != nil {
		return nil, err
	}
	if c.ActiveAnimations, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_animations_active",
		Help: "Position animations currently in flight.",
	}), "tracker_animations_active"); err != nil {
		return nil, err
	}

	if c.FleetBuses, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tracker_fleet_buses",
		Help: "Buses in the fleet, labeled by status.",
	}, []string{"status"}), "tracker_fleet_buses"); err != nil {
		return nil, err
	}
	if c.Students, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_students",
		Help: "Students assigned to buses.",
	}), "tracker_students"); err != nil {
		return nil, err
	}
	if c.UnreadAlerts, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_alerts_unread",
		Help: "Alerts not yet marked read.",
	}), "tracker_alerts_unread"); err != nil {
		return nil, err
	}

	if c.RPCRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_rpc_requests_total",
		Help: "Total number of handled RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "tracker_rpc_requests_total"); err != nil {
		return nil, err
	}
	if c.RPCDurations, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tracker_rpc_request_duration_seconds",
		Help:    "RPC latency in seconds.",
		Buckets: latencyBuckets,
	}, []string{"service", "method"}), "tracker_rpc_request_duration_seconds"); err != nil {
		return nil, err
	}
	if c.HTTPRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by method, route, and status code.",
	}, []string{"method", "route", "code"}), "tracker_http_requests_total"); err != nil {
		return nil, err
	}
	if c.HTTPDurations, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tracker_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: latencyBuckets,
	}, []string{"method", "route"}), "tracker_http_request_duration_seconds"); err != nil {
		return nil, err
	}

	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *TrackerCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTick records one simulator tick.
func (c *TrackerCollector) ObserveTick(d time.Duration) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.TickDuration.Observe(d.Seconds())
}

// StatusChanged counts a status transition.
func (c *TrackerCollector) StatusChanged(from, to model.Status) {
	if c == nil {
		return
	}
	c.StatusChange.WithLabelValues(string(from), string(to)).Inc()
}

// AnimationStarted counts a new animation and whether it replaced one in flight.
func (c *TrackerCollector) AnimationStarted(superseded bool) {
	if c == nil {
		return
	}
	c.AnimationsStarted.Inc()
	if superseded {
		c.AnimationsSuperseded.Inc()
	}
}

// AnimationFrame counts one applied sample.
func (c *TrackerCollector) AnimationFrame() {
	if c == nil {
		return
	}
	c.AnimationFrames.Inc()
}

// AnimationFinished counts an animation that reached its target.
func (c *TrackerCollector) AnimationFinished() {
	if c == nil {
		return
	}
	c.AnimationsFinished.Inc()
}

// SetActiveAnimations updates the in-flight gauge.
func (c *TrackerCollector) SetActiveAnimations(n int) {
	if c == nil {
		return
	}
	c.ActiveAnimations.Set(float64(n))
}

// SetFleetStats mirrors the dashboard counters into gauges.
func (c *TrackerCollector) SetFleetStats(st model.Stats) {
	if c == nil {
		return
	}
	idle := st.TotalBuses - st.ActiveBuses - st.DelayedBuses
	if idle < 0 {
		idle = 0
	}
	c.FleetBuses.WithLabelValues(string(model.StatusOnRoute)).Set(float64(st.ActiveBuses))
	c.FleetBuses.WithLabelValues(string(model.StatusDelayed)).Set(float64(st.DelayedBuses))
	c.FleetBuses.WithLabelValues(string(model.StatusIdle)).Set(float64(idle))
	c.Students.Set(float64(st.TotalStudents))
	c.UnreadAlerts.Set(float64(st.UnreadAlerts))
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *TrackerCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		code := status.Code(err).String()

		c.RPCRequests.WithLabelValues(service, method, code).Inc()
		c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())

		return resp, err
	}
}

// HTTPMiddleware records request counts and durations. Requests are labeled
// by their chi route pattern so path parameters do not explode cardinality.
func (c *TrackerCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		c.HTTPDurations.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Handler exposes a ready-to-use /metrics handler.
func (c *TrackerCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
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
