package api

import (
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tank-arena/internal/config"
	"tank-arena/internal/game"
)

// Transport metrics with bounded cardinality (no per-client labels to prevent DoS)
var (
	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_frame_render_duration_seconds",
		Help:    "Time spent rendering a PNG frame",
		Buckets: []float64{0.005, 0.01, 0.02, 0.033, 0.05, 0.1},
	})

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})
)

// Metrics exports simulation health. It observes every tick and sees every
// entity enter and leave the world.
type Metrics struct {
	tickDuration prometheus.Histogram
	tickDelta    prometheus.Histogram
	ticks        prometheus.Counter
	entities     *prometheus.GaugeVec
	spawned      *prometheus.CounterVec
	disposed     *prometheus.CounterVec
	outcome      *prometheus.GaugeVec
	rejected     *prometheus.CounterVec
}

var (
	_ game.TickObserver = (*Metrics)(nil)
	_ game.Presenter    = (*Metrics)(nil)
	_ RejectRecorder    = (*Metrics)(nil)
)

// NewMetrics registers the simulation metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "arena_tick_duration_seconds",
			Help:    "Wall time spent in one simulation tick",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.0167, 0.033},
		}),
		tickDelta: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "arena_tick_delta_seconds",
			Help:    "Elapsed simulated time per tick after clamping",
			Buckets: []float64{0.008, 0.0167, 0.033, 0.05, 0.1},
		}),
		ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "arena_ticks_total",
			Help: "Ticks completed",
		}),
		entities: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arena_entities",
			Help: "Live entities by kind after the last tick",
		}, []string{"kind"}),
		spawned: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_entities_spawned_total",
			Help: "Entities registered by kind",
		}, []string{"kind"}),
		disposed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_entities_disposed_total",
			Help: "Entities removed by kind",
		}, []string{"kind"}),
		outcome: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arena_outcome",
			Help: "1 for the current session outcome",
		}, []string{"outcome"}),
		// DoS detection - reason label takes only the Reject* constants
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_rejected_total",
			Help: "Requests and connections refused by reason",
		}, []string{"reason"}),
	}
}

// Rejected implements RejectRecorder.
func (m *Metrics) Rejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

// ObserveTick implements game.TickObserver.
func (m *Metrics) ObserveTick(s game.TickStats) {
	m.tickDuration.Observe(s.Duration.Seconds())
	m.tickDelta.Observe(s.Delta)
	m.ticks.Inc()
	for k, n := range s.Counts {
		if game.Kind(k) == game.KindUnknown {
			continue
		}
		m.entities.WithLabelValues(game.Kind(k).String()).Set(float64(n))
	}
	for _, o := range []game.Outcome{game.OutcomeRunning, game.OutcomeDefeat, game.OutcomeVictory} {
		v := 0.0
		if o == s.Outcome {
			v = 1
		}
		m.outcome.WithLabelValues(string(o)).Set(v)
	}
}

// Attach implements game.Presenter.
func (m *Metrics) Attach(e game.Entity) {
	m.spawned.WithLabelValues(e.Kind().String()).Inc()
}

// Detach implements game.Presenter.
func (m *Metrics) Detach(e game.Entity) {
	m.disposed.WithLabelValues(e.Kind().String()).Inc()
}

// NewDebugServer builds the internal observability server. It is not started.
// CRITICAL: This MUST bind to localhost only to prevent pprof-based DoS
func NewDebugServer(cfg config.DebugConfig, gatherer prometheus.Gatherer, logger *zap.Logger) *http.Server {
	addr := cfg.ListenAddr
	host, _, err := net.SplitHostPort(addr)
	if err != nil || (host != "127.0.0.1" && host != "localhost") {
		// Only allow external binding if explicitly enabled via env
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			logger.Warn("debug server forced to localhost", zap.String("requested", addr))
			addr = config.DefaultDebug().ListenAddr
		}
	}

	mux := http.NewServeMux()

	// pprof endpoints for profiling
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// instrument records latency and status per route pattern
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		recordRequest(r.Method, endpoint, status, time.Since(start))
	})
}

// recordRender records render timing for metrics
func recordRender(duration time.Duration) {
	renderDuration.Observe(duration.Seconds())
}

// recordRequest records HTTP request metrics
func recordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// updateWSConnections updates WebSocket connection count
func updateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// incrementWSMessages increments WebSocket message counter
func incrementWSMessages() {
	wsMessagesTotal.Inc()
}
