package metrics

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/park285/swiss-tournament-bot/internal/tournament"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

// Metrics implements tournament.Recorder on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	playersRegistered prometheus.Counter
	matchesReported   prometheus.Counter
	opErrors          *prometheus.CounterVec
	opDuration        *prometheus.HistogramVec
}

var _ tournament.Recorder = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		playersRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swiss_players_registered_total",
			Help: "Players registered since start.",
		}),
		matchesReported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swiss_matches_reported_total",
			Help: "Matches reported since start.",
		}),
		opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swiss_operation_errors_total",
			Help: "Failed tournament operations by error kind.",
		}, []string{"op", "kind"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "swiss_operation_duration_seconds",
			Help:    "Tournament operation latency.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"op"}),
	}
	m.registry.MustRegister(
		m.playersRegistered,
		m.matchesReported,
		m.opErrors,
		m.opDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveOperation(op string, elapsed time.Duration, err error) {
	m.opDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	if err != nil {
		m.opErrors.WithLabelValues(op, string(tournament.KindOf(err))).Inc()
	}
}

func (m *Metrics) PlayerRegistered() { m.playersRegistered.Inc() }
func (m *Metrics) MatchReported()    { m.matchesReported.Inc() }

// Handler serves /metrics in the exposition format and 404 elsewhere.
func (m *Metrics) Handler() fasthttp.RequestHandler {
	prom := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/metrics":
			prom(ctx)
		case "/healthz":
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBodyString("ok")
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}
}

// Serve listens on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return m.serveListener(ctx, ln, logger)
}

func (m *Metrics) serveListener(ctx context.Context, ln net.Listener, logger *zap.Logger) error {
	srv := &fasthttp.Server{
		Handler:      m.Handler(),
		Name:         "swiss-metrics",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("metrics_listen", zap.String("addr", ln.Addr().String()))

	select {
	case <-ctx.Done():
		if err := srv.Shutdown(); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	}
}
