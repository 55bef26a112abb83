package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var (
	// Logger carries the metrics-plane logs; the application itself logs
	// through logrus. A nop logger stands in until Init runs.
	Logger = zap.NewNop()

	verdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_verdicts_total",
			Help: "Total number of classification verdicts by category",
		},
		[]string{"category"},
	)

	enforcementActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_enforcement_actions_total",
			Help: "Total number of warn/ban actions taken",
		},
		[]string{"action"},
	)

	messagesDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_messages_deleted_total",
			Help: "Total number of messages deleted by deletion path",
		},
		[]string{"path"},
	)

	rateLimitPausesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_rate_limit_pauses_total",
			Help: "Total number of pauses taken by the shared deletion rate limiter",
		},
	)

	batchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "retention_batch_duration_seconds",
			Help:    "Time spent executing a deletion batch",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func Init(ctx context.Context, metricsAddr string) error {
	var err error
	Logger, err = zap.NewProduction()
	if err != nil {
		return err
	}

	prometheus.MustRegister(
		verdictsTotal,
		enforcementActionsTotal,
		messagesDeletedTotal,
		rateLimitPausesTotal,
		batchDuration,
	)

	tp := trace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		Logger.Info("metrics server listening", zap.String("addr", metricsAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			Logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		_ = tp.Shutdown(context.Background())
	}()

	return nil
}

// RecordVerdict records a classification outcome.
func RecordVerdict(category string) {
	verdictsTotal.WithLabelValues(category).Inc()
}

// RecordEnforcement records a warn or ban action.
func RecordEnforcement(action string) {
	enforcementActionsTotal.WithLabelValues(action).Inc()
}

// RecordDeleted adds to the deleted-message counter for a deletion path.
func RecordDeleted(path string, n int) {
	messagesDeletedTotal.WithLabelValues(path).Add(float64(n))
}

// RecordRateLimitPause counts one pause taken by the shared limiter.
func RecordRateLimitPause() {
	rateLimitPausesTotal.Inc()
}

// TimeBatch opens a span around a deletion batch and returns the derived
// context plus a closure that ends the span and observes the duration.
// Without Init the global tracer provider is a no-op, so callers can use it
// unconditionally.
func TimeBatch(ctx context.Context) (context.Context, func()) {
	timer := prometheus.NewTimer(batchDuration)
	ctx, span := otel.Tracer("retention").Start(ctx, "delete_batch")
	return ctx, func() {
		span.End()
		timer.ObserveDuration()
	}
}
