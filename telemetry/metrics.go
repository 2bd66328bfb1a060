// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	EventsHandled      *prometheus.CounterVec
	CommandsDispatched *prometheus.CounterVec
	MessagesLogged     prometheus.Counter
	BacklogLines       prometheus.Counter

	// Histograms (seconds)
	DispatchDuration prometheus.Observer

	// Gauges
	KnownUsersGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		EventsHandled = promauto.NewCounterVec(prometheus.CounterOpts{Name: "kaabot_events_handled_total", Help: "Inbound chat events handled, by kind"}, []string{"kind"})
		CommandsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{Name: "kaabot_commands_dispatched_total", Help: "Commands dispatched, by command"}, []string{"command"})
		MessagesLogged = promauto.NewCounter(prometheus.CounterOpts{Name: "kaabot_messages_logged_total", Help: "Room messages appended to the transcript"})
		BacklogLines = promauto.NewCounter(prometheus.CounterOpts{Name: "kaabot_backlog_lines_served_total", Help: "Transcript lines replayed to returning users"})
		DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "kaabot_dispatch_duration_seconds", Help: "Event dispatch duration seconds", Buckets: prometheus.DefBuckets})
		KnownUsersGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "kaabot_known_users", Help: "Users tracked in the presence ledger"})
	})
}

// CountEvent records one handled inbound event. Safe before Init.
func CountEvent(kind string) {
	if EventsHandled != nil {
		EventsHandled.WithLabelValues(kind).Inc()
	}
}

// CountCommand records one dispatched command. Safe before Init.
func CountCommand(name string) {
	if CommandsDispatched != nil {
		CommandsDispatched.WithLabelValues(name).Inc()
	}
}

// CountMessageLogged records one transcript append. Safe before Init.
func CountMessageLogged() {
	if MessagesLogged != nil {
		MessagesLogged.Inc()
	}
}

// AddBacklogLines records n replayed transcript lines. Safe before Init.
func AddBacklogLines(n int) {
	if BacklogLines != nil {
		BacklogLines.Add(float64(n))
	}
}

// ObserveDispatch records one event dispatch duration. Safe before Init.
func ObserveDispatch(d time.Duration) {
	if DispatchDuration != nil {
		DispatchDuration.Observe(d.Seconds())
	}
}

// SetKnownUsers records the current presence ledger size. Safe before Init.
func SetKnownUsers(n int) {
	if KnownUsersGauge != nil {
		KnownUsersGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
