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
	OperationsStarted     prometheus.Counter
	OperationsFailed      prometheus.Counter
	OperationsSucceeded   prometheus.Counter
	EnrichLookups         prometheus.Counter
	EnrichLookupFailures  prometheus.Counter
	RecordsRepublished    prometheus.Counter
	RecordsExported       prometheus.Counter
	RecordsImported       prometheus.Counter
	InsertShifts          prometheus.Counter
	TriggerReplies        prometheus.Counter
	GatewayReconnects     prometheus.Counter

	// Histograms (seconds)
	OperationDuration prometheus.Observer
	EnrichDuration    prometheus.Observer

	// Gauges
	GatewayConnectedGauge prometheus.Gauge // 1=connected,0=down
	BusyChannelsGauge     prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		OperationsStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "scribe_operations_started_total", Help: "Number of channel operations started"})
		OperationsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "scribe_operations_failed_total", Help: "Number of channel operations failed"})
		OperationsSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "scribe_operations_succeeded_total", Help: "Number of channel operations succeeded"})
		EnrichLookups = promauto.NewCounter(prometheus.CounterOpts{Name: "scribe_enrich_lookups_total", Help: "Number of catalog name lookups attempted"})
		EnrichLookupFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "scribe_enrich_lookup_failures_total", Help: "Number of catalog name lookups failed"})
		RecordsRepublished = promauto.NewCounter(prometheus.CounterOpts{Name: "scribe_records_republished_total", Help: "Number of records re-sent during republish"})
		RecordsExported = promauto.NewCounter(prometheus.CounterOpts{Name: "scribe_records_exported_total", Help: "Number of records written to export bundles"})
		RecordsImported = promauto.NewCounter(prometheus.CounterOpts{Name: "scribe_records_imported_total", Help: "Number of records replayed from import bundles"})
		InsertShifts = promauto.NewCounter(prometheus.CounterOpts{Name: "scribe_insert_shifts_total", Help: "Number of record payload shifts performed by cascade insertion"})
		TriggerReplies = promauto.NewCounter(prometheus.CounterOpts{Name: "scribe_trigger_replies_total", Help: "Number of auto-replies sent by pattern triggers"})
		GatewayReconnects = promauto.NewCounter(prometheus.CounterOpts{Name: "scribe_gateway_reconnects_total", Help: "Number of gateway reconnect attempts"})
		OperationDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "scribe_operation_duration_seconds", Help: "Channel operation duration seconds", Buckets: prometheus.DefBuckets})
		EnrichDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "scribe_enrich_duration_seconds", Help: "Link enrichment duration seconds", Buckets: prometheus.DefBuckets})
		GatewayConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "scribe_gateway_connected", Help: "Gateway connection up=1 down=0"})
		BusyChannelsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "scribe_busy_channels", Help: "Channels with an operation currently in flight"})
	})
}

// UpdateGatewayGauge sets the gauge to 1 if connected else 0.
func UpdateGatewayGauge(connected bool) {
	if GatewayConnectedGauge == nil {
		return
	}
	if connected {
		GatewayConnectedGauge.Set(1)
	} else {
		GatewayConnectedGauge.Set(0)
	}
}

// SetBusyChannels records the number of channels with an operation in flight.
func SetBusyChannels(n int) {
	if BusyChannelsGauge != nil {
		BusyChannelsGauge.Set(float64(n))
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
