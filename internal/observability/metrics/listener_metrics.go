package metrics

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ListenerMetrics captures low-cardinality metrics for the IPN pipeline.
type ListenerMetrics struct {
	notificationsTotal   *prometheus.CounterVec
	adjustmentsCreated   prometheus.Counter
	lineItemsSkipped     *prometheus.CounterVec
	verificationDuration prometheus.Histogram
}

var (
	listenerMetricsOnce sync.Once
	listenerMetrics     *ListenerMetrics
)

func Listener() *ListenerMetrics {
	return ListenerWithConfig(Config{})
}

func ListenerWithConfig(cfg Config) *ListenerMetrics {
	listenerMetricsOnce.Do(func() {
		listenerMetrics = newListenerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return listenerMetrics
}

func ResetListenerMetricsForTest() {
	listenerMetricsOnce = sync.Once{}
	listenerMetrics = nil
}

func newListenerMetrics(registerer prometheus.Registerer, cfg Config) *ListenerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "paypal-inventory-listener"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	notificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "ipn_notifications_total",
			Help:        "Notifications received, labelled by terminal outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	adjustmentsCreated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "ipn_adjustments_created_total",
			Help:        "Inventory adjustments persisted.",
			ConstLabels: constLabels,
		},
	)
	lineItemsSkipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "ipn_line_items_skipped_total",
			Help:        "Line items dropped during extraction, labelled by reason.",
			ConstLabels: constLabels,
		},
		[]string{"reason"},
	)
	verificationDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:        "ipn_verification_duration_seconds",
			Help:        "Duration of remote verification round-trips.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
			ConstLabels: constLabels,
		},
	)

	return &ListenerMetrics{
		notificationsTotal:   register(registerer, notificationsTotal).(*prometheus.CounterVec),
		adjustmentsCreated:   register(registerer, adjustmentsCreated).(prometheus.Counter),
		lineItemsSkipped:     register(registerer, lineItemsSkipped).(*prometheus.CounterVec),
		verificationDuration: register(registerer, verificationDuration).(prometheus.Histogram),
	}
}

// register reuses the existing collector when one with the same descriptor is
// already registered, so tests can rebuild metrics safely.
func register(registerer prometheus.Registerer, collector prometheus.Collector) prometheus.Collector {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector
		}
	}
	return collector
}

// NotificationProcessed records a notification reaching a terminal outcome.
func (m *ListenerMetrics) NotificationProcessed(outcome string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(outcome).Inc()
}

// AdjustmentCreated records one persisted inventory adjustment.
func (m *ListenerMetrics) AdjustmentCreated() {
	if m == nil {
		return
	}
	m.adjustmentsCreated.Inc()
}

// LineItemSkipped records a line item dropped during extraction.
func (m *ListenerMetrics) LineItemSkipped(reason string) {
	if m == nil {
		return
	}
	m.lineItemsSkipped.WithLabelValues(reason).Inc()
}

// VerificationObserved records the duration of a verification round-trip.
func (m *ListenerMetrics) VerificationObserved(duration time.Duration) {
	if m == nil {
		return
	}
	m.verificationDuration.Observe(duration.Seconds())
}
