package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the scheduling flows. All
// observers are nil-safe so tests can pass a nil receiver.
type BookingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	reschedulesTotal *prometheus.CounterVec
	sagaStepsTotal   *prometheus.CounterVec
	sagaLatency      prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Total booking attempts by outcome",
		}, []string{"outcome"}),
		reschedulesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "reschedules_total",
			Help:      "Total reschedule attempts by outcome",
		}, []string{"outcome"}),
		sagaStepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "orchestrator",
			Name:      "saga_steps_total",
			Help:      "Automatic-booking saga steps by step and status",
		}, []string{"step", "status"}),
		sagaLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "orchestrator",
			Name:      "saga_duration_seconds",
			Help:      "End-to-end latency of automatic bookings",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.reschedulesTotal, m.sagaStepsTotal, m.sagaLatency)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveReschedule(outcome string) {
	if m == nil {
		return
	}
	m.reschedulesTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveSagaStep(step, status string) {
	if m == nil {
		return
	}
	m.sagaStepsTotal.WithLabelValues(step, status).Inc()
}

func (m *BookingMetrics) ObserveSagaDuration(seconds float64) {
	if m == nil {
		return
	}
	m.sagaLatency.Observe(seconds)
}
