package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics exposes counters/histograms for the booking client.
type ClientMetrics struct {
	apiRequests       *prometheus.CounterVec
	apiLatency        *prometheus.HistogramVec
	submissions       *prometheus.CounterVec
	staleAvailability prometheus.Counter
	directoryRefresh  *prometheus.CounterVec
}

func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	m := &ClientMetrics{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Name:      "api_requests_total",
			Help:      "Total calls to the clinic booking API",
		}, []string{"endpoint", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicbook",
			Name:      "api_request_duration_seconds",
			Help:      "Latency of clinic booking API calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "booking",
			Name:      "submissions_total",
			Help:      "Booking submissions by outcome",
		}, []string{"outcome"}),
		staleAvailability: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "availability",
			Name:      "stale_total",
			Help:      "Availability responses discarded because a newer request superseded them",
		}),
		directoryRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbook",
			Subsystem: "directory",
			Name:      "refresh_total",
			Help:      "Doctor directory refreshes by status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.apiRequests, m.apiLatency, m.submissions, m.staleAvailability, m.directoryRefresh)
	return m
}

// ObserveAPIRequest records one API call. A zero status means the request
// never got a response.
func (m *ClientMetrics) ObserveAPIRequest(endpoint string, status int, seconds float64) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.apiRequests.WithLabelValues(endpoint, label).Inc()
	m.apiLatency.WithLabelValues(endpoint).Observe(seconds)
}

func (m *ClientMetrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *ClientMetrics) ObserveStaleAvailability() {
	if m == nil {
		return
	}
	m.staleAvailability.Inc()
}

func (m *ClientMetrics) ObserveDirectoryRefresh(status string) {
	if m == nil {
		return
	}
	m.directoryRefresh.WithLabelValues(status).Inc()
}
