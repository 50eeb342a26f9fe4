package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"eventlisting/internal/domain"
)

// Recorder exports lifecycle, admission and HTTP metrics.
type Recorder struct {
	transitions     *prometheus.CounterVec
	requestsCreated *prometheus.CounterVec
	resolved        *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

var _ domain.Metrics = (*Recorder)(nil)

// NewRecorder registers the collectors with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "event_state_transitions_total",
				Help: "Event lifecycle transitions",
			},
			[]string{"from", "to"},
		),
		requestsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "participation_requests_created_total",
				Help: "Participation requests created, by initial status",
			},
			[]string{"status"},
		),
		resolved: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "participation_requests_resolved_total",
				Help: "Participation requests resolved by event owners",
			},
			[]string{"status", "cascade"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

func (r *Recorder) EventTransition(from, to domain.EventState) {
	r.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (r *Recorder) RequestCreated(status domain.RequestStatus) {
	r.requestsCreated.WithLabelValues(string(status)).Inc()
}

func (r *Recorder) RequestsResolved(status domain.RequestStatus, n int, cascade bool) {
	if n <= 0 {
		return
	}
	r.resolved.WithLabelValues(string(status), strconv.FormatBool(cascade)).Add(float64(n))
}

// ObserveHTTP records one served request. route is the mux pattern, not the raw path.
func (r *Recorder) ObserveHTTP(method, route string, status int, d time.Duration) {
	r.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
