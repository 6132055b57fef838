package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/writestack/noteflow/internal/health"
)

var (
	// Trigger metrics

	TriggerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "noteflow",
		Name:      "trigger_duration_seconds",
		Help:      "Duration of one schedule trigger execution.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"outcome"})

	TriggersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "noteflow",
		Name:      "triggers_total",
		Help:      "Total trigger executions, by outcome or error code.",
	}, []string{"result"})

	TriggersInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "noteflow",
		Name:      "triggers_in_flight",
		Help:      "Number of schedule triggers currently executing.",
	})

	// Attachment metrics

	AttachmentsPreparedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "noteflow",
		Name:      "attachments_prepared_total",
		Help:      "Attachment preparation results, by stage outcome.",
	}, []string{"result"})

	// Timer metrics

	TimersArmed = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "noteflow",
		Name:      "timers_armed",
		Help:      "Number of armed one-shot timer entries.",
	})

	TimersRearmedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "noteflow",
		Name:      "timers_rearmed_total",
		Help:      "Timer entries re-armed by the reconciler after being lost.",
	})

	SchedulesMissedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "noteflow",
		Name:      "schedules_missed_total",
		Help:      "Schedules marked missed because their fire time passed unobserved.",
	})

	ReconcileCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "noteflow",
		Name:      "reconcile_cycle_duration_seconds",
		Help:      "Time taken for one reconciler sweep.",
		Buckets:   prometheus.DefBuckets,
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "noteflow",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "noteflow",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		TriggerDuration,
		TriggersTotal,
		TriggersInFlight,
		AttachmentsPreparedTotal,
		TimersArmed,
		TimersRearmedTotal,
		SchedulesMissedTotal,
		ReconcileCycleDuration,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		result := checker.Readiness(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if result.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(result)
	})
	return &http.Server{Addr: addr, Handler: mux}
}
