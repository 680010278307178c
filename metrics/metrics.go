package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProvisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provisioner_provisions_total",
			Help: "Total provisioning attempts by outcome",
		},
		[]string{"result", "game"}, // success|<error kind>
	)

	ProvisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "provisioner_provision_duration_seconds",
			Help:    "Duration of provisioning requests",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		},
	)

	RollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provisioner_rollback_steps_total",
			Help: "Compensation steps run after a failed provisioning request",
		},
		[]string{"step", "result"}, // step name, ok|error
	)

	ProvisionsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "provisioner_provisions_in_flight",
			Help: "Provisioning requests currently being handled",
		},
	)

	NotificationErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "provisioner_notification_errors_total",
			Help: "Workflow status notifications that could not be delivered",
		},
	)
)

func init() {
	prometheus.MustRegister(ProvisionsTotal)
	prometheus.MustRegister(ProvisionDuration)
	prometheus.MustRegister(RollbacksTotal)
	prometheus.MustRegister(ProvisionsInFlight)
	prometheus.MustRegister(NotificationErrorsTotal)
}

func Register(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
}
