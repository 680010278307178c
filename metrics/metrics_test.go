package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_BasicRegistration(t *testing.T) {
	tests := []struct{ name string }{
		{name: "registered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ProvisionDuration == nil {
				t.Fatalf("ProvisionDuration is nil")
			}
			if ProvisionsTotal == nil {
				t.Fatalf("ProvisionsTotal is nil")
			}
			if RollbacksTotal == nil || NotificationErrorsTotal == nil || ProvisionsInFlight == nil {
				t.Fatalf("rollback/notification metrics are nil")
			}
		})
	}
}

func TestMetrics_ProvisionsTotal(t *testing.T) {
	tests := []struct {
		name  string
		label string
		incN  int
	}{
		{name: "success label", label: "success", incN: 1},
		{name: "failure label", label: "provisioning", incN: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(ProvisionsTotal.WithLabelValues(tt.label, "valheim"))
			for i := 0; i < tt.incN; i++ {
				ProvisionsTotal.WithLabelValues(tt.label, "valheim").Inc()
			}
			after := testutil.ToFloat64(ProvisionsTotal.WithLabelValues(tt.label, "valheim"))
			diff := after - before
			if diff != float64(tt.incN) {
				t.Fatalf("counter diff mismatch\nexpected: %#v\nactual: %#v", float64(tt.incN), diff)
			}
		})
	}
}

func TestMetrics_ProvisionDuration(t *testing.T) {
	tests := []struct {
		name    string
		observe float64
	}{
		{name: "small", observe: 0.1},
		{name: "large", observe: 45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ProvisionDuration.Observe(tt.observe)
			count := testutil.CollectAndCount(ProvisionDuration)
			assert.Greater(t, count, 0, "histogram not collected; count=%#v", count)
		})
	}
}

func TestRegister_ServesMetrics(t *testing.T) {
	mux := http.NewServeMux()
	Register(mux)
	NotificationErrorsTotal.Inc()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "provisioner_notification_errors_total")
}
