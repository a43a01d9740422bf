package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the portal auth service.
type Metrics struct {
	LoginAttempts      *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
	OTPIssued          prometheus.Counter
	OTPMismatches      prometheus.Counter
	OTPSendFailures    prometheus.Counter
	InactivityLogouts  *prometheus.CounterVec
	AccountsRegistered prometheus.Counter
	EndpointLatency    *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		LoginAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civita_login_attempts_total",
			Help: "Total number of login attempts, labeled by result",
		}, []string{"result"}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "civita_active_sessions",
			Help: "Current number of active sessions",
		}),
		OTPIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civita_otp_issued_total",
			Help: "Total number of OTP challenges issued",
		}),
		OTPMismatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civita_otp_mismatches_total",
			Help: "Total number of rejected OTP inputs",
		}),
		OTPSendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civita_otp_send_failures_total",
			Help: "Total number of OTP dispatch failures",
		}),
		InactivityLogouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civita_inactivity_logouts_total",
			Help: "Total number of forced logouts due to inactivity, labeled by role",
		}, []string{"role"}),
		AccountsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civita_accounts_registered_total",
			Help: "Total number of citizen accounts registered",
		}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "civita_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// IncrementLoginAttempts increments the login attempts counter with result label.
func (m *Metrics) IncrementLoginAttempts(result string) {
	m.LoginAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementActiveSessions(count int) {
	m.ActiveSessions.Add(float64(count))
}

func (m *Metrics) DecrementActiveSessions(count int) {
	m.ActiveSessions.Sub(float64(count))
}

func (m *Metrics) IncrementOTPIssued() {
	m.OTPIssued.Inc()
}

func (m *Metrics) IncrementOTPMismatches() {
	m.OTPMismatches.Inc()
}

func (m *Metrics) IncrementOTPSendFailures() {
	m.OTPSendFailures.Inc()
}

// IncrementInactivityLogouts increments the inactivity logout counter for a role.
func (m *Metrics) IncrementInactivityLogouts(role string) {
	m.InactivityLogouts.WithLabelValues(role).Inc()
}

func (m *Metrics) IncrementAccountsRegistered() {
	m.AccountsRegistered.Inc()
}

// ObserveEndpointLatency records the latency for a given endpoint.
func (m *Metrics) ObserveEndpointLatency(endpoint string, durationSeconds float64) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}
