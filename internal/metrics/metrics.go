package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	RegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_registrations_total",
			Help: "Total number of registration attempts.",
		},
		[]string{"result"},
	)

	ActivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_activations_total",
			Help: "Total number of account activation attempts.",
		},
		[]string{"result"},
	)

	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Total number of login attempts.",
		},
		[]string{"result"},
	)

	OTPIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_otp_issued_total",
			Help: "Total number of one-time passcodes sent.",
		},
		[]string{"purpose"},
	)

	OTPValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_otp_validations_total",
			Help: "Total number of one-time passcode checks.",
		},
		[]string{"result"},
	)
)

// MustRegister registers every collector with the default registry, adding a
// constant service label. Call it once from main.
func MustRegister(serviceName string) {
	registerer := prometheus.WrapRegistererWith(prometheus.Labels{"service": serviceName}, prometheus.DefaultRegisterer)
	registerer.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		RegistrationsTotal,
		ActivationsTotal,
		LoginsTotal,
		OTPIssuedTotal,
		OTPValidationsTotal,
	)
}
