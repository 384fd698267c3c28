package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the engine
type Metrics struct {
	TokensIssuedTotal       *prometheus.CounterVec
	TokensRevokedTotal      *prometheus.CounterVec
	TokensRefreshedTotal    *prometheus.CounterVec
	TokenIntrospectionTotal *prometheus.CounterVec
	TokenGenerationDuration *prometheus.HistogramVec

	AuthorizationRequestsTotal *prometheus.CounterVec
	CodeExchangesTotal         *prometheus.CounterVec

	DeviceCodesTotal     *prometheus.CounterVec
	DeviceCodePollsTotal *prometheus.CounterVec

	ExtensionHooksTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init returns a Prometheus-backed Recorder when enabled, and a
// zero-overhead NoopMetrics otherwise. Prometheus collectors are only
// registered once per process.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

func initMetrics() *Metrics {
	return &Metrics{
		TokensIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_issued_total",
				Help: "Total number of tokens issued",
			},
			[]string{"category", "grant_type"},
		),
		TokensRevokedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_revoked_total",
				Help: "Total number of tokens revoked",
			},
			[]string{"category"},
		),
		TokensRefreshedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_refreshed_total",
				Help: "Total number of refresh token exchanges",
			},
			[]string{"result"}, // success, error
		),
		TokenIntrospectionTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_token_introspection_total",
				Help: "Total number of introspection lookups",
			},
			[]string{"active"},
		),
		TokenGenerationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oauth_token_generation_duration_seconds",
				Help:    "Time taken to mint tokens",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"grant_type"},
		),
		AuthorizationRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_authorization_requests_total",
				Help: "Total number of authorization endpoint requests",
			},
			[]string{"response_type", "result"},
		),
		CodeExchangesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_code_exchanges_total",
				Help: "Total number of authorization code exchanges",
			},
			[]string{"result"}, // success, expired, replayed, invalid
		),
		DeviceCodesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_device_codes_total",
				Help: "Total number of device codes generated",
			},
			[]string{"result"},
		),
		DeviceCodePollsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_device_code_polls_total",
				Help: "Total number of device code polls at the token endpoint",
			},
			[]string{"result"}, // success, pending, slow_down, expired, denied
		),
		ExtensionHooksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_extension_hooks_total",
				Help: "Total number of extension hook invocations",
			},
			[]string{"extension", "hook", "result"},
		),
	}
}

func boolResult(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func (m *Metrics) RecordTokenIssued(tokenCategory, grantType string, generationTime time.Duration) {
	m.TokensIssuedTotal.WithLabelValues(tokenCategory, grantType).Inc()
	m.TokenGenerationDuration.WithLabelValues(grantType).Observe(generationTime.Seconds())
}

func (m *Metrics) RecordTokenRevoked(tokenCategory string) {
	m.TokensRevokedTotal.WithLabelValues(tokenCategory).Inc()
}

func (m *Metrics) RecordTokenRefresh(success bool) {
	m.TokensRefreshedTotal.WithLabelValues(boolResult(success)).Inc()
}

func (m *Metrics) RecordTokenIntrospection(active bool) {
	label := "false"
	if active {
		label = "true"
	}
	m.TokenIntrospectionTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) RecordAuthorizationRequest(responseType string, success bool) {
	m.AuthorizationRequestsTotal.WithLabelValues(responseType, boolResult(success)).Inc()
}

func (m *Metrics) RecordCodeExchange(result string) {
	m.CodeExchangesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordDeviceCodeGenerated(success bool) {
	m.DeviceCodesTotal.WithLabelValues(boolResult(success)).Inc()
}

func (m *Metrics) RecordDeviceCodePoll(result string) {
	m.DeviceCodePollsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordExtensionHook(extension, hook string, success bool) {
	m.ExtensionHooksTotal.WithLabelValues(extension, hook, boolResult(success)).Inc()
}
