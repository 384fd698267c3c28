package metrics

import "time"

// Recorder defines the interface for recording engine metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Token operations
	RecordTokenIssued(tokenCategory, grantType string, generationTime time.Duration)
	RecordTokenRevoked(tokenCategory string)
	RecordTokenRefresh(success bool)
	RecordTokenIntrospection(active bool)

	// Authorization code flow
	RecordAuthorizationRequest(responseType string, success bool)
	RecordCodeExchange(result string) // success, expired, replayed, invalid

	// Device flow
	RecordDeviceCodeGenerated(success bool)
	RecordDeviceCodePoll(result string) // success, pending, slow_down, expired, denied

	// Extensions
	RecordExtensionHook(extension, hook string, success bool)
}
