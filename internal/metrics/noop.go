package metrics

import "time"

// NoopMetrics is a Recorder that does nothing
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordTokenIssued(tokenCategory, grantType string, generationTime time.Duration) {
}
func (n *NoopMetrics) RecordTokenRevoked(tokenCategory string)                      {}
func (n *NoopMetrics) RecordTokenRefresh(success bool)                              {}
func (n *NoopMetrics) RecordTokenIntrospection(active bool)                         {}
func (n *NoopMetrics) RecordAuthorizationRequest(responseType string, success bool) {}
func (n *NoopMetrics) RecordCodeExchange(result string)                             {}
func (n *NoopMetrics) RecordDeviceCodeGenerated(success bool)                       {}
func (n *NoopMetrics) RecordDeviceCodePoll(result string)                           {}
func (n *NoopMetrics) RecordExtensionHook(extension, hook string, success bool)     {}
