package telemetry

// SLI names recorded as span attributes on enumeration traces.
const (
	MetricEnumerationSeconds = "enumeration.duration_seconds"
	MetricReverseCalls       = "geocode.reverse_calls"
	MetricForwardCalls       = "geocode.forward_calls"
	MetricAddressesFound     = "business.addresses_found"
)
