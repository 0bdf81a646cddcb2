package otel

// Metric prefixes for each service
// Each service should define its own metric names and use these prefixes
const (
	PrefixMeetings = "meetings"
	PrefixSignal   = "signal"
	PrefixSession  = "session"
	PrefixMedia    = "media"
)
