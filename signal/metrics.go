package signal

import (
	"go.opentelemetry.io/otel/metric"

	intotel "github.com/imtaco/meeting-coordinator/internal/otel"
)

var (
	// WebSocket connection metrics
	connectionsActive metric.Int64UpDownCounter

	// Auth metrics
	authAttempts metric.Int64Counter
	authFailures metric.Int64Counter

	// RPC metrics
	rpcRequests  metric.Int64Counter
	rpcFailures  metric.Int64Counter
	rpcThrottled metric.Int64Counter
	rpcDuration  metric.Float64Histogram

	// Room metrics
	participantsJoined metric.Int64Counter
	callsStarted       metric.Int64Counter
	roomsEnded         metric.Int64Counter
	endRoomRejected    metric.Int64Counter

	// Notification metrics
	notificationsSent   metric.Int64Counter
	notificationsFailed metric.Int64Counter
	fanoutErrors        metric.Int64Counter
)

func init() {
	f := intotel.NewFactory("signal", intotel.PrefixSignal)

	f.Int64UpDownCounter(&connectionsActive, "connections.active",
		metric.WithDescription("Number of active WebSocket connections"))

	f.Int64Counter(&authAttempts, "auth.attempts",
		metric.WithDescription("Total authentication attempts"))

	f.Int64Counter(&authFailures, "auth.failures",
		metric.WithDescription("Total authentication failures"))

	f.Int64Counter(&rpcRequests, "rpc.requests.total",
		metric.WithDescription("Total RPC requests processed"))

	f.Int64Counter(&rpcFailures, "rpc.requests.failed",
		metric.WithDescription("Total failed RPC requests"))

	f.Int64Counter(&rpcThrottled, "rpc.requests.throttled",
		metric.WithDescription("RPC requests rejected by the per-connection limiter"))

	f.Float64Histogram(&rpcDuration, "rpc.duration",
		metric.WithDescription("RPC handling time"),
		metric.WithUnit("s"))

	f.Int64Counter(&participantsJoined, "participants.joined",
		metric.WithDescription("Participants joined to a room"))

	f.Int64Counter(&callsStarted, "calls.started",
		metric.WithDescription("Start-call requests relayed to a room"))

	f.Int64Counter(&roomsEnded, "rooms.ended",
		metric.WithDescription("Rooms ended by their host"))

	f.Int64Counter(&endRoomRejected, "rooms.end_rejected",
		metric.WithDescription("End-room attempts by non-hosts"))

	f.Int64Counter(&notificationsSent, "notifications.sent",
		metric.WithDescription("Total notifications sent to clients"))

	f.Int64Counter(&notificationsFailed, "notifications.failed",
		metric.WithDescription("Total failed notification deliveries"))

	f.Int64Counter(&fanoutErrors, "fanout.errors",
		metric.WithDescription("Cross-instance relay failures"))
}
