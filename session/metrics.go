package session

import (
	"go.opentelemetry.io/otel/metric"

	intotel "github.com/imtaco/meeting-coordinator/internal/otel"
)

var (
	phaseTransitions metric.Int64Counter
	activeSessions   metric.Int64UpDownCounter

	// Join path
	mediaFailures metric.Int64Counter
	joins         metric.Int64Counter
	joinFailures  metric.Int64Counter

	callsStarted       metric.Int64Counter
	callStartFailures  metric.Int64Counter
	remoteTerminations metric.Int64Counter
	lateResults        metric.Int64Counter

	statusPolls metric.Int64Counter
)

func init() {
	f := intotel.NewFactory("session", intotel.PrefixSession)

	f.Int64Counter(&phaseTransitions, "phase.transitions",
		metric.WithDescription("Session phase transitions"))

	f.Int64UpDownCounter(&activeSessions, "active",
		metric.WithDescription("Sessions not yet terminated"))

	f.Int64Counter(&mediaFailures, "media.failed",
		metric.WithDescription("Local media acquisitions that failed"))

	f.Int64Counter(&joins, "join.success",
		metric.WithDescription("Successful room joins"))

	f.Int64Counter(&joinFailures, "join.failed",
		metric.WithDescription("Failed room joins"))

	f.Int64Counter(&callsStarted, "call.started",
		metric.WithDescription("Calls started by the call gate"))

	f.Int64Counter(&callStartFailures, "call.failed",
		metric.WithDescription("Call starts rejected by the transport"))

	f.Int64Counter(&remoteTerminations, "remote_terminations",
		metric.WithDescription("Sessions ended by a room-ended signal"))

	f.Int64Counter(&lateResults, "late_results",
		metric.WithDescription("Operation results discarded after teardown"))

	f.Int64Counter(&statusPolls, "status.polls",
		metric.WithDescription("Event status polls issued by the manager"))
}
