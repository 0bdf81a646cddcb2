package service

import (
	"go.opentelemetry.io/otel/metric"

	intotel "github.com/imtaco/meeting-coordinator/internal/otel"
)

var (
	eventsCreated metric.Int64Counter

	// Lifecycle
	statusTransitions    metric.Int64Counter
	rejectedTransitions  metric.Int64Counter
	unauthorizedAttempts metric.Int64Counter
	statusConflicts      metric.Int64Counter

	tokensIssued metric.Int64Counter
)

func init() {
	f := intotel.NewFactory("meetings.service", intotel.PrefixMeetings)

	f.Int64Counter(&eventsCreated, "events.created",
		metric.WithDescription("Total events created"))

	f.Int64Counter(&statusTransitions, "status.transitions",
		metric.WithDescription("Applied event status transitions"))

	f.Int64Counter(&rejectedTransitions, "status.rejected",
		metric.WithDescription("Status transitions rejected as invalid"))

	f.Int64Counter(&unauthorizedAttempts, "status.unauthorized",
		metric.WithDescription("Status changes attempted by a non-host"))

	f.Int64Counter(&statusConflicts, "status.conflicts",
		metric.WithDescription("Status updates retried after a concurrent change"))

	f.Int64Counter(&tokensIssued, "tokens.issued",
		metric.WithDescription("Participant tokens issued"))
}
