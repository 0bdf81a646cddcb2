package media

import (
	"go.opentelemetry.io/otel/metric"

	intotel "github.com/imtaco/meeting-coordinator/internal/otel"
)

var (
	streamsActive   metric.Int64UpDownCounter
	acquireFailures metric.Int64Counter
	framesDropped   metric.Int64Counter
)

func init() {
	f := intotel.NewFactory("media", intotel.PrefixMedia)

	f.Int64UpDownCounter(&streamsActive, "streams.active",
		metric.WithDescription("Capture streams currently held"))

	f.Int64Counter(&acquireFailures, "acquire.failures",
		metric.WithDescription("Failed capture acquisitions"))

	f.Int64Counter(&framesDropped, "frames.dropped",
		metric.WithDescription("Frames dropped because nobody was reading"))
}
