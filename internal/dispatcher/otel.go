package dispatcher

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/nido-racing/trackcam/internal/dispatcher"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
