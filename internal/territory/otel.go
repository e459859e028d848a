package territory

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/sportsin/territory/internal/territory"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
