package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "pageforge"

// Metrics holds all PageForge metric instruments.
type Metrics struct {
	TasksAccepted  metric.Int64Counter
	TasksCompleted metric.Int64Counter
	TasksFailed    metric.Int64Counter
	RoundDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TasksAccepted, err = meter.Int64Counter("pageforge.tasks.accepted",
		metric.WithDescription("Number of task submissions accepted"))
	if err != nil {
		return nil, err
	}

	m.TasksCompleted, err = meter.Int64Counter("pageforge.tasks.completed",
		metric.WithDescription("Number of rounds completed successfully"))
	if err != nil {
		return nil, err
	}

	m.TasksFailed, err = meter.Int64Counter("pageforge.tasks.failed",
		metric.WithDescription("Number of rounds that failed"))
	if err != nil {
		return nil, err
	}

	m.RoundDuration, err = meter.Float64Histogram("pageforge.round.duration_seconds",
		metric.WithDescription("End-to-end round duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
