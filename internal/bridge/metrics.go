package bridge

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
)

// MetricsManager handles registration and updates of the bridge's metrics
type MetricsManager struct {
	spansCreated   *atomic.Int64
	eventsRecorded *atomic.Int64
	eventsDropped  *atomic.Int64
	recordsMissed  *atomic.Int64

	meter metric.Meter
}

// NewMetricsManager creates a new metrics manager
func NewMetricsManager(meter metric.Meter) *MetricsManager {
	return &MetricsManager{
		spansCreated:   atomic.NewInt64(0),
		eventsRecorded: atomic.NewInt64(0),
		eventsDropped:  atomic.NewInt64(0),
		recordsMissed:  atomic.NewInt64(0),
		meter:          meter,
	}
}

// RegisterMetrics registers all counters with the meter
func (m *MetricsManager) RegisterMetrics() error {
	counters := []struct {
		name        string
		description string
		unit        string
		value       *atomic.Int64
	}{
		{"bridge.spans_created", "Number of host spans bridged to OpenTelemetry spans", "{spans}", m.spansCreated},
		{"bridge.events_recorded", "Number of host events attached to a bridged span", "{events}", m.eventsRecorded},
		{"bridge.events_dropped", "Number of host events without a bridged owning span", "{events}", m.eventsDropped},
		{"bridge.records_missed", "Number of field updates for spans that were never bridged", "{records}", m.recordsMissed},
	}

	for _, c := range counters {
		value := c.value
		_, err := m.meter.Int64ObservableCounter(
			c.name,
			metric.WithDescription(c.description),
			metric.WithUnit(c.unit),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(value.Load())
				return nil
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to register %s counter: %w", c.name, err)
		}
	}

	return nil
}

// SpansCreated returns the number of bridged spans
func (m *MetricsManager) SpansCreated() int64 {
	return m.spansCreated.Load()
}

// EventsRecorded returns the number of events attached to bridged spans
func (m *MetricsManager) EventsRecorded() int64 {
	return m.eventsRecorded.Load()
}

// EventsDropped returns the number of events that had no bridged owner
func (m *MetricsManager) EventsDropped() int64 {
	return m.eventsDropped.Load()
}

// RecordsMissed returns the number of field updates for unbridged spans
func (m *MetricsManager) RecordsMissed() int64 {
	return m.recordsMissed.Load()
}
