package session

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/omochice/stranger-chat/internal/session"

type metrics struct {
	appended  metric.Int64Counter
	discarded metric.Int64Counter
	sent      metric.Int64Counter
	pairings  metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	appended, err := meter.Int64Counter("chat.messages.appended",
		metric.WithDescription("Messages appended to the transcript"))
	if err != nil {
		return nil, err
	}
	discarded, err := meter.Int64Counter("chat.messages.stale_discarded",
		metric.WithDescription("Messages discarded because they belong to another room"))
	if err != nil {
		return nil, err
	}
	sent, err := meter.Int64Counter("chat.messages.sent",
		metric.WithDescription("Messages handed to the gateway"))
	if err != nil {
		return nil, err
	}
	pairings, err := meter.Int64Counter("chat.pairings",
		metric.WithDescription("Pairings that started a new transcript"))
	if err != nil {
		return nil, err
	}
	return &metrics{appended: appended, discarded: discarded, sent: sent, pairings: pairings}, nil
}

// noopMetrics never fails.
func noopMetrics() *metrics {
	m, _ := newMetrics(noop.NewMeterProvider().Meter(meterName))
	return m
}
