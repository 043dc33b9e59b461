package integration

import (
	"context"
	"errors"
	"time"

	"github.com/productcomposite/backend/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

// Outcome attribute values recorded on every lookup
const (
	outcomeSuccess      = "success"
	outcomeNotFound     = "not_found"
	outcomeInvalidInput = "invalid_input"
	outcomeTransport    = "transport_failure"
	outcomeUnclassified = "unclassified"
	outcomeError        = "error"
)

type instruments struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newInstruments(meter metric.Meter) instruments {
	fallback := noop.NewMeterProvider().Meter(instrumentationName)

	requests, err := meter.Int64Counter("integration.requests",
		metric.WithDescription("Backend lookups by service and outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		requests, _ = fallback.Int64Counter("integration.requests")
	}

	duration, err := meter.Float64Histogram("integration.request.duration",
		metric.WithDescription("Backend lookup latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		duration, _ = fallback.Float64Histogram("integration.request.duration")
	}

	return instruments{requests: requests, duration: duration}
}

// startCall opens an internal span for one lookup; the otelhttp transport adds
// the CLIENT span for the exchange beneath it. The returned function ends the
// span and records the lookup's outcome and latency.
func (c *Client) startCall(ctx context.Context, service, op string, productID int) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "integration."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("backend.service", service),
			attribute.Int("product.id", productID),
		),
	)

	return ctx, func(err error) {
		outcome := outcomeOf(err)
		attrs := metric.WithAttributes(
			attribute.String("service", service),
			attribute.String("outcome", outcome),
		)
		c.metrics.requests.Add(ctx, 1, attrs)
		c.metrics.duration.Record(ctx, time.Since(start).Seconds(), attrs)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, domain.ErrNotFound):
		return outcomeNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return outcomeInvalidInput
	case errors.Is(err, domain.ErrTransportFailure):
		return outcomeTransport
	case errors.Is(err, domain.ErrUnclassifiedBackend):
		return outcomeUnclassified
	default:
		return outcomeError
	}
}
