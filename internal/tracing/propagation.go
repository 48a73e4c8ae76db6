package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// InjectHTTPHeaders injects trace context into HTTP headers for outgoing requests
func InjectHTTPHeaders(ctx context.Context, req *http.Request) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
}

// ExtractHTTPHeaders extracts trace context from HTTP headers for incoming requests
func ExtractHTTPHeaders(ctx context.Context, req *http.Request) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(req.Header))
}

// InjectMapCarrier injects trace context into a map (for message queues like RabbitMQ)
func InjectMapCarrier(ctx context.Context, carrier map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(carrier))
}

// ExtractMapCarrier extracts trace context from a map
func ExtractMapCarrier(ctx context.Context, carrier map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(carrier))
}

// MessageSpan creates a span for the AMQP order.created announcement
// published after a successful invoice dispatch.
func MessageSpan(ctx context.Context, queue, operation string, messageID string) (context.Context, trace.Span) {
	tracer := otel.Tracer("messaging")

	var kind trace.SpanKind
	if operation == "publish" || operation == "send" {
		kind = trace.SpanKindProducer
	} else {
		kind = trace.SpanKindConsumer
	}

	return tracer.Start(ctx, queue+" "+operation,
		trace.WithSpanKind(kind),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination", queue),
			attribute.String("messaging.operation", operation),
			attribute.String("messaging.message_id", messageID),
		),
	)
}

// WithTraceID adds trace ID to context for correlation
func WithTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// WithSpanID returns the current span ID
func WithSpanID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasSpanID() {
		return span.SpanContext().SpanID().String()
	}
	return ""
}

// LinkSpans creates a link between spans (useful for async operations)
func LinkSpans(ctx context.Context, linkedCtx context.Context) trace.Link {
	linkedSpan := trace.SpanFromContext(linkedCtx)
	return trace.Link{
		SpanContext: linkedSpan.SpanContext(),
	}
}

// BusinessSpan creates a span for a domain operation outside the
// request/response path, such as checkout order commit.
func BusinessSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("business")
	allAttrs := append([]attribute.KeyValue{
		attribute.String("business.operation", operation),
	}, attrs...)

	return tracer.Start(ctx, operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(allAttrs...),
	)
}

// OrderSpan creates a span for checkout's order commit, from cart
// snapshot through catalog.OrderRepository.CommitOrder.
func OrderSpan(ctx context.Context, operation, chatID string) (context.Context, trace.Span) {
	return BusinessSpan(ctx, "order."+operation,
		attribute.String("chat.id", chatID),
	)
}
