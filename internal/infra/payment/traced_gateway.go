package payment

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"seat-marketplace/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*tracedGateway)(nil)

type tracedGateway struct {
	inner  adapter.PaymentGateway
	tracer trace.Tracer
}

// WithTracing wraps a gateway so every provider call gets its own span.
func WithTracing(inner adapter.PaymentGateway) adapter.PaymentGateway {
	return &tracedGateway{inner: inner, tracer: otel.Tracer("seat-marketplace/payment")}
}

func (g *tracedGateway) Name() string { return g.inner.Name() }

func (g *tracedGateway) CreateSession(ctx context.Context, req adapter.CheckoutRequest) (adapter.CheckoutSession, error) {
	ctx, span := g.tracer.Start(ctx, "payment.create_session", trace.WithAttributes(
		attribute.String("payment.provider", g.inner.Name()),
		attribute.String("transaction_id", req.TransactionID),
		attribute.String("payment.method", string(req.Method)),
	))
	defer span.End()

	s, err := g.inner.CreateSession(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create session failed")
	}
	return s, err
}

func (g *tracedGateway) Refund(ctx context.Context, req adapter.RefundRequest) (adapter.RefundResult, error) {
	ctx, span := g.tracer.Start(ctx, "payment.refund", trace.WithAttributes(
		attribute.String("payment.provider", g.inner.Name()),
		attribute.String("transaction_id", req.TransactionID),
	))
	defer span.End()

	r, err := g.inner.Refund(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refund failed")
	}
	return r, err
}
