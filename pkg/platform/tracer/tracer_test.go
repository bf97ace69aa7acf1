package tracer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNoopTracer(t *testing.T) {
	ctx := context.Background()
	got, span := NewNoop().Start(ctx, SpanClaim, String(AttrCredentialID, "c1"))
	assert.Equal(t, ctx, got)
	assert.NotPanics(t, func() {
		span.AddEvent("x")
		span.SetAttributes(Bool(AttrResumed, true))
		span.End(errors.New("boom"))
	})
}

func TestOTelTracerWithNoopProvider(t *testing.T) {
	tr := NewOTel("test", WithOTelTracer(noop.NewTracerProvider().Tracer("test")))
	_, span := tr.Start(context.Background(), SpanIssue,
		String(AttrRequestID, "r1"),
		Int64("n", 1),
		Duration("d", time.Second),
	)
	assert.NotPanics(t, func() { span.End(nil) })
}

func TestToOTelAttributesSkipsUnknownTypes(t *testing.T) {
	attrs := toOTelAttributes([]Attribute{String("a", "b"), {Key: "c", Value: struct{}{}}})
	assert.Len(t, attrs, 1)
	assert.Nil(t, toOTelAttributes(nil))
}
