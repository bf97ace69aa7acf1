// Package tracer is a small tracing facade over OpenTelemetry so services
// can open spans around ledger and asset-store calls without importing otel
// everywhere. NewNoop is used by tests.
package tracer

import (
	"context"
	"time"
)

// Span is an active trace span. End must be called exactly once.
type Span interface {
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute     { return Attribute{Key: key, Value: value} }
func Bool(key string, value bool) Attribute   { return Attribute{Key: key, Value: value} }
func Int64(key string, value int64) Attribute { return Attribute{Key: key, Value: value} }

// Duration records value in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanIssue          = "credential.issue"
	SpanClaim          = "credential.claim"
	SpanReconcile      = "credential.reconcile"
	SpanAssetPut       = "assets.put"
	SpanLedgerMint     = "ledger.mint"
	SpanLedgerTransfer = "ledger.transfer"
	SpanLedgerAwait    = "ledger.await"
	SpanLedgerOwnerOf  = "ledger.owner_of"
)

// Attribute keys.
const (
	AttrCredentialID = "credential.id"
	AttrRequestID    = "issuance.request_id"
	AttrTokenID      = "ledger.token_id"
	AttrTxRef        = "ledger.tx_ref"
	AttrResumed      = "issuance.resumed"
	AttrStage        = "issuance.stage"
	AttrOutcome      = "outcome"
)
