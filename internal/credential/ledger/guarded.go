package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"verichain/internal/credential/metrics"
	id "verichain/pkg/domain"
	"verichain/pkg/platform/circuit"
	"verichain/pkg/platform/tracer"
)

// Guarded decorates a Ledger with circuit breakers, metrics and tracing.
//
// Submissions fail fast with ErrNotSubmitted while the submit circuit is
// open. Confirmation is never gated: a submitted transaction must always be
// awaitable. OwnerOf has its own read circuit so an unhealthy node does not
// stall verification pages.
type Guarded struct {
	next    Ledger
	submit  *circuit.Breaker
	read    *circuit.Breaker
	metrics *metrics.Metrics
	tracer  tracer.Tracer
	logger  *slog.Logger

	submitTimeout  time.Duration
	confirmTimeout time.Duration
}

type GuardedOption func(*Guarded)

func WithMetrics(m *metrics.Metrics) GuardedOption {
	return func(g *Guarded) { g.metrics = m }
}

func WithTracer(t tracer.Tracer) GuardedOption {
	return func(g *Guarded) { g.tracer = t }
}

func WithLogger(l *slog.Logger) GuardedOption {
	return func(g *Guarded) { g.logger = l }
}

func WithBreakers(submit, read *circuit.Breaker) GuardedOption {
	return func(g *Guarded) {
		if submit != nil {
			g.submit = submit
		}
		if read != nil {
			g.read = read
		}
	}
}

// WithTimeouts bounds each submission and each confirmation wait. Zero keeps
// only the caller's deadline.
func WithTimeouts(submit, confirm time.Duration) GuardedOption {
	return func(g *Guarded) {
		g.submitTimeout = submit
		g.confirmTimeout = confirm
	}
}

func NewGuarded(next Ledger, opts ...GuardedOption) *Guarded {
	g := &Guarded{
		next:   next,
		submit: circuit.New("ledger_submit", circuit.WithFailureThreshold(3), circuit.WithCooldown(30*time.Second)),
		read:   circuit.New("ledger_read", circuit.WithFailureThreshold(5), circuit.WithCooldown(10*time.Second)),
		tracer: tracer.NewNoop(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guarded) CustodyAccount() id.Address {
	return g.next.CustodyAccount()
}

func (g *Guarded) MintToCustody(ctx context.Context, metadataPointer string) (TxRef, error) {
	ctx, span := g.tracer.Start(ctx, tracer.SpanLedgerMint)
	ref, err := g.guardSubmit(ctx, "mint", func(ctx context.Context) (TxRef, error) {
		return g.next.MintToCustody(ctx, metadataPointer)
	})
	span.SetAttributes(tracer.String(tracer.AttrTxRef, ref.String()))
	span.End(err)
	return ref, err
}

func (g *Guarded) AwaitMint(ctx context.Context, ref TxRef) (MintReceipt, error) {
	ctx, span := g.tracer.Start(ctx, tracer.SpanLedgerAwait, tracer.String(tracer.AttrTxRef, ref.String()))
	start := time.Now()
	waitCtx, cancel := bounded(ctx, g.confirmTimeout)
	receipt, err := g.next.AwaitMint(waitCtx, ref)
	cancel()
	g.metrics.ObserveLedgerConfirm("mint", start)
	span.SetAttributes(tracer.String(tracer.AttrTokenID, receipt.TokenID))
	span.End(err)
	return receipt, err
}

func (g *Guarded) TransferCustody(ctx context.Context, tokenID string, from, to id.Address) (TxRef, error) {
	ctx, span := g.tracer.Start(ctx, tracer.SpanLedgerTransfer, tracer.String(tracer.AttrTokenID, tokenID))
	ref, err := g.guardSubmit(ctx, "transfer", func(ctx context.Context) (TxRef, error) {
		return g.next.TransferCustody(ctx, tokenID, from, to)
	})
	span.SetAttributes(tracer.String(tracer.AttrTxRef, ref.String()))
	span.End(err)
	return ref, err
}

func (g *Guarded) AwaitTransfer(ctx context.Context, ref TxRef) error {
	ctx, span := g.tracer.Start(ctx, tracer.SpanLedgerAwait, tracer.String(tracer.AttrTxRef, ref.String()))
	start := time.Now()
	waitCtx, cancel := bounded(ctx, g.confirmTimeout)
	err := g.next.AwaitTransfer(waitCtx, ref)
	cancel()
	g.metrics.ObserveLedgerConfirm("transfer", start)
	span.End(err)
	return err
}

func (g *Guarded) OwnerOf(ctx context.Context, tokenID string) (id.Address, error) {
	if !g.read.Allow() {
		return id.Address{}, fmt.Errorf("%w: read circuit open", ErrUnavailable)
	}
	ctx, span := g.tracer.Start(ctx, tracer.SpanLedgerOwnerOf, tracer.String(tracer.AttrTokenID, tokenID))
	owner, err := g.next.OwnerOf(ctx, tokenID)
	span.End(err)
	if err != nil {
		g.recordFailure(ctx, g.read, "read")
		return id.Address{}, err
	}
	g.recordSuccess(ctx, g.read, "read")
	return owner, nil
}

func (g *Guarded) guardSubmit(ctx context.Context, op string, fn func(context.Context) (TxRef, error)) (TxRef, error) {
	if !g.submit.Allow() {
		g.metrics.IncrementLedgerSubmission(op, "circuit_open")
		return "", fmt.Errorf("%w: submit circuit open", ErrNotSubmitted)
	}
	submitCtx, cancel := bounded(ctx, g.submitTimeout)
	ref, err := fn(submitCtx)
	cancel()
	switch {
	case err == nil:
		g.metrics.IncrementLedgerSubmission(op, "ok")
		g.recordSuccess(ctx, g.submit, "submit")
	case errors.Is(err, ErrUnconfirmed):
		g.metrics.IncrementLedgerSubmission(op, "unconfirmed")
		g.recordFailure(ctx, g.submit, "submit")
	default:
		g.metrics.IncrementLedgerSubmission(op, "not_submitted")
		g.recordFailure(ctx, g.submit, "submit")
	}
	return ref, err
}

func (g *Guarded) recordFailure(ctx context.Context, b *circuit.Breaker, path string) {
	if change := b.RecordFailure(); change.Opened {
		g.metrics.SetCircuitOpen(path, true)
		g.logger.WarnContext(ctx, "ledger circuit opened", "breaker", b.Name())
	}
}

func (g *Guarded) recordSuccess(ctx context.Context, b *circuit.Breaker, path string) {
	if change := b.RecordSuccess(); change.Closed {
		g.metrics.SetCircuitOpen(path, false)
		g.logger.InfoContext(ctx, "ledger circuit closed", "breaker", b.Name())
	}
}

func bounded(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

var (
	_ Ledger = (*Memory)(nil)
	_ Ledger = (*Ethereum)(nil)
	_ Ledger = (*Guarded)(nil)
)
