// Package reconcile runs the background sweep that settles claim intents left
// open by crashes or unconfirmed transfers, and reports issuance requests
// that stopped part way.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"verichain/internal/credential/metrics"
	"verichain/internal/credential/models"
	"verichain/internal/credential/service"
	id "verichain/pkg/domain"
)

// Reconciler is the part of the credential service the worker drives.
type Reconciler interface {
	OpenIntents(ctx context.Context, olderThan time.Duration, limit int) ([]*models.ClaimIntent, error)
	StalledIssuances(ctx context.Context, olderThan time.Duration, limit int) ([]*models.IssuanceAttempt, error)
	Reconcile(ctx context.Context, credentialID id.CredentialID) (service.ReconcileAction, error)
}

// Result summarizes one sweep.
type Result struct {
	Scanned   int
	Committed int
	Aborted   int
	Pending   int
	Manual    int
	Stalled   int
}

type Worker struct {
	reconciler Reconciler
	interval   time.Duration
	minAge     time.Duration
	batchSize  int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type Option func(*Worker)

// WithInterval overrides the sweep interval when greater than zero.
func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithMinAge skips intents younger than d, leaving them to the request that
// created them.
func WithMinAge(d time.Duration) Option {
	return func(w *Worker) {
		if d >= 0 {
			w.minAge = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func New(reconciler Reconciler, opts ...Option) (*Worker, error) {
	if reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}
	w := &Worker{
		reconciler: reconciler,
		interval:   30 * time.Second,
		minAge:     time.Minute,
		batchSize:  100,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Start sweeps periodically until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := w.RunOnce(ctx)
			if err != nil {
				w.logger.ErrorContext(ctx, "reconcile sweep failed", "error", err)
			}
			if res.Scanned > 0 || res.Stalled > 0 {
				w.logger.InfoContext(ctx, "reconcile sweep",
					"scanned", res.Scanned,
					"committed", res.Committed,
					"aborted", res.Aborted,
					"pending", res.Pending,
					"manual", res.Manual,
					"stalled_issuances", res.Stalled,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce settles one batch of open claim intents and counts stalled
// issuances. Per-intent failures are collected; the sweep keeps going.
func (w *Worker) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	var errs []error

	intents, err := w.reconciler.OpenIntents(ctx, w.minAge, w.batchSize)
	if err != nil {
		errs = append(errs, fmt.Errorf("list open intents: %w", err))
	}
	res.Scanned = len(intents)

	for _, intent := range intents {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		action, err := w.reconciler.Reconcile(ctx, intent.CredentialID)
		switch action {
		case service.ReconcileCommitted:
			res.Committed++
		case service.ReconcileAborted:
			res.Aborted++
		case service.ReconcilePending:
			res.Pending++
		case service.ReconcileManual:
			res.Manual++
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("reconcile %s: %w", intent.CredentialID, err))
		}
	}
	w.metrics.SetOpenClaimIntents(res.Pending + res.Manual)

	stalled, err := w.reconciler.StalledIssuances(ctx, w.minAge, w.batchSize)
	if err != nil {
		errs = append(errs, fmt.Errorf("list stalled issuances: %w", err))
	}
	res.Stalled = len(stalled)
	w.metrics.SetStalledIssuances(res.Stalled)
	for _, a := range stalled {
		// Resuming needs the client's retry; the sweep only reports.
		w.logger.WarnContext(ctx, "issuance stalled",
			"issuance_request_id", a.RequestID,
			"institution_id", a.InstitutionID,
			"stage", a.Stage,
			"mint_tx_ref", a.MintTxRef,
			"updated_at", a.UpdatedAt,
		)
	}

	return res, errors.Join(errs...)
}
