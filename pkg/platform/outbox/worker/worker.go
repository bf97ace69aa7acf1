package worker

import (
	"context"
	"log/slog"
	"time"

	"verichain/internal/platform/kafka/producer"
	"verichain/pkg/platform/outbox"
	"verichain/pkg/platform/outbox/metrics"
)

// Publisher is satisfied by *producer.Producer and *producer.Noop.
type Publisher interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Worker polls the outbox and publishes entries to Kafka. Delivery is at
// least once: an entry published but not marked is published again, keyed by
// its id so consumers can drop duplicates.
type Worker struct {
	store        outbox.Store
	publisher    Publisher
	topic        string
	batchSize    int
	pollInterval time.Duration
	retention    time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger
	now          func() time.Time
}

type Option func(*Worker)

func WithTopic(topic string) Option {
	return func(w *Worker) {
		w.topic = topic
	}
}

func WithBatchSize(size int) Option {
	return func(w *Worker) {
		w.batchSize = size
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		w.pollInterval = interval
	}
}

// WithRetention sets how long published entries are kept. Zero keeps them.
func WithRetention(d time.Duration) Option {
	return func(w *Worker) {
		w.retention = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func New(store outbox.Store, publisher Publisher, opts ...Option) *Worker {
	w := &Worker{
		store:        store,
		publisher:    publisher,
		topic:        "verichain.credential.events",
		batchSize:    100,
		pollInterval: 250 * time.Millisecond,
		retention:    7 * 24 * time.Hour,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is done, then drains what is left with a short deadline.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	cleanup := time.NewTicker(time.Hour)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case <-ticker.C:
			w.Poll(ctx)
		case <-cleanup.C:
			if n, err := w.Cleanup(ctx); err != nil {
				w.logger.ErrorContext(ctx, "outbox cleanup failed", "error", err)
			} else if n > 0 {
				w.logger.InfoContext(ctx, "outbox cleanup", "deleted", n)
			}
		}
	}
}

// Poll publishes one batch and returns how many entries were marked processed.
func (w *Worker) Poll(ctx context.Context) int {
	start := w.now()
	defer func() {
		w.metrics.ObservePollDuration(time.Since(start).Seconds())
	}()

	entries, err := w.store.FetchUnprocessed(ctx, w.batchSize)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to fetch outbox entries", "error", err)
		w.metrics.IncPublishFailures()
		return 0
	}
	if len(entries) == 0 {
		w.refreshPending(ctx)
		return 0
	}
	w.metrics.ObserveBatchSize(len(entries))
	published := w.publishAll(ctx, entries)
	w.refreshPending(ctx)
	return published
}

func (w *Worker) publishAll(ctx context.Context, entries []*outbox.Entry) int {
	published := 0
	for _, entry := range entries {
		if err := w.publish(ctx, entry); err != nil {
			w.logger.ErrorContext(ctx, "failed to publish outbox entry",
				"id", entry.ID,
				"event_type", entry.EventType,
				"error", err,
			)
			w.metrics.IncPublishFailures()
			continue
		}
		if err := w.store.MarkProcessed(ctx, entry.ID, w.now()); err != nil {
			w.logger.ErrorContext(ctx, "failed to mark outbox entry processed",
				"id", entry.ID,
				"error", err,
			)
			continue
		}
		w.metrics.IncPublished()
		published++
	}
	return published
}

func (w *Worker) publish(ctx context.Context, entry *outbox.Entry) error {
	start := w.now()
	err := w.publisher.Produce(ctx, &producer.Message{
		Topic: w.topic,
		Key:   []byte(entry.ID.String()),
		Value: entry.Payload,
		Headers: map[string]string{
			"aggregate_type": entry.AggregateType,
			"aggregate_id":   entry.AggregateID,
			"event_type":     entry.EventType,
		},
	})
	if err != nil {
		return err
	}
	w.metrics.ObservePublishDuration(time.Since(start).Seconds())
	return nil
}

// Cleanup deletes published entries past retention.
func (w *Worker) Cleanup(ctx context.Context) (int64, error) {
	if w.retention <= 0 {
		return 0, nil
	}
	return w.store.DeleteProcessedBefore(ctx, w.now().Add(-w.retention))
}

func (w *Worker) refreshPending(ctx context.Context) {
	if w.metrics == nil {
		return
	}
	n, err := w.store.CountPending(ctx)
	if err != nil {
		return
	}
	w.metrics.SetPendingDepth(n)
}

func (w *Worker) drain() {
	w.logger.Info("draining outbox worker")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for ctx.Err() == nil {
		entries, err := w.store.FetchUnprocessed(ctx, w.batchSize)
		if err != nil {
			w.logger.Error("failed to fetch entries during drain", "error", err)
			return
		}
		if len(entries) == 0 {
			return
		}
		if w.publishAll(ctx, entries) == 0 {
			// Nothing moved; the broker is likely down. Leave the rest for next start.
			return
		}
	}
}
