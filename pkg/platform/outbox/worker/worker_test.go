package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verichain/internal/platform/kafka/producer"
	"verichain/pkg/platform/outbox"
	"verichain/pkg/platform/outbox/store/memory"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*producer.Message
	fail error
}

func (p *recordingPublisher) Produce(_ context.Context, msg *producer.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = string(m.Key)
	}
	return out
}

func appendEntries(t *testing.T, store *memory.Store, n int) []*outbox.Entry {
	t.Helper()
	base := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	var out []*outbox.Entry
	for i := 0; i < n; i++ {
		e := outbox.NewEntry("credential", "c-1", "credential.issued", []byte(`{"token_id":"7"}`), base.Add(time.Duration(i)*time.Second))
		require.NoError(t, store.Append(context.Background(), e))
		out = append(out, e)
	}
	return out
}

func TestPollPublishesInOrderAndMarksProcessed(t *testing.T) {
	store := memory.New()
	entries := appendEntries(t, store, 3)
	pub := &recordingPublisher{}
	w := New(store, pub, WithTopic("events"))

	n := w.Poll(context.Background())

	assert.Equal(t, 3, n)
	assert.Equal(t, []string{entries[0].ID.String(), entries[1].ID.String(), entries[2].ID.String()}, pub.keys())
	pending, err := store.CountPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)

	msg := pub.msgs[0]
	assert.Equal(t, "events", msg.Topic)
	assert.Equal(t, "credential.issued", msg.Headers["event_type"])
	assert.Equal(t, "credential", msg.Headers["aggregate_type"])
	assert.JSONEq(t, `{"token_id":"7"}`, string(msg.Value))
}

func TestPollLeavesFailedEntriesPending(t *testing.T) {
	store := memory.New()
	appendEntries(t, store, 2)
	pub := &recordingPublisher{fail: errors.New("broker down")}
	w := New(store, pub)

	assert.Zero(t, w.Poll(context.Background()))
	pending, err := store.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)

	pub.fail = nil
	assert.Equal(t, 2, w.Poll(context.Background()))
}

func TestPollRespectsBatchSize(t *testing.T) {
	store := memory.New()
	appendEntries(t, store, 5)
	w := New(store, &recordingPublisher{}, WithBatchSize(2))

	assert.Equal(t, 2, w.Poll(context.Background()))
	pending, err := store.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), pending)
}

func TestRunDrainsOnShutdown(t *testing.T) {
	store := memory.New()
	appendEntries(t, store, 4)
	pub := &recordingPublisher{}
	w := New(store, pub, WithPollInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))

	assert.Len(t, pub.keys(), 4)
}

func TestCleanupDeletesPastRetention(t *testing.T) {
	store := memory.New()
	entries := appendEntries(t, store, 2)
	now := time.Date(2024, 7, 30, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.MarkProcessed(context.Background(), entries[0].ID, now.Add(-48*time.Hour)))

	w := New(store, &recordingPublisher{}, WithRetention(24*time.Hour))
	w.now = func() time.Time { return now }

	n, err := w.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []string{"credential.issued"}, store.Events())
}
