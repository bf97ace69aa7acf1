package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verichain/internal/credential/metrics"
	id "verichain/pkg/domain"
	"verichain/pkg/platform/circuit"
)

// flakyLedger fails submissions and reads until healed.
type flakyLedger struct {
	*Memory
	broken bool
	calls  int
}

func (f *flakyLedger) MintToCustody(ctx context.Context, uri string) (TxRef, error) {
	f.calls++
	if f.broken {
		return "", errors.Join(ErrNotSubmitted, errors.New("dial tcp: connection refused"))
	}
	return f.Memory.MintToCustody(ctx, uri)
}

func (f *flakyLedger) OwnerOf(ctx context.Context, tokenID string) (id.Address, error) {
	f.calls++
	if f.broken {
		return id.Address{}, ErrUnavailable
	}
	return f.Memory.OwnerOf(ctx, tokenID)
}

func TestGuarded_SubmitCircuitFailsFast(t *testing.T) {
	ctx := context.Background()
	inner := &flakyLedger{Memory: NewMemory(custody), broken: true}
	m := metrics.New(prometheus.NewRegistry())
	g := NewGuarded(inner,
		WithMetrics(m),
		WithBreakers(circuit.New("submit", circuit.WithFailureThreshold(2)), nil),
	)

	for range 2 {
		_, err := g.MintToCustody(ctx, "meta")
		assert.ErrorIs(t, err, ErrNotSubmitted)
	}
	assert.Equal(t, 2, inner.calls)

	_, err := g.MintToCustody(ctx, "meta")
	assert.ErrorIs(t, err, ErrNotSubmitted)
	assert.Equal(t, 2, inner.calls, "open circuit must not reach the ledger")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerSubmissions.WithLabelValues("mint", "circuit_open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerCircuitOpen.WithLabelValues("submit")))
}

func TestGuarded_AwaitIsNeverGated(t *testing.T) {
	ctx := context.Background()
	inner := &flakyLedger{Memory: NewMemory(custody)}
	submit := circuit.New("submit", circuit.WithFailureThreshold(1))
	g := NewGuarded(inner, WithBreakers(submit, nil))

	ref, err := g.MintToCustody(ctx, "meta")
	require.NoError(t, err)

	submit.RecordFailure()
	require.Equal(t, circuit.StateOpen, submit.State())

	receipt, err := g.AwaitMint(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "1", receipt.TokenID)
}

func TestGuarded_ReadCircuit(t *testing.T) {
	ctx := context.Background()
	inner := &flakyLedger{Memory: NewMemory(custody), broken: true}
	g := NewGuarded(inner, WithBreakers(nil, circuit.New("read", circuit.WithFailureThreshold(1))))

	_, err := g.OwnerOf(ctx, "1")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = g.OwnerOf(ctx, "1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, inner.calls)
}

// stuckLedger never confirms; waits end only with the context.
type stuckLedger struct {
	*Memory
}

func (s *stuckLedger) AwaitMint(ctx context.Context, _ TxRef) (MintReceipt, error) {
	<-ctx.Done()
	return MintReceipt{}, errors.Join(ErrUnconfirmed, ctx.Err())
}

func TestGuarded_ConfirmTimeoutReportsUnconfirmed(t *testing.T) {
	ctx := context.Background()
	g := NewGuarded(&stuckLedger{Memory: NewMemory(custody)}, WithTimeouts(0, 20*time.Millisecond))

	ref, err := g.MintToCustody(ctx, "meta")
	require.NoError(t, err)

	start := time.Now()
	_, err = g.AwaitMint(ctx, ref)
	assert.ErrorIs(t, err, ErrUnconfirmed)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGuarded_PassesThroughCustodyAccount(t *testing.T) {
	g := NewGuarded(NewMemory(custody))
	assert.Equal(t, custody, g.CustodyAccount())
}
