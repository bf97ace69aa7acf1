package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New("ledger", WithFailureThreshold(3))

	assert.False(t, b.RecordFailure().Opened)
	assert.False(t, b.RecordFailure().Opened)
	assert.True(t, b.RecordFailure().Opened)
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New("ledger", WithFailureThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	assert.False(t, b.RecordFailure().Opened)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := New("ledger",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithCooldown(time.Minute),
		WithClock(clock.now),
	)

	b.RecordFailure()
	assert.False(t, b.Allow())

	clock.advance(time.Minute)
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())

	assert.False(t, b.RecordSuccess().Closed)
	assert.True(t, b.RecordSuccess().Closed)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := New("ledger", WithFailureThreshold(1), WithCooldown(time.Second), WithClock(clock.now))

	b.RecordFailure()
	clock.advance(time.Second)
	assert.True(t, b.Allow())

	assert.True(t, b.RecordFailure().Opened)
	assert.False(t, b.Allow())
}

func TestBreaker_Reset(t *testing.T) {
	b := New("ledger", WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	assert.True(t, b.Allow())
	assert.Equal(t, "closed", b.State().String())
}
