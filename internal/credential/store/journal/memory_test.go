package journal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verichain/internal/credential/models"
	id "verichain/pkg/domain"
	"verichain/pkg/platform/sentinel"
	"verichain/pkg/testutil"
)

func newAttempt(requestID string, stage models.IssuanceStage, updated time.Time) *models.IssuanceAttempt {
	return &models.IssuanceAttempt{
		RequestID:     requestID,
		InstitutionID: testutil.TestIDs.InstitutionID1,
		IssuerID:      testutil.TestIDs.IssuerID1,
		Fingerprint:   "fp-" + requestID,
		Stage:         stage,
		CreatedAt:     updated,
		UpdatedAt:     updated,
	}
}

func TestInMemoryAttempts(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	now := time.Now()

	a := newAttempt("req-1", models.StageStarted, now)
	require.NoError(t, s.CreateAttempt(ctx, a))
	assert.ErrorIs(t, s.CreateAttempt(ctx, a), sentinel.ErrAlreadyUsed)

	a.Stage = models.StageMintSubmitted
	a.MintTxRef = "0xmint"
	require.NoError(t, s.UpdateAttempt(ctx, a))

	loaded, err := s.GetAttempt(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.StageMintSubmitted, loaded.Stage)
	assert.Equal(t, "0xmint", loaded.MintTxRef)

	_, err = s.GetAttempt(ctx, "req-missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.ErrorIs(t, s.UpdateAttempt(ctx, newAttempt("req-missing", models.StageStarted, now)), sentinel.ErrNotFound)
}

func TestInMemoryListStalledAttempts(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	now := time.Now()

	require.NoError(t, s.CreateAttempt(ctx, newAttempt("old-minted", models.StageMinted, now.Add(-2*time.Hour))))
	require.NoError(t, s.CreateAttempt(ctx, newAttempt("old-submitted", models.StageMintSubmitted, now.Add(-time.Hour))))
	require.NoError(t, s.CreateAttempt(ctx, newAttempt("old-completed", models.StageCompleted, now.Add(-time.Hour))))
	require.NoError(t, s.CreateAttempt(ctx, newAttempt("fresh", models.StageMinted, now)))

	stalled, err := s.ListStalledAttempts(ctx, now.Add(-time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, stalled, 2)
	assert.Equal(t, "old-minted", stalled[0].RequestID)
	assert.Equal(t, "old-submitted", stalled[1].RequestID)
}

func TestInMemoryFindInFlightAttempt(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	now := time.Now()

	withSerial := func(requestID string, stage models.IssuanceStage, created time.Time) *models.IssuanceAttempt {
		a := newAttempt(requestID, stage, created)
		a.Fingerprint = "fp-serial"
		return a
	}
	require.NoError(t, s.CreateAttempt(ctx, withSerial("started", models.StageStarted, now.Add(-3*time.Hour))))
	require.NoError(t, s.CreateAttempt(ctx, withSerial("done", models.StageCompleted, now.Add(-3*time.Hour))))

	_, err := s.FindInFlightAttempt(ctx, testutil.TestIDs.InstitutionID1, "fp-serial")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, s.CreateAttempt(ctx, withSerial("minted", models.StageMinted, now.Add(-time.Hour))))
	require.NoError(t, s.CreateAttempt(ctx, withSerial("submitted", models.StageMintSubmitted, now.Add(-2*time.Hour))))

	found, err := s.FindInFlightAttempt(ctx, testutil.TestIDs.InstitutionID1, "fp-serial")
	require.NoError(t, err)
	assert.Equal(t, "submitted", found.RequestID)

	_, err = s.FindInFlightAttempt(ctx, testutil.TestIDs.InstitutionID2, "fp-serial")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryIntents(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	now := time.Now()
	credID := id.CredentialID(uuid.New())

	_, err := s.GetIntent(ctx, credID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	in := &models.ClaimIntent{
		CredentialID:  credID,
		ClaimantID:    testutil.TestIDs.HolderID1,
		TargetAddress: testutil.TestAddresses.Holder1,
		State:         models.IntentPending,
		CreatedAt:     now.Add(-time.Hour),
		UpdatedAt:     now.Add(-time.Hour),
	}
	require.NoError(t, s.PutIntent(ctx, in))

	open, err := s.ListOpenIntents(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, open, 1)

	in.State = models.IntentCommitted
	in.TransferTxRef = "0xtransfer"
	require.NoError(t, s.PutIntent(ctx, in))

	loaded, err := s.GetIntent(ctx, credID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentCommitted, loaded.State)

	open, err = s.ListOpenIntents(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, open)
}
