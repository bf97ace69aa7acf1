package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verichain/pkg/platform/outbox"
	txcontext "verichain/pkg/platform/tx"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func TestAppendJoinsTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := New(db)
	runner := txcontext.NewPostgres(db)

	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	entry := outbox.NewEntry("credential", "c-1", "credential.claimed", []byte(`{}`), now)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(entry.ID, "credential", "c-1", "credential.claimed", []byte(`{}`), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = runner.RunInTx(context.Background(), func(ctx context.Context) error {
		return store.Append(ctx, entry)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchUnprocessed(t *testing.T) {
	store, mock := newMock(t)
	id1 := uuid.New()
	created := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, aggregate_type .* FOR UPDATE SKIP LOCKED").
		WithArgs(maxBatch).
		WillReturnRows(sqlmock.NewRows([]string{"id", "aggregate_type", "aggregate_id", "event_type", "payload", "created_at", "processed_at"}).
			AddRow(id1, "credential", "c-1", "credential.issued", []byte(`{"a":1}`), created, nil))

	entries, err := store.FetchUnprocessed(context.Background(), 5000)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id1, entries[0].ID)
	assert.True(t, entries[0].IsPending())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchUnprocessedZeroLimit(t *testing.T) {
	store, mock := newMock(t)
	entries, err := store.FetchUnprocessed(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, entries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkProcessedMissing(t *testing.T) {
	store, mock := newMock(t)
	id1 := uuid.New()
	now := time.Now()
	mock.ExpectExec("UPDATE outbox SET processed_at").
		WithArgs(id1, now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkProcessed(context.Background(), id1, now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already processed")
}

func TestCountPendingAndDelete(t *testing.T) {
	store, mock := newMock(t)
	before := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec("DELETE FROM outbox").WithArgs(before).WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := store.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	deleted, err := store.DeleteProcessedBefore(context.Background(), before)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}
