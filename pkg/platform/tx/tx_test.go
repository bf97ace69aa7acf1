package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "verichain/pkg/domain-errors"
)

func TestPostgres_CommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE credentials").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = NewPostgres(db).RunInTx(context.Background(), func(ctx context.Context) error {
		_, ok := From(ctx)
		require.True(t, ok)
		_, err := Conn(ctx, db).ExecContext(ctx, "UPDATE credentials SET status = 'claimed'")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = NewPostgres(db).RunInTx(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_NestedCallsJoinOuterTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	p := NewPostgres(db)
	err = p.RunInTx(context.Background(), func(ctx context.Context) error {
		return p.RunInTx(ctx, func(context.Context) error { return nil })
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewMemory().RunInTx(ctx, func(context.Context) error { return nil })
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestConnWithoutTxUsesDB(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, Executor(db), Conn(context.Background(), db))
}
