package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verichain/internal/authz"
	"verichain/internal/principal/models"
	id "verichain/pkg/domain"
	"verichain/pkg/platform/sentinel"
)

var principalRowColumns = []string{
	"id", "email", "full_name", "password_hash", "role", "institution_id", "status", "custody_address", "created_at", "updated_at",
}

func TestPostgresCreate_UniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO principals")).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err = NewPostgres(db).Create(context.Background(), newPrincipal(t, "dup@example.org", authz.RoleHolder, nil))
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdate_AddressTaken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := newPrincipal(t, "h@example.org", authz.RoleHolder, nil)
	addr := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	require.NoError(t, p.LinkAddress(addr, time.Now()))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE principals SET status = $2, custody_address = $3, updated_at = $4 WHERE id = $1")).
		WithArgs(p.ID.String(), "active", addr.Hex(), sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err = NewPostgres(db).Update(context.Background(), p)
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	pid := uuid.New()
	inst := uuid.New()
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE lower(email) = lower($1)")).
		WithArgs("issuer@example.org").
		WillReturnRows(sqlmock.NewRows(principalRowColumns).
			AddRow(pid.String(), "issuer@example.org", "Ibu Issuer", "hash", "issuer", inst.String(), "pending_approval", nil, now, now))

	p, err := NewPostgres(db).FindByEmail(context.Background(), " issuer@example.org")
	require.NoError(t, err)
	assert.Equal(t, id.PrincipalID(pid), p.ID)
	assert.Equal(t, authz.RoleIssuer, p.Role)
	assert.Equal(t, models.StatusPendingApproval, p.Status)
	require.NotNil(t, p.InstitutionID)
	assert.Equal(t, id.InstitutionID(inst), *p.InstitutionID)
	assert.Nil(t, p.CustodyAddress)
}

func TestPostgresFindByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM principals WHERE id").WillReturnRows(sqlmock.NewRows(principalRowColumns))

	_, err = NewPostgres(db).FindByID(context.Background(), id.PrincipalID(uuid.New()))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresListByInstitution(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	inst := uuid.New()
	now := time.Now()
	mock.ExpectQuery("WHERE institution_id = \\$1 AND role = \\$2").
		WithArgs(inst.String(), "issuer").
		WillReturnRows(sqlmock.NewRows(principalRowColumns).
			AddRow(uuid.NewString(), "a@example.org", "A", "hash", "issuer", inst.String(), "active", nil, now, now).
			AddRow(uuid.NewString(), "b@example.org", "B", "hash", "issuer", inst.String(), "pending_approval", nil, now, now))

	list, err := NewPostgres(db).ListByInstitution(context.Background(), id.InstitutionID(inst), authz.RoleIssuer)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDelete_NoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM principals").WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewPostgres(db).Delete(context.Background(), id.PrincipalID(uuid.New()))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
