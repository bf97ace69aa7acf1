package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"verichain/internal/credential/models"
	id "verichain/pkg/domain"
	"verichain/pkg/platform/sentinel"
	txcontext "verichain/pkg/platform/tx"
)

// PostgresStore persists the issuance and claim journals in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) txcontext.Executor {
	return txcontext.Conn(ctx, s.db)
}

const attemptColumns = `
	request_id, institution_id, issuer_id, fingerprint, stage,
	asset_pointer, metadata_pointer, mint_tx_ref, token_id, credential_id,
	created_at, updated_at`

func (s *PostgresStore) GetAttempt(ctx context.Context, requestID string) (*models.IssuanceAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM issuance_attempts WHERE request_id = $1`
	a, err := scanAttempt(s.execer(ctx).QueryRowContext(ctx, query, requestID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find issuance attempt: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) CreateAttempt(ctx context.Context, a *models.IssuanceAttempt) error {
	query := `
		INSERT INTO issuance_attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query, attemptArgs(a)...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("issuance request %q already exists: %w", a.RequestID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create issuance attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateAttempt(ctx context.Context, a *models.IssuanceAttempt) error {
	query := `
		UPDATE issuance_attempts
		SET stage = $5,
			asset_pointer = $6,
			metadata_pointer = $7,
			mint_tx_ref = $8,
			token_id = $9,
			credential_id = $10,
			updated_at = $11
		WHERE request_id = $1 AND institution_id = $2 AND issuer_id = $3 AND fingerprint = $4
	`
	args := attemptArgs(a)
	// created_at is immutable.
	args = append(args[:10], a.UpdatedAt)
	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update issuance attempt: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update issuance attempt rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListStalledAttempts(ctx context.Context, before time.Time, limit int) ([]*models.IssuanceAttempt, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	query := `SELECT ` + attemptColumns + ` FROM issuance_attempts
		WHERE stage <> 'completed' AND updated_at < $1
		ORDER BY updated_at
		LIMIT $2`
	rows, err := s.execer(ctx).QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list stalled attempts: %w", err)
	}
	defer rows.Close()

	var out []*models.IssuanceAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issuance attempt: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issuance attempts: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindInFlightAttempt(ctx context.Context, institutionID id.InstitutionID, fingerprint string) (*models.IssuanceAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM issuance_attempts
		WHERE institution_id = $1 AND fingerprint = $2 AND stage IN ('mint_submitted', 'minted')
		ORDER BY created_at
		LIMIT 1`
	a, err := scanAttempt(s.execer(ctx).QueryRowContext(ctx, query, institutionID.String(), fingerprint))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find in-flight issuance attempt: %w", err)
	}
	return a, nil
}

const intentColumns = `credential_id, claimant_id, target_address, transfer_tx_ref, state, created_at, updated_at`

func (s *PostgresStore) GetIntent(ctx context.Context, credID id.CredentialID) (*models.ClaimIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM claim_intents WHERE credential_id = $1`
	in, err := scanIntent(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(credID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find claim intent: %w", err)
	}
	return in, nil
}

func (s *PostgresStore) PutIntent(ctx context.Context, in *models.ClaimIntent) error {
	query := `
		INSERT INTO claim_intents (` + intentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (credential_id) DO UPDATE
		SET claimant_id = EXCLUDED.claimant_id,
			target_address = EXCLUDED.target_address,
			transfer_tx_ref = EXCLUDED.transfer_tx_ref,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(in.CredentialID),
		uuid.UUID(in.ClaimantID),
		in.TargetAddress.Hex(),
		nullString(in.TransferTxRef),
		string(in.State),
		in.CreatedAt,
		in.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put claim intent: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListOpenIntents(ctx context.Context, before time.Time, limit int) ([]*models.ClaimIntent, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	query := `SELECT ` + intentColumns + ` FROM claim_intents
		WHERE state IN ('pending', 'submitted') AND updated_at < $1
		ORDER BY updated_at
		LIMIT $2`
	rows, err := s.execer(ctx).QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list open intents: %w", err)
	}
	defer rows.Close()

	var out []*models.ClaimIntent
	for rows.Next() {
		in, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim intent: %w", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claim intents: %w", err)
	}
	return out, nil
}

func attemptArgs(a *models.IssuanceAttempt) []any {
	var credID uuid.NullUUID
	if a.CredentialID != nil {
		credID = uuid.NullUUID{UUID: uuid.UUID(*a.CredentialID), Valid: true}
	}
	return []any{
		a.RequestID,
		uuid.UUID(a.InstitutionID),
		uuid.UUID(a.IssuerID),
		a.Fingerprint,
		string(a.Stage),
		nullString(a.AssetPointer),
		nullString(a.MetadataPointer),
		nullString(a.MintTxRef),
		nullString(a.TokenID),
		credID,
		a.CreatedAt,
		a.UpdatedAt,
	}
}

const defaultLimit = 100

type row interface {
	Scan(dest ...any) error
}

func scanAttempt(r row) (*models.IssuanceAttempt, error) {
	var (
		institutionID, issuerID           uuid.UUID
		stage                             string
		assetPtr, metaPtr, mintRef, token sql.NullString
		credID                            uuid.NullUUID
		a                                 models.IssuanceAttempt
	)
	if err := r.Scan(
		&a.RequestID, &institutionID, &issuerID, &a.Fingerprint, &stage,
		&assetPtr, &metaPtr, &mintRef, &token, &credID,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.InstitutionID = id.InstitutionID(institutionID)
	a.IssuerID = id.PrincipalID(issuerID)
	a.Stage = models.IssuanceStage(stage)
	a.AssetPointer = assetPtr.String
	a.MetadataPointer = metaPtr.String
	a.MintTxRef = mintRef.String
	a.TokenID = token.String
	if credID.Valid {
		c := id.CredentialID(credID.UUID)
		a.CredentialID = &c
	}
	return &a, nil
}

func scanIntent(r row) (*models.ClaimIntent, error) {
	var (
		credID, claimantID uuid.UUID
		target, state      string
		txRef              sql.NullString
		in                 models.ClaimIntent
	)
	if err := r.Scan(&credID, &claimantID, &target, &txRef, &state, &in.CreatedAt, &in.UpdatedAt); err != nil {
		return nil, err
	}
	in.CredentialID = id.CredentialID(credID)
	in.ClaimantID = id.PrincipalID(claimantID)
	in.TargetAddress = common.HexToAddress(target)
	in.TransferTxRef = txRef.String
	in.State = models.ClaimIntentState(state)
	return &in, nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
