package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"verichain/internal/credential/models"
	id "verichain/pkg/domain"
	"verichain/pkg/platform/sentinel"
	txcontext "verichain/pkg/platform/tx"
)

// PostgresStore persists credentials in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) txcontext.Executor {
	return txcontext.Conn(ctx, s.db)
}

const credentialColumns = `
	id, public_id, institution_id, issuer_id,
	recipient_name, recipient_id, program, document_type, issue_date,
	serial_fingerprint, serial_hash, secret_hash,
	asset_pointer, metadata_pointer, token_id, mint_tx_ref,
	status, holder_id, holder_address, transfer_tx_ref, issued_at, claimed_at`

// Insert persists an issued credential. The unique constraints on
// (institution_id, serial_fingerprint), public_id and token_id surface as
// sentinel.ErrAlreadyUsed.
func (s *PostgresStore) Insert(ctx context.Context, c *models.Credential) error {
	if c == nil {
		return fmt.Errorf("credential is required")
	}
	query := `
		INSERT INTO credentials (` + credentialColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(c.ID),
		uuid.UUID(c.PublicID),
		uuid.UUID(c.InstitutionID),
		uuid.UUID(c.IssuerID),
		c.Payload.RecipientName,
		nullString(c.Payload.RecipientID),
		nullString(c.Payload.Program),
		c.Payload.DocumentType,
		c.Payload.IssueDate,
		c.SerialFingerprint,
		c.SerialHash,
		c.SecretHash,
		c.AssetPointer,
		c.MetadataPointer,
		c.TokenID,
		c.MintTxRef,
		string(c.Status),
		nullHolder(c.HolderID),
		nullAddress(c.HolderAddress),
		nullString(c.TransferTxRef),
		c.IssuedAt,
		c.ClaimedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("credential already exists: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, credID id.CredentialID) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = $1`
	c, err := scanCredential(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(credID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential by id: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) FindByPublicID(ctx context.Context, publicID id.PublicID) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE public_id = $1`
	c, err := scanCredential(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(publicID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential by public id: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) SerialExists(ctx context.Context, institutionID id.InstitutionID, fingerprint string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM credentials WHERE institution_id = $1 AND serial_fingerprint = $2)`
	if err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(institutionID), fingerprint).Scan(&exists); err != nil {
		return false, fmt.Errorf("check serial: %w", err)
	}
	return exists, nil
}

// CommitClaim is the status-guarded transition keyed by the immutable
// credential id. Zero affected rows means another claim already won.
func (s *PostgresStore) CommitClaim(ctx context.Context, c *models.Credential) error {
	if c == nil || c.HolderID == nil || c.HolderAddress == nil || c.ClaimedAt == nil {
		return fmt.Errorf("claimed credential is incomplete")
	}
	query := `
		UPDATE credentials
		SET status = $2,
			holder_id = $3,
			holder_address = $4,
			transfer_tx_ref = $5,
			claimed_at = $6
		WHERE id = $1 AND status = 'issued'
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(c.ID),
		string(models.StatusClaimed),
		uuid.UUID(*c.HolderID),
		c.HolderAddress.Hex(),
		c.TransferTxRef,
		*c.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("commit claim: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("commit claim rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("credential %s is not issued: %w", c.ID, sentinel.ErrInvalidState)
	}
	return nil
}

func (s *PostgresStore) SearchByRecipient(ctx context.Context, name string, institutions []id.InstitutionID, limit int) ([]*models.Credential, error) {
	args := []any{strings.TrimSpace(name)}
	query := `SELECT ` + credentialColumns + ` FROM credentials
		WHERE position(lower($1) in lower(recipient_name)) > 0`
	if len(institutions) > 0 {
		placeholders := make([]string, len(institutions))
		for i, inst := range institutions {
			args = append(args, uuid.UUID(inst))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		query += ` AND institution_id IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY issued_at DESC, id`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search credentials: %w", err)
	}
	defer rows.Close()

	var out []*models.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindLatestByRecipientID(ctx context.Context, recipientID string) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials
		WHERE recipient_id = $1
		ORDER BY issued_at DESC
		LIMIT 1`
	c, err := scanCredential(s.execer(ctx).QueryRowContext(ctx, query, recipientID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential by recipient id: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) StatsByInstitution(ctx context.Context, institutionID id.InstitutionID) (*models.IssuerStats, error) {
	stats := &models.IssuerStats{InstitutionID: institutionID}
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'claimed')
		FROM credentials
		WHERE institution_id = $1
	`
	if err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(institutionID)).Scan(&stats.Issued, &stats.Claimed); err != nil {
		return nil, fmt.Errorf("credential stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresStore) CountByIssuer(ctx context.Context, issuerID id.PrincipalID) (int, error) {
	var count int
	if err := s.execer(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials WHERE issuer_id = $1`, uuid.UUID(issuerID)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count credentials by issuer: %w", err)
	}
	return count, nil
}

type credentialRow interface {
	Scan(dest ...any) error
}

func scanCredential(row credentialRow) (*models.Credential, error) {
	var (
		credID, publicID, institutionID, issuerID uuid.UUID
		recipientID, program                      sql.NullString
		holderID                                  uuid.NullUUID
		holderAddress, transferTxRef              sql.NullString
		claimedAt                                 sql.NullTime
		status                                    string
		c                                         models.Credential
	)
	if err := row.Scan(
		&credID, &publicID, &institutionID, &issuerID,
		&c.Payload.RecipientName, &recipientID, &program, &c.Payload.DocumentType, &c.Payload.IssueDate,
		&c.SerialFingerprint, &c.SerialHash, &c.SecretHash,
		&c.AssetPointer, &c.MetadataPointer, &c.TokenID, &c.MintTxRef,
		&status, &holderID, &holderAddress, &transferTxRef, &c.IssuedAt, &claimedAt,
	); err != nil {
		return nil, err
	}

	c.ID = id.CredentialID(credID)
	c.PublicID = id.PublicID(publicID)
	c.InstitutionID = id.InstitutionID(institutionID)
	c.IssuerID = id.PrincipalID(issuerID)
	c.Payload.RecipientID = recipientID.String
	c.Payload.Program = program.String
	c.Status = models.Status(status)
	c.TransferTxRef = transferTxRef.String
	if holderID.Valid {
		h := id.PrincipalID(holderID.UUID)
		c.HolderID = &h
	}
	if holderAddress.Valid {
		a := common.HexToAddress(holderAddress.String)
		c.HolderAddress = &a
	}
	if claimedAt.Valid {
		t := claimedAt.Time
		c.ClaimedAt = &t
	}
	return &c, nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullHolder(holder *id.PrincipalID) uuid.NullUUID {
	if holder == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*holder), Valid: true}
}

func nullAddress(addr *id.Address) sql.NullString {
	if addr == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: addr.Hex(), Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
