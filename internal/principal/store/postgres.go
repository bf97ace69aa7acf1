package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"verichain/internal/authz"
	"verichain/internal/principal/models"
	id "verichain/pkg/domain"
	"verichain/pkg/platform/sentinel"
	txcontext "verichain/pkg/platform/tx"
)

const principalColumns = `id, email, full_name, password_hash, role, institution_id, status, custody_address, created_at, updated_at`

// PostgresStore persists principals in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) txcontext.Executor {
	return txcontext.Conn(ctx, s.db)
}

func (s *PostgresStore) Create(ctx context.Context, p *models.Principal) error {
	query := `INSERT INTO principals (` + principalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(p.ID),
		strings.ToLower(p.Email),
		p.FullName,
		p.PasswordHash,
		string(p.Role),
		nullInstitution(p.InstitutionID),
		string(p.Status),
		nullAddress(p.CustodyAddress),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("principal already exists: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create principal: %w", err)
	}
	return nil
}

// Update writes the mutable fields. The partial unique index on
// custody_address rejects an address held by another principal.
func (s *PostgresStore) Update(ctx context.Context, p *models.Principal) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE principals SET status = $2, custody_address = $3, updated_at = $4 WHERE id = $1`,
		uuid.UUID(p.ID), string(p.Status), nullAddress(p.CustodyAddress), p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("custody address already linked: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("update principal: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update principal rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, principalID id.PrincipalID) (*models.Principal, error) {
	p, err := scanPrincipal(s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE id = $1`, uuid.UUID(principalID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find principal by id: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Principal, error) {
	p, err := scanPrincipal(s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find principal by email: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListByInstitution(ctx context.Context, institutionID id.InstitutionID, role authz.Role) ([]*models.Principal, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+principalColumns+` FROM principals
		WHERE institution_id = $1 AND role = $2
		ORDER BY created_at ASC`,
		uuid.UUID(institutionID), string(role))
	if err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}
	defer rows.Close()

	var out []*models.Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan principal: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate principals: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, principalID id.PrincipalID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM principals WHERE id = $1`, uuid.UUID(principalID))
	if err != nil {
		return fmt.Errorf("delete principal: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete principal rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row rowScanner) (*models.Principal, error) {
	var (
		p           models.Principal
		principalID uuid.UUID
		role        string
		status      string
		institution uuid.NullUUID
		address     sql.NullString
	)
	if err := row.Scan(
		&principalID,
		&p.Email,
		&p.FullName,
		&p.PasswordHash,
		&role,
		&institution,
		&status,
		&address,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.ID = id.PrincipalID(principalID)
	p.Role = authz.Role(role)
	p.Status = models.Status(status)
	if institution.Valid {
		inst := id.InstitutionID(institution.UUID)
		p.InstitutionID = &inst
	}
	if address.Valid {
		addr := common.HexToAddress(address.String)
		p.CustodyAddress = &addr
	}
	return &p, nil
}

func nullInstitution(inst *id.InstitutionID) uuid.NullUUID {
	if inst == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*inst), Valid: true}
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
