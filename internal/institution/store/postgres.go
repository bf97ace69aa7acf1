package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"verichain/internal/institution/models"
	id "verichain/pkg/domain"
	"verichain/pkg/platform/sentinel"
	txcontext "verichain/pkg/platform/tx"
)

// PostgresStore persists institutions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) txcontext.Executor {
	return txcontext.Conn(ctx, s.db)
}

// Create relies on the unique index over lower(name).
func (s *PostgresStore) Create(ctx context.Context, inst *models.Institution) error {
	query := `
		INSERT INTO institutions (id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(inst.ID), inst.Name, string(inst.Status), inst.CreatedAt, inst.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("institution name must be unique: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create institution: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, inst *models.Institution) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE institutions SET status = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(inst.ID), string(inst.Status), inst.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update institution: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update institution rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, institutionID id.InstitutionID) (*models.Institution, error) {
	inst, err := scanInstitution(s.execer(ctx).QueryRowContext(ctx,
		`SELECT id, name, status, created_at, updated_at FROM institutions WHERE id = $1`,
		uuid.UUID(institutionID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find institution by id: %w", err)
	}
	return inst, nil
}

func (s *PostgresStore) SearchByName(ctx context.Context, fragment string, limit int) ([]*models.Institution, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, name, status, created_at, updated_at
		FROM institutions
		WHERE position(lower($1) in lower(name)) > 0
		ORDER BY name
		LIMIT $2`,
		strings.TrimSpace(fragment), limit)
	if err != nil {
		return nil, fmt.Errorf("search institutions: %w", err)
	}
	defer rows.Close()

	var out []*models.Institution
	for rows.Next() {
		inst, err := scanInstitution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan institution: %w", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate institutions: %w", err)
	}
	return out, nil
}

const defaultLimit = 100

type institutionRow interface {
	Scan(dest ...any) error
}

func scanInstitution(row institutionRow) (*models.Institution, error) {
	var (
		instID uuid.UUID
		status string
		inst   models.Institution
	)
	if err := row.Scan(&instID, &inst.Name, &status, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
		return nil, err
	}
	inst.ID = id.InstitutionID(instID)
	inst.Status = models.Status(status)
	return &inst, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
