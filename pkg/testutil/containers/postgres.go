//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"verichain/migrations"
	id "verichain/pkg/domain"
)

// PostgresContainer wraps a testcontainers Postgres instance.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts Postgres and applies the goose migrations.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("verichain_test"),
		postgres.WithUsername("verichain"),
		postgres.WithPassword("verichain_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to postgres: %v", err)
	}

	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Shared by the Manager across suites; Ryuk removes it when the process exits.
	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// TruncateTables clears the given tables.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		_, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE")
		if err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// TruncateModuleTables empties every application table, children first.
func (p *PostgresContainer) TruncateModuleTables(ctx context.Context) error {
	return p.TruncateTables(ctx,
		"outbox",
		"claim_intents",
		"issuance_attempts",
		"credentials",
		"principals",
		"institutions",
	)
}

// CreateTestInstitution inserts an active institution and returns its ID.
func (p *PostgresContainer) CreateTestInstitution(ctx context.Context, t testing.TB) id.InstitutionID {
	t.Helper()
	institutionID := id.InstitutionID(uuid.New())
	_, err := p.DB.ExecContext(ctx, `
		INSERT INTO institutions (id, name, status, created_at, updated_at)
		VALUES ($1, $2, 'active', NOW(), NOW())
	`, uuid.UUID(institutionID), "Test Institution "+uuid.NewString())
	if err != nil {
		t.Fatalf("CreateTestInstitution: %v", err)
	}
	return institutionID
}

// CreateTestIssuer inserts an active issuer of institutionID and returns its ID.
func (p *PostgresContainer) CreateTestIssuer(ctx context.Context, t testing.TB, institutionID id.InstitutionID) id.PrincipalID {
	t.Helper()
	principalID := id.PrincipalID(uuid.New())
	_, err := p.DB.ExecContext(ctx, `
		INSERT INTO principals (id, email, full_name, password_hash, role, institution_id, status, created_at, updated_at)
		VALUES ($1, $2, 'Test Issuer', 'x', 'issuer', $3, 'active', NOW(), NOW())
	`, uuid.UUID(principalID), "issuer-"+uuid.NewString()+"@example.org", uuid.UUID(institutionID))
	if err != nil {
		t.Fatalf("CreateTestIssuer: %v", err)
	}
	return principalID
}

// CreateTestHolder inserts an active holder and returns its ID.
func (p *PostgresContainer) CreateTestHolder(ctx context.Context, t testing.TB) id.PrincipalID {
	t.Helper()
	principalID := id.PrincipalID(uuid.New())
	_, err := p.DB.ExecContext(ctx, `
		INSERT INTO principals (id, email, full_name, password_hash, role, status, created_at, updated_at)
		VALUES ($1, $2, 'Test Holder', 'x', 'holder', 'active', NOW(), NOW())
	`, uuid.UUID(principalID), "holder-"+uuid.NewString()+"@example.org")
	if err != nil {
		t.Fatalf("CreateTestHolder: %v", err)
	}
	return principalID
}
