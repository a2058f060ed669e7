// Package testutil provides testing utilities for the pharmacy backend.
// It includes a testcontainers PostgreSQL wrapper, sqlmock factories, and
// a shared integration test suite.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string // Optional: defaults to postgres:15-alpine
}

// DefaultPostgresConfig returns sensible defaults for test containers
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "pharmacy_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:15-alpine",
	}
}

// NewPostgresContainer creates a new PostgreSQL test container.
//
// Usage:
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    container, err := testutil.NewPostgresContainer(ctx, testutil.DefaultPostgresConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer container.Terminate(ctx)
//
//	    code := m.Run()
//	    os.Exit(code)
//	}
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	if cfg.Image == "" {
		cfg.Image = "postgres:15-alpine"
	}
	if cfg.Database == "" {
		cfg.Database = "pharmacy_test"
	}
	if cfg.Username == "" {
		cfg.Username = "test"
	}
	if cfg.Password == "" {
		cfg.Password = "test"
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
	}, nil
}

// Connect returns a sqlx.DB connection to the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}

// CreatePharmacySchema creates the pharmacy tables. The expression-based
// unique indexes treat a NULL chemical_name/dose_volume as '' so that two
// batches differing only in "absent vs absent" collapse to one identity,
// which is what the receipt upsert's ON CONFLICT clause targets.
func (c *PostgresContainer) CreatePharmacySchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS pharmacy_stock (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			medicine_form VARCHAR(50) NOT NULL,
			brand_name VARCHAR(255) NOT NULL,
			chemical_name VARCHAR(255),
			dose_volume VARCHAR(100),
			expiry_date DATE NOT NULL,
			quantity INTEGER NOT NULL,
			total_quantity INTEGER NOT NULL,
			last_received_date DATE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT pharmacy_stock_quantity_non_negative CHECK (quantity >= 0),
			CONSTRAINT pharmacy_stock_total_quantity CHECK (total_quantity >= quantity)
		);

		CREATE UNIQUE INDEX IF NOT EXISTS pharmacy_stock_identity
			ON pharmacy_stock (medicine_form, brand_name, (COALESCE(chemical_name, '')), (COALESCE(dose_volume, '')), expiry_date);

		CREATE TABLE IF NOT EXISTS pharmacy_stock_history (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			entry_kind VARCHAR(20) NOT NULL,
			medicine_form VARCHAR(50) NOT NULL,
			brand_name VARCHAR(255) NOT NULL,
			chemical_name VARCHAR(255),
			dose_volume VARCHAR(100),
			expiry_date DATE NOT NULL,
			quantity INTEGER NOT NULL,
			entry_date DATE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT pharmacy_stock_history_entry_kind_valid CHECK (entry_kind IN ('received', 'archived')),
			CONSTRAINT pharmacy_stock_history_quantity_positive CHECK (quantity > 0)
		);

		CREATE TABLE IF NOT EXISTS pharmacy_consumptions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			kind VARCHAR(20) NOT NULL,
			medicine_form VARCHAR(50) NOT NULL,
			brand_name VARCHAR(255) NOT NULL,
			chemical_name VARCHAR(255),
			dose_volume VARCHAR(100),
			expiry_date DATE NOT NULL,
			quantity INTEGER NOT NULL,
			consumed_date DATE NOT NULL,
			reason TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT pharmacy_consumptions_kind_valid CHECK (kind IN ('discard', 'ward', 'ambulance')),
			CONSTRAINT pharmacy_consumptions_quantity_positive CHECK (quantity > 0)
		);

		CREATE TABLE IF NOT EXISTS pharmacy_daily_usage (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			medicine_form VARCHAR(50) NOT NULL,
			brand_name VARCHAR(255) NOT NULL,
			chemical_name VARCHAR(255),
			dose_volume VARCHAR(100),
			expiry_date DATE NOT NULL,
			usage_date DATE NOT NULL,
			quantity INTEGER NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT pharmacy_daily_usage_quantity_positive CHECK (quantity > 0)
		);

		CREATE UNIQUE INDEX IF NOT EXISTS pharmacy_daily_usage_identity_date
			ON pharmacy_daily_usage (medicine_form, brand_name, (COALESCE(chemical_name, '')), (COALESCE(dose_volume, '')), expiry_date, usage_date);

		CREATE TABLE IF NOT EXISTS pharmacy_expiry_register (
			id UUID PRIMARY KEY,
			medicine_form VARCHAR(50) NOT NULL,
			brand_name VARCHAR(255) NOT NULL,
			chemical_name VARCHAR(255),
			dose_volume VARCHAR(100),
			expiry_date DATE NOT NULL,
			quantity_at_flag INTEGER NOT NULL,
			total_quantity INTEGER NOT NULL,
			flagged_date DATE NOT NULL,
			removed_date DATE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT pharmacy_expiry_register_quantity_non_negative CHECK (quantity_at_flag >= 0)
		);

		CREATE TABLE IF NOT EXISTS pharmacy_medicines (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			medicine_form VARCHAR(50) NOT NULL,
			brand_name VARCHAR(255) NOT NULL,
			chemical_name VARCHAR(255),
			dose_volume VARCHAR(100),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE UNIQUE INDEX IF NOT EXISTS pharmacy_medicines_identity
			ON pharmacy_medicines (brand_name, (COALESCE(chemical_name, '')), (COALESCE(dose_volume, '')));
	`

	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create pharmacy schema: %w", err)
	}

	return nil
}
