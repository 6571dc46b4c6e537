package postgresql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/Doot-Foundation/example/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

const insertPrice = `INSERT INTO prices (token, source, price, decimals, signature, oracle, aggregated_at, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`

const selectLatestPrice = `SELECT id, token, source, price, decimals, signature, oracle, aggregated_at, fetched_at
FROM prices
WHERE token = $1
ORDER BY fetched_at DESC, id DESC
LIMIT 1`

// PostgresOutputHandler persists price records to PostgreSQL.
type PostgresOutputHandler struct {
	db *sql.DB
}

// NewPostgresOutputHandler connects to connString and applies the embedded migrations.
func NewPostgresOutputHandler(ctx context.Context, connString string) (*PostgresOutputHandler, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return NewWithDB(db), nil
}

// NewWithDB wraps an already-migrated database handle.
func NewWithDB(db *sql.DB) *PostgresOutputHandler {
	return &PostgresOutputHandler{db: db}
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Debug("Database schema is up to date")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, _, _ := m.Version()
	slog.Info("Database schema migrated", "version", version)
	return nil
}

// WritePrice inserts record and sets its ID.
func (h *PostgresOutputHandler) WritePrice(ctx context.Context, record *models.PriceRecord) error {
	err := h.db.QueryRowContext(ctx, insertPrice,
		record.Token,
		string(record.Source),
		record.Price,
		record.Decimals,
		record.Signature,
		record.Oracle,
		record.Aggregated,
		record.FetchedAt,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to insert price for %s: %w", record.Token, err)
	}
	return nil
}

func (h *PostgresOutputHandler) GetLatestPrice(ctx context.Context, token string) (*models.PriceRecord, error) {
	var (
		record models.PriceRecord
		source string
	)
	err := h.db.QueryRowContext(ctx, selectLatestPrice, models.NormalizeToken(token)).Scan(
		&record.ID,
		&record.Token,
		&source,
		&record.Price,
		&record.Decimals,
		&record.Signature,
		&record.Oracle,
		&record.Aggregated,
		&record.FetchedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest price for %s: %w", token, err)
	}
	record.Source = models.Source(source)
	return &record, nil
}

func (h *PostgresOutputHandler) Close() error {
	slog.Info("Closing PostgreSQL connection")
	return h.db.Close()
}
