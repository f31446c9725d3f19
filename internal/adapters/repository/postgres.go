package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"github.com/okian/oralscan/internal/domain/model"
	"github.com/okian/oralscan/pkg/logger"
)

const pgUniqueViolation = "23505"

// OpenPostgres opens and pings a pgx-backed pool.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// PostgresStore keeps records in the predictions table.
type PostgresStore struct {
	DB     *sql.DB
	logger logger.Logger
}

// NewPostgresStore creates a store over db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db, logger: logger.Get().Named("postgres-store")}
}

// EnsureSchema creates the predictions table and its identity index.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, q := range []string{`
create table if not exists predictions (
    id          text primary key,
    identity    text not null,
    name        text not null,
    confidence  real not null,
    description text not null,
    treatment   text not null,
    image_url   text not null,
    created_at  text not null,
    created_ts  timestamptz not null
)`,
		`create index if not exists predictions_identity_created_idx on predictions (identity, created_at desc)`,
	} {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure predictions schema: %w", err)
		}
	}
	return nil
}

// Put inserts rec.
func (s *PostgresStore) Put(ctx context.Context, rec model.PredictionRecord) error {
	if rec.ID == "" || rec.Identity == "" {
		return fmt.Errorf("%w: id and identity are required", ErrInvalidRecord)
	}
	const q = `
insert into predictions (id, identity, name, confidence, description, treatment, image_url, created_at, created_ts)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.DB.ExecContext(ctx, q,
		rec.ID, rec.Identity, rec.Name, rec.Confidence, rec.Description, rec.Treatment,
		rec.ImageURL, model.CanonicalTime(rec.CreatedAt), rec.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, rec.ID)
	}
	if err != nil {
		return fmt.Errorf("insert prediction %s: %w", rec.ID, err)
	}
	return nil
}

// ListByIdentity selects identity's records, newest first.
func (s *PostgresStore) ListByIdentity(ctx context.Context, identity string) ([]model.PredictionRecord, error) {
	const q = `
select id, identity, name, confidence, description, treatment, image_url, created_at
from predictions
where identity = $1
order by created_at desc, id`
	rows, err := s.DB.QueryContext(ctx, q, identity)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]model.PredictionRecord, 0)
	for rows.Next() {
		var (
			rec     model.PredictionRecord
			created string
		)
		if err := rows.Scan(&rec.ID, &rec.Identity, &rec.Name, &rec.Confidence,
			&rec.Description, &rec.Treatment, &rec.ImageURL, &created); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		if rec.CreatedAt, err = model.ParseCanonicalTime(created); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate predictions: %w", err)
	}
	return out, nil
}

// Count returns the table row count. Failures are logged and count as 0.
func (s *PostgresStore) Count(ctx context.Context) int {
	var n int
	if err := s.DB.QueryRowContext(ctx, `select count(*) from predictions`).Scan(&n); err != nil {
		s.logger.Warn(ctx, "count predictions failed", logger.Error(err))
		return 0
	}
	return n
}
