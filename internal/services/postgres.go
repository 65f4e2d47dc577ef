package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fairdice-backend/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledgers (
	address           TEXT PRIMARY KEY,
	available_balance NUMERIC(78, 0) NOT NULL CHECK (available_balance >= 0),
	deposited_total   NUMERIC(78, 0) NOT NULL,
	withdrawn_total   NUMERIC(78, 0) NOT NULL,
	version           BIGINT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_events (
	address    TEXT NOT NULL REFERENCES ledgers (address),
	seq        BIGINT NOT NULL,
	id         TEXT NOT NULL UNIQUE,
	kind       TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (address, seq)
);

CREATE TABLE IF NOT EXISTS seed_commitments (
	hash       TEXT PRIMARY KEY,
	secret     TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
`

// PostgresStore keeps ledgers and seed commitments in Postgres. The ledger
// row is locked with SELECT ... FOR UPDATE for the duration of an append.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresStore{db: pool}, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Load(ctx context.Context, address string) (*models.UserLedger, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	ledger, err := loadLedger(ctx, tx, address)
	if err != nil {
		return nil, err
	}
	return ledger, tx.Commit(ctx)
}

func loadLedger(ctx context.Context, q pgx.Tx, address string) (*models.UserLedger, error) {
	var balance, deposited, withdrawn string
	ledger := models.NewUserLedger(address)

	err := q.QueryRow(ctx, `
		SELECT available_balance::text, deposited_total::text, withdrawn_total::text,
		       version, created_at, updated_at
		FROM ledgers WHERE address = $1`, address,
	).Scan(&balance, &deposited, &withdrawn, &ledger.Version, &ledger.CreatedAt, &ledger.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger query failed: %w", err)
	}

	for dst, src := range map[*models.Amount]string{
		&ledger.AvailableBalance: balance,
		&ledger.DepositedTotal:   deposited,
		&ledger.WithdrawnTotal:   withdrawn,
	} {
		if *dst, err = models.ParseAmount(src); err != nil {
			return nil, fmt.Errorf("corrupt ledger amount for %s: %w", address, err)
		}
	}

	rows, err := q.Query(ctx,
		"SELECT payload::text FROM ledger_events WHERE address = $1 ORDER BY seq",
		address)
	if err != nil {
		return nil, fmt.Errorf("events query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var ev models.LedgerEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		ledger.Events = append(ledger.Events, ev)
	}
	return ledger, rows.Err()
}

func (s *PostgresStore) Append(ctx context.Context, ledger *models.UserLedger, ev models.LedgerEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	expected := ledger.Version
	var current uint64
	err = tx.QueryRow(ctx, "SELECT version FROM ledgers WHERE address = $1 FOR UPDATE", ledger.Address).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return mapPgError(ledger.Address, expected, fmt.Errorf("lock acquisition failed: %w", err))
	}
	if current != expected {
		return writeConflict(ledger.Address, expected, current)
	}

	if expected == 0 {
		_, err = tx.Exec(ctx, `
			INSERT INTO ledgers (address, available_balance, deposited_total, withdrawn_total, version, created_at, updated_at)
			VALUES ($1, $2::text::numeric, $3::text::numeric, $4::text::numeric, 1, $5, $6)`,
			ledger.Address, ledger.AvailableBalance.String(), ledger.DepositedTotal.String(),
			ledger.WithdrawnTotal.String(), ledger.CreatedAt, ledger.UpdatedAt)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE ledgers
			SET available_balance = $2::text::numeric, deposited_total = $3::text::numeric,
			    withdrawn_total = $4::text::numeric, version = version + 1, updated_at = $5
			WHERE address = $1`,
			ledger.Address, ledger.AvailableBalance.String(), ledger.DepositedTotal.String(),
			ledger.WithdrawnTotal.String(), ledger.UpdatedAt)
	}
	if err != nil {
		return mapPgError(ledger.Address, expected, fmt.Errorf("ledger write failed: %w", err))
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ledger_events (address, seq, id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, $5::text::jsonb, $6)`,
		ledger.Address, ev.Seq, ev.ID, string(ev.Kind), string(payload), ev.Timestamp)
	if err != nil {
		return mapPgError(ledger.Address, expected, fmt.Errorf("event insert failed: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(ledger.Address, expected, fmt.Errorf("commit failed: %w", err))
	}
	ledger.Version = expected + 1
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.UserLedger, error) {
	rows, err := s.db.Query(ctx, "SELECT address FROM ledgers ORDER BY address")
	if err != nil {
		return nil, fmt.Errorf("list ledgers: %w", err)
	}
	addresses, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list ledgers: %w", err)
	}

	ledgers := make([]*models.UserLedger, 0, len(addresses))
	for _, address := range addresses {
		l, err := s.Load(ctx, address)
		if err != nil {
			return nil, err
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, nil
}

func (s *PostgresStore) Put(ctx context.Context, hash, secret string, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO seed_commitments (hash, secret, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (hash) DO UPDATE SET secret = EXCLUDED.secret, expires_at = EXCLUDED.expires_at`,
		hash, secret, time.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("store commitment: %w", err)
	}
	return nil
}

// Take deletes and returns in one statement, so concurrent callers cannot
// both receive the secret.
func (s *PostgresStore) Take(ctx context.Context, hash string) (string, error) {
	var secret string
	var expiresAt time.Time
	err := s.db.QueryRow(ctx,
		"DELETE FROM seed_commitments WHERE hash = $1 RETURNING secret, expires_at",
		hash).Scan(&secret, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", commitmentNotFound(hash)
	}
	if err != nil {
		return "", fmt.Errorf("take commitment: %w", err)
	}
	if !time.Now().Before(expiresAt) {
		return "", commitmentNotFound(hash)
	}
	return secret, nil
}

func (s *PostgresStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, "DELETE FROM seed_commitments WHERE expires_at <= $1", now)
	if err != nil {
		return 0, fmt.Errorf("sweep commitments: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// mapPgError turns unique violations and serialization failures into write
// conflicts so the ledger retries them.
func mapPgError(address string, expected uint64, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001":
			return writeConflict(address, expected, expected+1)
		}
	}
	return err
}
