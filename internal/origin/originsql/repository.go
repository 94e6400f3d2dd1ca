// Package originsql persists host configurations in PostgreSQL so that hosts
// added at runtime survive restarts.
package originsql

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openkcm/esignet-login/internal/origin"
	"github.com/openkcm/esignet-login/internal/serviceerr"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) List(ctx context.Context) ([]origin.HostConfig, error) {
	rows, err := r.db.Query(ctx, `SELECT origin, redirect_uri FROM hosts ORDER BY origin;`)
	if err != nil {
		return nil, fmt.Errorf("selecting hosts: %w", err)
	}

	hosts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (origin.HostConfig, error) {
		var h origin.HostConfig
		err := row.Scan(&h.Origin, &h.RedirectURI)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning rows: %w", err)
	}

	return hosts, nil
}

func (r *Repository) Upsert(ctx context.Context, host origin.HostConfig) error {
	if host.Origin == "" || host.RedirectURI == "" {
		return serviceerr.New(serviceerr.ErrInvalidArgument, "both origin and redirect URI must be non-empty")
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO hosts (origin, redirect_uri) VALUES ($1, $2)
			 ON CONFLICT (origin) DO UPDATE SET redirect_uri = EXCLUDED.redirect_uri, updated_at = now();`,
		host.Origin, host.RedirectURI,
	); err != nil {
		return fmt.Errorf("upserting host: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing tx: %w", err)
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, originURL string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `DELETE FROM hosts WHERE origin = $1;`, originURL)
	if err != nil {
		return fmt.Errorf("executing sql query: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return serviceerr.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing tx: %w", err)
	}

	return nil
}
