package business

import (
	"context"
	"fmt"
	"strings"

	"github.com/XSAM/otelsql"
	"github.com/pressly/goose/v3"
	"github.com/samber/oops"

	// Register pgx driver
	_ "github.com/jackc/pgx/v5/stdlib"

	slogctx "github.com/veqryn/slog-context"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/openkcm/esignet-login/internal/config"
	migrations "github.com/openkcm/esignet-login/sql"
)

const filePrefix = "file://"

// MigrateMain applies the host table migrations
func MigrateMain(ctx context.Context, cfg *config.Config) error {
	const dialect = "pgx"
	dbSystemName := semconv.DBSystemNamePostgreSQL

	connStr, err := config.MakeConnStr(cfg.Database)
	if err != nil {
		return fmt.Errorf("making connection string from config: %w", err)
	}

	db, err := otelsql.Open(dialect, connStr, otelsql.WithAttributes(dbSystemName))
	if err != nil {
		return oops.In("main").Wrapf(err, "opening DB connection")
	}
	defer db.Close()

	reg, err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(dbSystemName))
	if err != nil {
		return fmt.Errorf("registering db stats metrics: %w", err)
	}

	defer func() {
		err = reg.Unregister()
		if err != nil {
			slogctx.Error(ctx, "failed to unregister db stats metrics", "error", err)
		}
	}()

	dir := migrationDir(cfg.Migrate.Source)
	if dir == "." {
		goose.SetBaseFS(migrations.FS)
	} else {
		goose.SetBaseFS(nil)
	}

	err = goose.SetDialect(dialect)
	if err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	slogctx.Info(ctx, "Applying migrations", "source", dir)

	err = goose.UpContext(ctx, db, dir)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}

// migrationDir returns the directory of a file:// source, or "." for the
// migrations embedded in the binary.
func migrationDir(source string) string {
	if path, ok := strings.CutPrefix(source, filePrefix); ok && path != "" {
		return path
	}

	return "."
}
