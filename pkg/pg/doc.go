// Package pg provides utilities for interacting with PostgreSQL using the
// pgx/v5 driver: connection pooling with retry, goose schema migrations,
// health checks, and common error classification helpers.
//
// The entitlement store keeps its rows here, so the service boots by
// connecting, migrating, and handing the pool to the store:
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    panic(err)
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, slog.Default()); err != nil {
//	    panic(err)
//	}
//
//	store := entitlement.NewPostgresStore(pool)
//
// Configuration comes from environment variables; see the field tags on
// Config for names and defaults. Error helpers such as IsNotFoundError and
// IsDuplicateKeyError unwrap pgx and pgconn errors so business logic never
// matches on SQLSTATE strings directly.
package pg
