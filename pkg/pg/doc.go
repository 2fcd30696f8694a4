// Package pg wires PostgreSQL into hostkit services through the pgx/v5 driver.
//
// It covers the bootstrap path only: Connect opens a *pgxpool.Pool with
// retries, Migrate applies goose migrations from an fs.FS (usually an
// embed.FS owned by the store package), Healthcheck exposes a ping for
// readiness probes, and the Is* helpers classify *pgconn.PgError codes so
// stores can map them onto domain errors.
//
// Typical wiring:
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//	if err := pg.Migrate(ctx, pool, cfg, pgstore.Migrations, log); err != nil {
//		return err
//	}
package pg
