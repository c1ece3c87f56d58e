// Package pg bootstraps the PostgreSQL connection used by the reminder store.
//
// Connect opens a pgx/v5 pool with retry, Migrate applies goose migrations
// from an embedded filesystem through the pgx stdlib bridge, and Healthcheck
// returns a check func for the readiness endpoint.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, log); err != nil {
//	    return err
//	}
//
// RunGoose is exported for stores that sit on other database/sql drivers,
// such as the SQLite store.
package pg
