package migrations

import (
	"context"
	"fmt"

	"momentum-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies the embedded schema in lexical order and
// returns the number of files applied. Every statement is idempotent.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) (int, error) {
	files, err := load(PostgresFS, "postgres")
	if err != nil {
		return 0, err
	}

	for _, m := range files {
		if _, err := pool.Exec(ctx, m.SQL); err != nil {
			return 0, fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
	}
	return len(files), nil
}
