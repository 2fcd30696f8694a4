package pgstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/hostkit/pkg/billing"
)

// PropertyCounter counts rows of table owned by a user, where ownerColumn
// holds the user ID. The properties table belongs to the host inventory
// service and is not part of the billing schema.
func PropertyCounter(pool *pgxpool.Pool, table, ownerColumn string) billing.PropertyCounterFunc {
	query := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s = $1",
		pgx.Identifier{table}.Sanitize(), pgx.Identifier{ownerColumn}.Sanitize())
	return func(ctx context.Context, userID uuid.UUID) (int, error) {
		var n int
		if err := pool.QueryRow(ctx, query, userID).Scan(&n); err != nil {
			return 0, fmt.Errorf("count properties: %w", err)
		}
		return n, nil
	}
}
