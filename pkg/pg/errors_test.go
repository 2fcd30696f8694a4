package pg_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/hostkit/pkg/pg"
)

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	wrap := func(code string) error {
		return fmt.Errorf("query: %w", &pgconn.PgError{Code: code, ConstraintName: "subscriptions_one_current_per_user"})
	}

	assert.True(t, pg.IsNotFoundError(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	assert.False(t, pg.IsNotFoundError(nil))
	assert.True(t, pg.IsTxClosedError(pgx.ErrTxClosed))

	assert.True(t, pg.IsDuplicateKeyError(wrap("23505")))
	assert.False(t, pg.IsDuplicateKeyError(wrap("23503")))
	assert.True(t, pg.IsForeignKeyViolationError(wrap("23503")))
	assert.True(t, pg.IsCheckViolationError(wrap("23514")))

	for _, code := range []string{"40001", "40P01", "55P03"} {
		assert.True(t, pg.IsRetryableError(wrap(code)), code)
	}
	assert.False(t, pg.IsRetryableError(wrap("23505")))
	assert.False(t, pg.IsRetryableError(errors.New("plain")))

	assert.Equal(t, "subscriptions_one_current_per_user", pg.ConstraintName(wrap("23505")))
	assert.Empty(t, pg.ConstraintName(errors.New("plain")))
}

func TestConnectRejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := pg.Connect(t.Context(), pg.Config{})
	assert.ErrorIs(t, err, pg.ErrEmptyConnectionString)

	_, err = pg.Connect(t.Context(), pg.Config{ConnectionString: "postgres://%zz"})
	assert.ErrorIs(t, err, pg.ErrFailedToParseDBConfig)
}
