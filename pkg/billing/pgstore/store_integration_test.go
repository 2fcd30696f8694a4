//go:build integration

package pgstore_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dmitrymomot/hostkit/pkg/billing"
	"github.com/dmitrymomot/hostkit/pkg/billing/pgstore"
	"github.com/dmitrymomot/hostkit/pkg/logger"
	"github.com/dmitrymomot/hostkit/pkg/pg"
)

func setupStore(t *testing.T) (*pgstore.Store, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("billing_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := pg.Config{
		ConnectionString: connStr,
		MaxOpenConns:     10,
		RetryAttempts:    3,
		RetryInterval:    time.Second,
		MigrationsDir:    pgstore.MigrationsDir,
		MigrationsTable:  "schema_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	log := logger.New(logger.WithLevel(slog.LevelWarn))
	require.NoError(t, pg.Migrate(ctx, pool, cfg, pgstore.Migrations, log))
	require.NoError(t, pg.Healthcheck(pool)(ctx))

	return pgstore.New(pool), pool
}

func TestStoreIntegration(t *testing.T) {
	store, pool := setupStore(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	svc := billing.NewService(billing.DefaultCatalog(), store,
		billing.WithClock(func() time.Time { return now }),
	)

	t.Run("checkout and confirm", func(t *testing.T) {
		userID := uuid.New()
		res, err := svc.Checkout(ctx, userID, billing.CheckoutRequest{
			PlanChangeRequest: billing.PlanChangeRequest{TargetPlan: billing.PlanHost, TargetPeriod: "semiannual"},
		})
		require.NoError(t, err)
		require.NotNil(t, res.Invoice)

		sub, err := svc.ConfirmPayment(ctx, res.Invoice.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), sub.Version)

		got, err := store.CurrentSubscription(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, billing.PeriodSemiannual, got.BillingPeriod)
		assert.True(t, got.EndDate.Equal(now.AddDate(0, 6, 0)))

		last, err := store.LastPaidInvoice(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.EUR(15660), last.FinalAmount)
		assert.Equal(t, billing.InvoicePaid, last.Status)

		paid, err := store.PaidInvoices(ctx, sub.ID, got.StartDate)
		require.NoError(t, err)
		require.Len(t, paid, 1)
		assert.Equal(t, last.ID, paid[0].ID)

		paid, err = store.PaidInvoices(ctx, sub.ID, got.StartDate.Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, paid)

		_, err = svc.ConfirmPayment(ctx, res.Invoice.ID)
		assert.ErrorIs(t, err, billing.ErrInvoiceNotPending)
	})

	t.Run("version conflict", func(t *testing.T) {
		userID := uuid.New()
		res, err := svc.Checkout(ctx, userID, billing.CheckoutRequest{
			PlanChangeRequest: billing.PlanChangeRequest{TargetPlan: billing.PlanBasic, TargetPeriod: "monthly"},
		})
		require.NoError(t, err)
		_, err = svc.ConfirmPayment(ctx, res.Invoice.ID)
		require.NoError(t, err)

		stale, err := store.CurrentSubscription(ctx, userID)
		require.NoError(t, err)

		err = store.WithTx(ctx, func(ctx context.Context, tx billing.Tx) error {
			sub, err := tx.LockSubscription(ctx, userID)
			if err != nil {
				return err
			}
			sub.Status = billing.StatusCancelled
			return tx.SaveSubscription(ctx, sub)
		})
		require.NoError(t, err)

		err = store.WithTx(ctx, func(ctx context.Context, tx billing.Tx) error {
			return tx.SaveSubscription(ctx, stale)
		})
		assert.ErrorIs(t, err, billing.ErrSubscriptionConflict)
	})

	t.Run("concurrent redemption of the last coupon use", func(t *testing.T) {
		maxUses := 1
		coupon := &billing.Coupon{
			ID:        uuid.New(),
			Code:      "LAST-" + uuid.NewString()[:8],
			Type:      billing.CouponPercentage,
			Value:     20,
			ValidFrom: now.Add(-time.Hour),
			MaxUses:   &maxUses,
			Active:    true,
		}
		require.NoError(t, store.CreateCoupon(ctx, coupon))

		invoices := make([]uuid.UUID, 2)
		for i := range invoices {
			res, err := svc.Checkout(ctx, uuid.New(), billing.CheckoutRequest{
				PlanChangeRequest: billing.PlanChangeRequest{TargetPlan: billing.PlanHost, TargetPeriod: "monthly"},
				CouponCode:        coupon.Code,
			})
			require.NoError(t, err)
			require.NotNil(t, res.Invoice)
			invoices[i] = res.Invoice.ID
		}

		errs := make([]error, len(invoices))
		var wg sync.WaitGroup
		for i, id := range invoices {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = svc.ConfirmPayment(ctx, id)
			}()
		}
		wg.Wait()

		var ok, exhausted int
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, billing.ErrCouponExhausted):
				exhausted++
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, 1, exhausted)

		global, _, err := store.CouponUses(ctx, coupon.ID, uuid.Nil)
		require.NoError(t, err)
		assert.Equal(t, 1, global)
	})

	t.Run("lookups", func(t *testing.T) {
		_, err := store.CurrentSubscription(ctx, uuid.New())
		assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)
		_, err = store.Invoice(ctx, uuid.New())
		assert.ErrorIs(t, err, billing.ErrInvoiceNotFound)
		_, err = store.CouponByCode(ctx, "missing")
		assert.ErrorIs(t, err, billing.ErrCouponNotFound)
	})

	t.Run("property counter", func(t *testing.T) {
		_, err := pool.Exec(ctx, `CREATE TABLE properties (id uuid PRIMARY KEY, owner_id uuid NOT NULL)`)
		require.NoError(t, err)
		owner := uuid.New()
		for range 3 {
			_, err := pool.Exec(ctx, `INSERT INTO properties (id, owner_id) VALUES ($1, $2)`, uuid.New(), owner)
			require.NoError(t, err)
		}

		count := pgstore.PropertyCounter(pool, "properties", "owner_id")
		n, err := count(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		n, err = count(ctx, uuid.New())
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
