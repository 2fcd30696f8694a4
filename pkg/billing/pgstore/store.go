// Package pgstore persists billing state in PostgreSQL.
//
// Subscription writes go through a row lock (SELECT ... FOR UPDATE) plus an
// optimistic version column; coupon redemption is a conditional UPDATE on the
// coupon row so two transactions can never both take the last use.
package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/hostkit/pkg/billing"
	"github.com/dmitrymomot/hostkit/pkg/pg"
)

// Migrations holds the schema, applied with pg.Migrate using MigrationsDir.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations.
const MigrationsDir = "migrations"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements billing.Store on a pgx pool.
type Store struct {
	reader
	pool *pgxpool.Pool
}

var (
	_ billing.Store = (*Store)(nil)
	_ billing.Tx    = (*tx)(nil)
)

// New returns a store over pool. The schema must already be migrated.
func New(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("pgstore: pool is required")
	}
	return &Store{reader: reader{q: pool}, pool: pool}
}

// WithTx runs fn in a READ COMMITTED transaction. Row locks taken by the Tx
// methods serialize conflicting writers.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx billing.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ptx pgx.Tx) error {
		return fn(ctx, &tx{reader: reader{q: ptx}})
	})
}

const insertInvoice = `
INSERT INTO invoices (id, subscription_id, user_id, kind, base_version, plan_code, billing_period,
	coupon_code, currency, amount, discount, credit, final_amount, extra_months, status,
	issued_at, due_at, paid_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

func (s *Store) CreateInvoice(ctx context.Context, inv *billing.Invoice) error {
	_, err := s.pool.Exec(ctx, insertInvoice,
		inv.ID, inv.SubscriptionID, inv.UserID, inv.Kind, inv.BaseVersion, inv.PlanCode, inv.BillingPeriod,
		inv.CouponCode, inv.Amount.Currency, inv.Amount.Amount, inv.Discount.Amount, inv.Credit.Amount,
		inv.FinalAmount.Amount, inv.ExtraMonths, inv.Status, inv.IssuedAt, inv.DueAt, inv.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

const insertCoupon = `
INSERT INTO coupons (id, code, type, value, valid_from, valid_until, max_uses, max_uses_per_user,
	min_amount, min_currency, active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

func (s *Store) CreateCoupon(ctx context.Context, c *billing.Coupon) error {
	var minAmount *int64
	var minCurrency *string
	if c.MinAmount != nil {
		minAmount, minCurrency = &c.MinAmount.Amount, &c.MinAmount.Currency
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, insertCoupon,
		c.ID, c.Code, c.Type, c.Value, c.ValidFrom, c.ValidUntil, c.MaxUses, c.MaxUsesPerUser,
		minAmount, minCurrency, c.Active, createdAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return fmt.Errorf("coupon %q already exists: %w", c.Code, err)
		}
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

func (s *Store) DueSubscriptions(ctx context.Context, now time.Time, limit int) ([]billing.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		selectSubscription+` WHERE status <> 'EXPIRED' AND end_date < $1 ORDER BY end_date LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query due subscriptions: %w", err)
	}
	defer rows.Close()

	var out []billing.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

// reader implements billing.Reader on any querier.
type reader struct {
	q querier
}

const selectSubscription = `
SELECT id, user_id, plan_code, billing_period, status, start_date, end_date,
	custom_price_amount, custom_price_currency, version, created_at, updated_at, cancelled_at
FROM subscriptions`

const selectInvoice = `
SELECT id, subscription_id, user_id, kind, base_version, plan_code, billing_period, coupon_code,
	currency, amount, discount, credit, final_amount, extra_months, status, issued_at, due_at, paid_at
FROM invoices`

const selectCoupon = `
SELECT id, code, type, value, valid_from, valid_until, max_uses, max_uses_per_user,
	min_amount, min_currency, active, created_at
FROM coupons`

func (r reader) CurrentSubscription(ctx context.Context, userID uuid.UUID) (*billing.Subscription, error) {
	return r.currentSubscription(ctx, userID, "")
}

func (r reader) currentSubscription(ctx context.Context, userID uuid.UUID, suffix string) (*billing.Subscription, error) {
	row := r.q.QueryRow(ctx,
		selectSubscription+` WHERE user_id = $1 AND status <> 'EXPIRED' ORDER BY start_date DESC LIMIT 1`+suffix,
		userID,
	)
	sub, err := scanSubscription(row)
	if pg.IsNotFoundError(err) {
		return nil, billing.ErrSubscriptionNotFound
	}
	return sub, err
}

func (r reader) LastPaidInvoice(ctx context.Context, subscriptionID uuid.UUID) (*billing.Invoice, error) {
	row := r.q.QueryRow(ctx,
		selectInvoice+` WHERE subscription_id = $1 AND status = 'PAID' ORDER BY paid_at DESC LIMIT 1`,
		subscriptionID,
	)
	inv, err := scanInvoice(row)
	if pg.IsNotFoundError(err) {
		return nil, billing.ErrInvoiceNotFound
	}
	return inv, err
}

func (r reader) PaidInvoices(ctx context.Context, subscriptionID uuid.UUID, since time.Time) ([]billing.Invoice, error) {
	rows, err := r.q.Query(ctx,
		selectInvoice+` WHERE subscription_id = $1 AND status = 'PAID' AND paid_at >= $2 ORDER BY paid_at`,
		subscriptionID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (r reader) Invoice(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	return r.invoice(ctx, id, "")
}

func (r reader) invoice(ctx context.Context, id uuid.UUID, suffix string) (*billing.Invoice, error) {
	inv, err := scanInvoice(r.q.QueryRow(ctx, selectInvoice+` WHERE id = $1`+suffix, id))
	if pg.IsNotFoundError(err) {
		return nil, billing.ErrInvoiceNotFound
	}
	return inv, err
}

func (r reader) CouponByCode(ctx context.Context, code string) (*billing.Coupon, error) {
	c, err := scanCoupon(r.q.QueryRow(ctx, selectCoupon+` WHERE lower(code) = lower($1)`, strings.TrimSpace(code)))
	if pg.IsNotFoundError(err) {
		return nil, billing.ErrCouponNotFound
	}
	return c, err
}

func (r reader) CouponUses(ctx context.Context, couponID, userID uuid.UUID) (global, user int, err error) {
	err = r.q.QueryRow(ctx, `
SELECT count(*), count(*) FILTER (WHERE user_id = $2)
FROM coupon_uses WHERE coupon_id = $1`, couponID, userID).Scan(&global, &user)
	if err != nil {
		return 0, 0, fmt.Errorf("count coupon uses: %w", err)
	}
	return global, user, nil
}

// tx implements billing.Tx inside a pgx transaction.
type tx struct {
	reader
}

func (t *tx) LockSubscription(ctx context.Context, userID uuid.UUID) (*billing.Subscription, error) {
	return t.currentSubscription(ctx, userID, " FOR UPDATE")
}

func (t *tx) LockInvoice(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	return t.invoice(ctx, id, " FOR UPDATE")
}

// ConsumeCoupon increments used_count only while it is below max_uses. The
// UPDATE locks the coupon row, so concurrent redemptions of the same coupon
// queue behind it and re-evaluate the condition after it commits.
func (t *tx) ConsumeCoupon(ctx context.Context, c *billing.Coupon, use billing.CouponUse) error {
	tag, err := t.q.Exec(ctx, `
UPDATE coupons SET used_count = used_count + 1
WHERE id = $1 AND active AND (max_uses IS NULL OR used_count < max_uses)`, c.ID)
	if err != nil {
		return fmt.Errorf("consume coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrCouponExhausted
	}

	if c.MaxUsesPerUser != nil {
		var used int
		err := t.q.QueryRow(ctx,
			`SELECT count(*) FROM coupon_uses WHERE coupon_id = $1 AND user_id = $2`,
			c.ID, use.UserID,
		).Scan(&used)
		if err != nil {
			return fmt.Errorf("count user coupon uses: %w", err)
		}
		if used >= *c.MaxUsesPerUser {
			return billing.ErrCouponUserLimit
		}
	}

	_, err = t.q.Exec(ctx,
		`INSERT INTO coupon_uses (id, coupon_id, user_id, invoice_id, used_at) VALUES ($1, $2, $3, $4, $5)`,
		use.ID, use.CouponID, use.UserID, use.InvoiceID, use.UsedAt,
	)
	if err != nil {
		return fmt.Errorf("record coupon use: %w", err)
	}
	return nil
}

func (t *tx) SaveSubscription(ctx context.Context, sub *billing.Subscription) error {
	var customAmount *int64
	var customCurrency *string
	if sub.CustomPrice != nil {
		customAmount, customCurrency = &sub.CustomPrice.Amount, &sub.CustomPrice.Currency
	}
	var period *string
	if sub.BillingPeriod != "" {
		p := string(sub.BillingPeriod)
		period = &p
	}

	if sub.Version == 0 {
		_, err := t.q.Exec(ctx, `
INSERT INTO subscriptions (id, user_id, plan_code, billing_period, status, start_date, end_date,
	custom_price_amount, custom_price_currency, version, created_at, updated_at, cancelled_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11, $12)`,
			sub.ID, sub.UserID, sub.PlanCode, period, sub.Status, sub.StartDate, sub.EndDate,
			customAmount, customCurrency, sub.CreatedAt, sub.UpdatedAt, sub.CancelledAt,
		)
		if err != nil {
			if pg.IsDuplicateKeyError(err) {
				return errors.Join(billing.ErrSubscriptionConflict, err)
			}
			return fmt.Errorf("insert subscription: %w", err)
		}
		sub.Version = 1
		return nil
	}

	tag, err := t.q.Exec(ctx, `
UPDATE subscriptions SET plan_code = $3, billing_period = $4, status = $5, start_date = $6,
	end_date = $7, custom_price_amount = $8, custom_price_currency = $9, updated_at = $10,
	cancelled_at = $11, version = version + 1
WHERE id = $1 AND version = $2`,
		sub.ID, sub.Version, sub.PlanCode, period, sub.Status, sub.StartDate, sub.EndDate,
		customAmount, customCurrency, sub.UpdatedAt, sub.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrSubscriptionConflict
	}
	sub.Version++
	return nil
}

func (t *tx) UpdateInvoice(ctx context.Context, inv *billing.Invoice) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE invoices SET status = $2, subscription_id = $3, paid_at = $4 WHERE id = $1`,
		inv.ID, inv.Status, inv.SubscriptionID, inv.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrInvoiceNotFound
	}
	return nil
}

func scanSubscription(row pgx.Row) (*billing.Subscription, error) {
	var (
		sub            billing.Subscription
		period         *string
		customAmount   *int64
		customCurrency *string
	)
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.PlanCode, &period, &sub.Status, &sub.StartDate, &sub.EndDate,
		&customAmount, &customCurrency, &sub.Version, &sub.CreatedAt, &sub.UpdatedAt, &sub.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	if period != nil {
		sub.BillingPeriod = billing.BillingPeriod(*period)
	}
	if customAmount != nil {
		price := billing.Money{Amount: *customAmount, Currency: billing.DefaultCurrency}
		if customCurrency != nil {
			price.Currency = *customCurrency
		}
		sub.CustomPrice = &price
	}
	return &sub, nil
}

func scanInvoice(row pgx.Row) (*billing.Invoice, error) {
	var (
		inv      billing.Invoice
		currency string
	)
	err := row.Scan(
		&inv.ID, &inv.SubscriptionID, &inv.UserID, &inv.Kind, &inv.BaseVersion, &inv.PlanCode,
		&inv.BillingPeriod, &inv.CouponCode, &currency, &inv.Amount.Amount, &inv.Discount.Amount,
		&inv.Credit.Amount, &inv.FinalAmount.Amount, &inv.ExtraMonths, &inv.Status,
		&inv.IssuedAt, &inv.DueAt, &inv.PaidAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Amount.Currency = currency
	inv.Discount.Currency = currency
	inv.Credit.Currency = currency
	inv.FinalAmount.Currency = currency
	return &inv, nil
}

func scanCoupon(row pgx.Row) (*billing.Coupon, error) {
	var (
		c           billing.Coupon
		minAmount   *int64
		minCurrency *string
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Type, &c.Value, &c.ValidFrom, &c.ValidUntil, &c.MaxUses, &c.MaxUsesPerUser,
		&minAmount, &minCurrency, &c.Active, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if minAmount != nil {
		m := billing.Money{Amount: *minAmount, Currency: billing.DefaultCurrency}
		if minCurrency != nil {
			m.Currency = *minCurrency
		}
		c.MinAmount = &m
	}
	return &c, nil
}
