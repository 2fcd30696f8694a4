package main

import (
	"time"

	"github.com/dmitrymomot/hostkit/pkg/httpserver"
	"github.com/dmitrymomot/hostkit/pkg/pg"
	"github.com/dmitrymomot/hostkit/pkg/redis"
)

type appConfig struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:""`

	PlansFile         string        `env:"BILLING_PLANS_FILE"` // YAML catalog, built-in plans when empty
	InvoiceDueIn      time.Duration `env:"BILLING_INVOICE_DUE_IN" envDefault:"168h"`
	LockTTL           time.Duration `env:"BILLING_LOCK_TTL" envDefault:"30s"`
	ExpireInterval    time.Duration `env:"BILLING_EXPIRE_INTERVAL" envDefault:"5m"`
	ExpireBatch       int           `env:"BILLING_EXPIRE_BATCH" envDefault:"100"`
	UserHeader        string        `env:"BILLING_USER_HEADER" envDefault:"X-User-ID"`
	PaymentCallbacks  bool          `env:"BILLING_PAYMENT_CALLBACKS" envDefault:"false"`
	PropertiesTable   string        `env:"BILLING_PROPERTIES_TABLE"`
	PropertiesOwnerBy string        `env:"BILLING_PROPERTIES_OWNER_COLUMN" envDefault:"user_id"`
	RedisLocker       bool          `env:"BILLING_REDIS_LOCKER" envDefault:"true"`

	HTTP  httpserver.Config
	PG    pg.Config
	Redis redis.Config
}
