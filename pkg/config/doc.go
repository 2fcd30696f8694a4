// Package config parses environment variables into typed configuration
// structs using github.com/caarlos0/env/v11, after optionally loading
// dotenv files with github.com/joho/godotenv.
//
//	type BillingConfig struct {
//		Currency string `env:"CURRENCY" envDefault:"USD"`
//	}
//
//	cfg, err := config.Load[BillingConfig](
//		config.WithEnvFiles(".env"),
//		config.WithPrefix("BILLING_"),
//	)
//
// Variables already present in the process environment win over values from
// dotenv files. Missing dotenv files are skipped unless WithRequiredEnvFiles
// is used.
package config
