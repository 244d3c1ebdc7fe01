// Package config loads application configuration from environment
// variables into typed structs, with optional .env file support.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11 and
// caches each successfully parsed configuration type so it is only parsed
// once per process, no matter how many components ask for it.
//
// Usage:
//
//	type WebhookConfig struct {
//	    Secret    string        `env:"BILLING_WEBHOOK_SECRET,required"`
//	    Tolerance time.Duration `env:"BILLING_WEBHOOK_TOLERANCE" envDefault:"5m"`
//	}
//
//	var cfg WebhookConfig
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatalf("parsing env: %v", err)
//	}
//
// Subsequent calls to config.Load for the same struct type are served from
// the in-memory cache. Tests that mutate the environment use ResetCache or
// ForceReloadConfig to observe the change.
package config
