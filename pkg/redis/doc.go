// Package redis provides helpers for connecting to a Redis server.
//
// It wraps the go-redis client with a retrying Connect and a health-check
// closure for readiness probes. The quota package uses the resulting client
// for its daily usage counters when those are kept out of the primary
// database.
//
// Usage:
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    panic(err)
//	}
//	defer client.Close()
//
//	store := quota.NewRedisStore(client)
//
// Configuration is described by the Config struct whose fields are
// populated from environment variables via github.com/caarlos0/env.
package redis
