package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const envPrefix = "AUTHKEEPER_"

var lookupEnv = os.LookupEnv

// parseEnv overlays AUTHKEEPER_* environment variables. Durations use Go
// duration syntax ("30m"); AUTHKEEPER_TRUSTED_PROXIES is comma-separated.
func parseEnv(config *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"HTTP_ADDR":        &config.HTTPAddr,
		"GRPC_ADDR":        &config.GRPCAddr,
		"DATABASE_DRIVER":  &config.DatabaseDriver,
		"DATABASE_DSN":     &config.DatabaseDSN,
		"SECRET_KEY":       &config.SecretKey,
		"REDIS_ADDR":       &config.RedisAddr,
		"PASSWORD_SCHEME":  &config.PasswordScheme,
		"LOG_LEVEL":        &config.LogLevel,
		"S3_BUCKET":        &config.S3Bucket,
		"S3_REGION":        &config.S3Region,
		"S3_BASE_ENDPOINT": &config.S3BaseEndpoint,
		"S3_ACCESS_KEY":    &config.S3AccessKey,
		"S3_SECRET_KEY":    &config.S3SecretKey,
	}
	for name, dst := range strs {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MAX_ATTEMPTS":         &config.MaxAttempts,
		"RATE_LIMIT_THRESHOLD": &config.RateLimitThreshold,
		"HASH_WORKERS":         &config.HashWorkers,
	}
	for name, dst := range ints {
		v, ok := lookup(envPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"TOKEN_LIFETIME":    &config.TokenLifetime,
		"LOCKOUT_DURATION":  &config.LockoutDuration,
		"RATE_LIMIT_WINDOW": &config.RateLimitWindow,
	}
	for name, dst := range durations {
		v, ok := lookup(envPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = d
	}

	if v, ok := lookup(envPrefix + "TRUSTED_PROXIES"); ok {
		proxies, err := ParseTrustedProxies(v)
		if err != nil {
			return fmt.Errorf("%sTRUSTED_PROXIES: %w", envPrefix, err)
		}
		config.TrustedProxies = proxies
	}

	return nil
}
