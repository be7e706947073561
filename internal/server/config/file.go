package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

// FileConfig is the on-disk shape of the configuration, shared by JSON and
// TOML files. Durations accept "30m" strings or integer nanoseconds. Zero
// values leave the corresponding Config field untouched.
type FileConfig struct {
	HTTPAddr           string         `json:"http_addr" toml:"http_addr"`
	GRPCAddr           string         `json:"grpc_addr" toml:"grpc_addr"`
	DatabaseDriver     string         `json:"database_driver" toml:"database_driver"`
	DatabaseDSN        string         `json:"database_dsn" toml:"database_dsn"`
	SecretKey          string         `json:"secret_key" toml:"secret_key"`
	TokenLifetime      timex.Duration `json:"token_lifetime" toml:"token_lifetime"`
	MaxAttempts        int            `json:"max_attempts" toml:"max_attempts"`
	LockoutDuration    timex.Duration `json:"lockout_duration" toml:"lockout_duration"`
	RateLimitWindow    timex.Duration `json:"rate_limit_window" toml:"rate_limit_window"`
	RateLimitThreshold int            `json:"rate_limit_threshold" toml:"rate_limit_threshold"`
	RedisAddr          string         `json:"redis_addr" toml:"redis_addr"`
	TrustedProxies     []string       `json:"trusted_proxies" toml:"trusted_proxies"`
	PasswordScheme     string         `json:"password_scheme" toml:"password_scheme"`
	BcryptCost         int            `json:"bcrypt_cost" toml:"bcrypt_cost"`
	HashWorkers        int            `json:"hash_workers" toml:"hash_workers"`
	AuditBufferSize    int            `json:"audit_buffer_size" toml:"audit_buffer_size"`
	LogLevel           string         `json:"log_level" toml:"log_level"`
	S3Bucket           string         `json:"s3_bucket" toml:"s3_bucket"`
	S3Region           string         `json:"s3_region" toml:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint" toml:"s3_base_endpoint"`
	S3AccessKey        string         `json:"s3_access_key" toml:"s3_access_key"`
	S3SecretKey        string         `json:"s3_secret_key" toml:"s3_secret_key"`
}

// parseFile overlays the file named by -c/-config, if any.
func parseFile(config *Config) error {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return nil
	}
	return loadFile(config, path)
}

// loadFile decodes path as TOML when it has a .toml extension and as JSON
// otherwise, then copies the non-zero values into config.
func loadFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := &FileConfig{}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), fc); err != nil {
			return fmt.Errorf("decode toml config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, fc); err != nil {
			return fmt.Errorf("decode json config: %w", err)
		}
	}

	return fc.apply(config)
}

func (fc *FileConfig) apply(config *Config) error {
	setString(&config.HTTPAddr, fc.HTTPAddr)
	setString(&config.GRPCAddr, fc.GRPCAddr)
	setString(&config.DatabaseDriver, fc.DatabaseDriver)
	setString(&config.DatabaseDSN, fc.DatabaseDSN)
	setString(&config.SecretKey, fc.SecretKey)
	setString(&config.RedisAddr, fc.RedisAddr)
	setString(&config.PasswordScheme, fc.PasswordScheme)
	setString(&config.LogLevel, fc.LogLevel)
	setString(&config.S3Bucket, fc.S3Bucket)
	setString(&config.S3Region, fc.S3Region)
	setString(&config.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&config.S3AccessKey, fc.S3AccessKey)
	setString(&config.S3SecretKey, fc.S3SecretKey)

	setInt(&config.MaxAttempts, fc.MaxAttempts)
	setInt(&config.RateLimitThreshold, fc.RateLimitThreshold)
	setInt(&config.BcryptCost, fc.BcryptCost)
	setInt(&config.HashWorkers, fc.HashWorkers)
	setInt(&config.AuditBufferSize, fc.AuditBufferSize)

	if fc.TokenLifetime.Duration > 0 {
		config.TokenLifetime = fc.TokenLifetime.Duration
	}
	if fc.LockoutDuration.Duration > 0 {
		config.LockoutDuration = fc.LockoutDuration.Duration
	}
	if fc.RateLimitWindow.Duration > 0 {
		config.RateLimitWindow = fc.RateLimitWindow.Duration
	}

	if len(fc.TrustedProxies) > 0 {
		proxies, err := ParseTrustedProxies(strings.Join(fc.TrustedProxies, ","))
		if err != nil {
			return err
		}
		config.TrustedProxies = proxies
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
