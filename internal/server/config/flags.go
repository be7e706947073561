package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
)

var serverFlags = []string{"-a", "-g", "-D", "-d", "-s", "-t", "-m", "-l", "-w", "-r", "-R", "-P", "-p"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-g string   gRPC bind address (e.g., ":50051")
//	-D string   database driver ("pgx" or "sqlite")
//	-d string   database DSN
//	-s string   token signing secret
//	-t int      token lifetime, minutes
//	-m int      failed attempts before lockout
//	-l int      lockout duration, minutes
//	-w int      rate limit window, seconds
//	-r int      requests allowed per address per window
//	-R string   Redis address for the rate limiter
//	-P string   trusted proxies, comma-separated CIDRs or addresses
//	-p string   password scheme for new credentials ("bcrypt" or "argon2id")
//
// Only these flags are taken from os.Args (see flagx.FilterArgs), so the
// config file flag and flags of other components do not collide.
func parseFlags(config *Config) error {
	return parseFlagArgs(config, flagx.FilterArgs(os.Args[1:], serverFlags))
}

func parseFlagArgs(config *Config, args []string) error {
	fs := flag.NewFlagSet("authkeeper", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC address and port")
	fs.StringVar(&config.DatabaseDriver, "D", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "token signing secret")

	tokenLifetime := fs.Int("t", int(config.TokenLifetime.Minutes()), "token lifetime (in minutes)")
	fs.IntVar(&config.MaxAttempts, "m", config.MaxAttempts, "failed attempts before lockout")
	lockoutDuration := fs.Int("l", int(config.LockoutDuration.Minutes()), "lockout duration (in minutes)")
	rateWindow := fs.Int("w", int(config.RateLimitWindow.Seconds()), "rate limit window (in seconds)")
	fs.IntVar(&config.RateLimitThreshold, "r", config.RateLimitThreshold, "requests per address per window")

	fs.StringVar(&config.RedisAddr, "R", config.RedisAddr, "Redis address for rate limiting")
	fs.StringVar(&config.PasswordScheme, "p", config.PasswordScheme, "password scheme")
	proxies := fs.String("P", "", "trusted proxies (comma-separated)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// durations are only replaced when given, so finer-grained values from
	// the file or environment survive the minute/second flag units
	var proxyErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.TokenLifetime = time.Duration(*tokenLifetime) * time.Minute
		case "l":
			config.LockoutDuration = time.Duration(*lockoutDuration) * time.Minute
		case "w":
			config.RateLimitWindow = time.Duration(*rateWindow) * time.Second
		case "P":
			config.TrustedProxies, proxyErr = ParseTrustedProxies(*proxies)
		}
	})
	return proxyErr
}
