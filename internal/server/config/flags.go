package config

import (
	"flag"
	"os"
	"time"

	"github.com/jsvoboda/authd/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-x string   Redis address for the refresh-token store (optional)
//	-s string   explicit JWT HMAC secret
//	-k string   data directory (persisted signing secret)
//	-e string   environment name ("production" hardens cookies)
//	-t int      access token TTL, minutes
//	-r int      refresh token TTL, minutes
//
// Args are filtered through flagx.FilterArgs first, so flags owned by
// other components do not collide.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-x", "-s", "-k", "-e", "-t", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "x", config.RedisAddr, "redis address for refresh tokens")
	fs.StringVar(&config.JWTSecret, "s", config.JWTSecret, "jwt signing secret")
	fs.StringVar(&config.DataDir, "k", config.DataDir, "data directory")
	fs.StringVar(&config.Environment, "e", config.Environment, "environment name")

	accessTTL := fs.Int("t", int(config.AccessTokenTTL.Minutes()), "access token TTL (in minutes)")
	refreshTTL := fs.Int("r", int(config.RefreshTokenTTL.Minutes()), "refresh token TTL (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenTTL = time.Duration(*accessTTL) * time.Minute
	config.RefreshTokenTTL = time.Duration(*refreshTTL) * time.Minute
}
