package config

import "os"

// parseEnv overlays environment variables on top of defaults, JSON,
// and flags. Environment wins; it is the usual channel in container
// deployments and matches the variables the service historically read.
func parseEnv(config *Config) {
	if v, ok := os.LookupEnv("HTTP_ADDR"); ok {
		config.HTTPAddr = v
	}
	if v, ok := os.LookupEnv("DATABASE_DSN"); ok {
		config.DatabaseDSN = v
	}
	if v, ok := os.LookupEnv("REDIS_ADDR"); ok {
		config.RedisAddr = v
	}
	if v, ok := os.LookupEnv("JWT_SECRET"); ok {
		config.JWTSecret = v
	}
	if v, ok := os.LookupEnv("DATA_DIR"); ok {
		config.DataDir = v
	}
	if v, ok := os.LookupEnv("APP_ENV"); ok {
		config.Environment = v
	}
}
