package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all environment-backed settings for the service.
type Config struct {
	ListenAddr string

	// StoreURI is the MongoDB connection string, Database the logical DB name.
	StoreURI string
	Database string

	// Connection pool bounds handed to the driver.
	PoolMinSize uint64
	PoolMaxSize uint64

	// RequestTimeout is the hard deadline applied to every request context.
	RequestTimeout time.Duration

	// MaxPageSize caps list page sizes; larger requests are clamped.
	MaxPageSize int

	JWTSecret string

	// TombstoneRetain pins delete semantics: true keeps soft-deleted
	// documents in place, false removes them physically.
	TombstoneRetain bool

	Debug bool
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	return Config{
		ListenAddr:      getString("ADDR", ":8080"),
		StoreURI:        getString("STORE_URI", "mongodb://localhost:27017"),
		Database:        getString("STORE_DATABASE", "casher_database"),
		PoolMinSize:     getUint("POOL_MIN_SIZE", 2),
		PoolMaxSize:     getUint("POOL_MAX_SIZE", 32),
		RequestTimeout:  time.Duration(getInt("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,
		MaxPageSize:     getInt("MAX_PAGE_SIZE", 100),
		JWTSecret:       getString("JWT_SECRET", ""),
		TombstoneRetain: getBool("TOMBSTONE_RETAIN", true),
		Debug:           getBool("DEBUG", false),
	}
}

func getString(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getUint(key string, fallback uint64) uint64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
