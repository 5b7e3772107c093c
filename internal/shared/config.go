package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	BokunBase      string
	BokunAccessKey string
	BokunSecretKey string
	BokunVendorID  string
	SyncEnabled    bool
	SyncInterval   time.Duration
	WindowDays     int
	RateCeiling    int

	CacheTTL time.Duration
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/florence?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),

		BokunBase:      env("BOKUN_BASE_URL", "https://api.bokun.io"),
		BokunAccessKey: env("BOKUN_ACCESS_KEY", ""),
		BokunSecretKey: env("BOKUN_SECRET_KEY", ""),
		BokunVendorID:  env("BOKUN_VENDOR_ID", ""),
		SyncEnabled:    env("SYNC_ENABLED", "true") == "true",
		SyncInterval:   time.Duration(atoi("SYNC_INTERVAL_MINUTES", 15)) * time.Minute,
		WindowDays:     atoi("SYNC_WINDOW_DAYS", 14),
		RateCeiling:    atoi("BOKUN_RATE_CEILING", 400),

		CacheTTL: time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
	}

	// Credentials may be stored encrypted ("enc:" + base64 of AES-GCM
	// ciphertext); decrypt before anyone builds a client with them.
	if master := os.Getenv("BOKUN_CREDENTIALS_KEY"); master != "" {
		var err error
		if c.BokunAccessKey, err = MaybeDecrypt(master, c.BokunAccessKey); err != nil {
			log.Error().Err(err).Msg("failed to decrypt BOKUN_ACCESS_KEY")
			c.BokunAccessKey = ""
		}
		if c.BokunSecretKey, err = MaybeDecrypt(master, c.BokunSecretKey); err != nil {
			log.Error().Err(err).Msg("failed to decrypt BOKUN_SECRET_KEY")
			c.BokunSecretKey = ""
		}
	}

	if c.BokunAccessKey == "" || c.BokunSecretKey == "" {
		log.Warn().Msg("Bokun credentials are empty; sync will be disabled")
	}
	return c
}

func (c Config) CredentialsPresent() bool {
	return c.BokunAccessKey != "" && c.BokunSecretKey != ""
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
