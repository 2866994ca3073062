package shared

import (
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string

	FeedBase string
	FeedWS   string
	FeedKey  string
	FeedRPS  int

	LocalAPIURL string
	DocStoreURL string
	DocStoreKey string

	RedisAddr string
	RedisPass string
	RedisDB   int

	MySQLDSN string

	AdminKey string

	ScrapeHour   int
	ScrapeMinute int

	PushTokens []string
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
		AppEnv:       env("APP_ENV", "prod"),
		HTTPAddr:     env("HTTP_ADDR", ":8080"),
		MetricsAddr:  env("METRICS_ADDR", ":9100"),
		FeedBase:     env("FEED_BASE_URL", "https://api.fourvenues.com"),
		FeedWS:       env("FEED_WS_URL", ""),
		FeedKey:      env("FEED_API_KEY", ""),
		FeedRPS:      atoi("FEED_RPS", 5),
		LocalAPIURL:  env("LOCAL_API_URL", "http://localhost:5001"),
		DocStoreURL:  env("DOC_STORE_URL", ""),
		DocStoreKey:  env("DOC_STORE_KEY", ""),
		RedisAddr:    env("REDIS_ADDR", "localhost:6379"),
		RedisPass:    env("REDIS_PASSWORD", ""),
		RedisDB:      atoi("REDIS_DB", 0),
		MySQLDSN:     env("MYSQL_DSN", "root:root@tcp(localhost:3306)/jaleo?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		AdminKey:     env("ADMIN_KEY", ""),
		ScrapeHour:   atoi("SCRAPE_HOUR", 20),
		ScrapeMinute: atoi("SCRAPE_MINUTE", 30),
		PushTokens:   splitList(env("PUSH_TOKENS", "")),
	}
	if c.FeedKey == "" {
		log.Warn().Msg("FEED_API_KEY is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
