package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	ServerPort  int
	LogLevel    string

	StorageDriver string
	StorageDSN    string
	RedisAddr     string

	AccountURL  string
	OrderURL    string
	HTTPTimeout time.Duration

	ESURL        string
	ESUser       string
	ESPassword   string
	ProductIndex string

	KafkaBrokers []string

	CheckoutIdleTTL time.Duration

	JWTSecret []byte
}

func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "storefront"),
		ServerPort:  EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		StorageDriver: EnvDefault("STORAGE_DRIVER", "sqlite"),
		StorageDSN:    EnvDefault("STORAGE_DSN", "storefront.db"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),

		AccountURL:  os.Getenv("ACCOUNT_URL"),
		OrderURL:    os.Getenv("ORDER_URL"),
		HTTPTimeout: time.Duration(EnvIntDefault("HTTP_TIMEOUT_SECONDS", 10)) * time.Second,

		ESURL:        os.Getenv("ES_URL"),
		ESUser:       os.Getenv("ES_USER"),
		ESPassword:   os.Getenv("ES_PASSWORD"),
		ProductIndex: EnvDefault("PRODUCT_INDEX", "product"),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		CheckoutIdleTTL: time.Duration(EnvIntDefault("CHECKOUT_IDLE_MINUTES", 30)) * time.Minute,

		JWTSecret: []byte(os.Getenv("JWT_SECRET")),
	}
}

// MustLoad is Load plus the checks the storefront service cannot start without.
func MustLoad() Config {
	cfg := Load()

	MustNonEmpty(cfg.AccountURL, "ACCOUNT_URL")
	MustNonEmpty(cfg.OrderURL, "ORDER_URL")
	MustNonEmpty(cfg.ESURL, "ES_URL")
	MustNonEmptyBytes(cfg.JWTSecret, "JWT_SECRET")
	if cfg.StorageDriver == "redis" {
		MustNonEmpty(cfg.RedisAddr, "REDIS_ADDR")
	}

	return cfg
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

func MustNonEmptyBytes(value []byte, envName string) {
	if len(value) == 0 {
		log.Fatalf("missing required env %s", envName)
	}
}
