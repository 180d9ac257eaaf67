package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Env            string
	Port           int
	AppName        string
	AppDescription string
	APIPrefix      string

	StoreDriver string
	MongoURL    string
	MongoDBName string
	DBURL       string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimit       int
	RateLimitWindow time.Duration

	BcryptCost      int
	HashConcurrency int

	MaxBodyBytes       int64
	CORSAllowedOrigins []string

	OTelEnabled  bool
	OTelEndpoint string

	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// a missing .env is fine; real deployments set the environment directly
	_ = godotenv.Load()

	return fromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("PORT", 8080)
	v.SetDefault("APP_NAME", "userhub")
	v.SetDefault("APP_DESCRIPTION", "RESTful user management API")
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("STORE_DRIVER", StoreMongo)
	v.SetDefault("MONGODB_URL", "mongodb://localhost:27017")
	v.SetDefault("MONGODB_DB_NAME", "userhub")

	v.SetDefault("DB_HOST", "127.0.0.1")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "userhub")
	v.SetDefault("DB_PASSWORD", "userhub")
	v.SetDefault("DB_NAME", "userhub")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("RATE_LIMIT", 120)
	v.SetDefault("RATE_LIMIT_WINDOW", time.Minute)

	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("HASH_CONCURRENCY", runtime.NumCPU())

	v.SetDefault("MAX_BODY_BYTES", 1<<20)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("ADMIN_NAME", "Administrator")

	return v
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Env:            v.GetString("APP_ENV"),
		Port:           v.GetInt("PORT"),
		AppName:        v.GetString("APP_NAME"),
		AppDescription: v.GetString("APP_DESCRIPTION"),
		APIPrefix:      normalizePrefix(v.GetString("API_PREFIX")),

		StoreDriver: strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
		MongoURL:    v.GetString("MONGODB_URL"),
		MongoDBName: v.GetString("MONGODB_DB_NAME"),
		DBURL:       buildDBURL(v),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		RateLimit:       v.GetInt("RATE_LIMIT"),
		RateLimitWindow: v.GetDuration("RATE_LIMIT_WINDOW"),

		BcryptCost:      v.GetInt("BCRYPT_COST"),
		HashConcurrency: v.GetInt("HASH_CONCURRENCY"),

		MaxBodyBytes:       v.GetInt64("MAX_BODY_BYTES"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),

		OTelEnabled:  v.GetBool("OTEL_ENABLED"),
		OTelEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),

		AdminEmail:    v.GetString("ADMIN_EMAIL"),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),
		AdminName:     v.GetString("ADMIN_NAME"),
	}

	switch cfg.StoreDriver {
	case StoreMongo, StorePostgres, StoreMemory:
	default:
		return Config{}, fmt.Errorf("config: unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.Port <= 0 {
		return Config{}, fmt.Errorf("config: invalid PORT %d", cfg.Port)
	}

	return cfg, nil
}

func buildDBURL(v *viper.Viper) string {
	host := v.GetString("DB_HOST")
	port := v.GetString("DB_PORT")
	user := v.GetString("DB_USER")
	pass := v.GetString("DB_PASSWORD")
	name := v.GetString("DB_NAME")
	ssl := v.GetString("DB_SSLMODE")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

// "/api/v1/" and "api/v1" both become "/api/v1"; empty stays empty.
func normalizePrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}
