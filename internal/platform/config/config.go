package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration sourced from the environment so
// main stays lean. Every value has a development default; production deploys
// override via env.
type Server struct {
	Addr          string
	JWTSigningKey string

	// DatabaseURL selects the postgres stores when set; otherwise the
	// service runs on in-memory stores (development, tests).
	DatabaseURL string

	// RedisURL enables the document read cache when set.
	RedisURL      string
	RedisCacheTTL time.Duration

	// KafkaBrokers enables the audit event sink when non-empty.
	KafkaBrokers    []string
	KafkaAuditTopic string

	// Minio object store for artifact bytes. When the endpoint is empty the
	// service falls back to an in-memory object store (development only).
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// PublicBaseURL prefixes canonical artifact URLs returned to callers.
	PublicBaseURL string
}

// DocumentCacheTTL bounds staleness of unlocked document reads.
const DocumentCacheTTL = 5 * time.Minute

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:            envOr("SEVAGATE_ADDR", ":8080"),
		JWTSigningKey:   os.Getenv("JWT_SIGNING_KEY"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		RedisCacheTTL:   DocumentCacheTTL,
		KafkaAuditTopic: envOr("KAFKA_AUDIT_TOPIC", "sevagate.audit"),
		MinioEndpoint:   os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey:  os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:  os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:     envOr("MINIO_BUCKET", "sevagate-artifacts"),
		MinioUseSSL:     os.Getenv("MINIO_USE_SSL") == "true",
		PublicBaseURL:   envOr("PUBLIC_BASE_URL", "http://localhost:8080"),
	}

	if cfg.JWTSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if ttl := os.Getenv("REDIS_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil && d > 0 {
			cfg.RedisCacheTTL = d
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
