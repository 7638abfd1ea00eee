package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Payments PaymentsConfig
	Push     PushConfig
	App      AppConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// DSN builds the go-sql-driver/mysql connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

type KafkaConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MockMode bool
}

type RedisConfig struct {
	Addr string
	DB   int
}

type PaymentsConfig struct {
	// WebhookSecret signs provider callbacks. Empty disables verification.
	WebhookSecret string
	// PayeeName is used in UPI links when the restaurant has no name.
	PayeeName string
}

type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	TTL             int
	Timeout         time.Duration
}

type AppConfig struct {
	PublicBaseURL    string
	InternalToken    string
	JWTSecret        string
	QRFunctionURL    string
	QRPublicFallback bool
	MagicLinkTTL     time.Duration
	PollInterval     time.Duration
	RateLimitPerSec  int
}

// Load reads the environment, falling back to defaults for unset values.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", ":8085"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "3306"),
			Username: getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASS", "password"),
			Database: getEnv("DB_NAME", "qr_ordering"),
		},
		Kafka: KafkaConfig{
			Brokers: splitCSV(getEnv("KAFKA_BROKERS", "localhost:29092")),
			GroupID: getEnv("KAFKA_GROUP_ID", "qr-ordering-notifier"),
			Topic:   getEnv("KAFKA_TOPIC", "order-status-events"),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Payments: PaymentsConfig{
			WebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			PayeeName:     getEnv("UPI_PAYEE_NAME", "Restaurant"),
		},
		Push: PushConfig{
			VAPIDPublicKey:  getEnv("VAPID_PUBLIC_KEY", ""),
			VAPIDPrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),
			Subscriber:      getEnv("VAPID_SUBSCRIBER", "mailto:ops@example.com"),
		},
		App: AppConfig{
			PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
			InternalToken: getEnv("INTERNAL_API_TOKEN", ""),
			JWTSecret:     getEnv("STAFF_JWT_SECRET", ""),
			QRFunctionURL: getEnv("QR_FUNCTION_URL", ""),
			MagicLinkTTL:  15 * time.Minute,
			PollInterval:  3 * time.Second,
		},
	}

	var err error
	if cfg.Server.ReadTimeout, err = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.Database.MaxOpenConns, err = getEnvInt("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.Database.MaxIdleConns, err = getEnvInt("DB_MAX_IDLE_CONNS", 5); err != nil {
		return nil, err
	}
	if cfg.Database.MaxLifetime, err = getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.Kafka.MockMode, err = getEnvBool("KAFKA_MOCK_MODE", false); err != nil {
		return nil, err
	}
	if cfg.Push.TTL, err = getEnvInt("PUSH_TTL_SECONDS", 3600); err != nil {
		return nil, err
	}
	if cfg.Push.Timeout, err = getEnvDuration("PUSH_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.App.QRPublicFallback, err = getEnvBool("QR_PUBLIC_FALLBACK", false); err != nil {
		return nil, err
	}
	if cfg.App.RateLimitPerSec, err = getEnvInt("RATE_LIMIT_PER_SEC", 100); err != nil {
		return nil, err
	}

	if !strings.HasPrefix(cfg.Server.Port, ":") {
		cfg.Server.Port = ":" + cfg.Server.Port
	}
	if len(cfg.Kafka.Brokers) == 0 && !cfg.Kafka.MockMode {
		return nil, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.Kafka.Topic == "" {
		return nil, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.App.RateLimitPerSec <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_SEC must be > 0")
	}
	if cfg.Database.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS must be > 0")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
