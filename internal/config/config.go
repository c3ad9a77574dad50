package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment    string
	LogLevel       string
	DBDSN          string
	HTTPAddr       string
	MigrationsPath string
	Timezone       string

	Scheduling SchedulingConfig
	Redis      RedisConfig
	Notify     NotifyConfig
}

// SchedulingConfig параметры генерации слотов и обхода статусов
type SchedulingConfig struct {
	GenerationWindowDays int           // горизонт генерации recurring слотов
	OnTimeTolerance      time.Duration // старт позже планового на это время считается опозданием
	ReconcileCron        string
	GenerateCron         string
	SweepLockTTL         time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type NotifyConfig struct {
	Timeout         time.Duration
	TelegramToken   string
	SMSGatewayURL   string
	SMSGatewayToken string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	SMTPFrom        string
	KafkaBrokers    []string
	KafkaTopic      string
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var errs []string
	p := parser{errs: &errs}

	cfg := &Config{
		Environment:    p.str("ENV", "development"),
		LogLevel:       p.str("LOG_LEVEL", "info"),
		DBDSN:          os.Getenv("DB_DSN"),
		HTTPAddr:       p.str("HTTP_ADDR", ":8080"),
		MigrationsPath: p.str("MIGRATIONS_PATH", "migrations"),
		Timezone:       p.str("TIMEZONE", "UTC"),
		Scheduling: SchedulingConfig{
			GenerationWindowDays: p.integer("GENERATION_WINDOW_DAYS", 7),
			OnTimeTolerance:      p.duration("ON_TIME_TOLERANCE", 5*time.Minute),
			ReconcileCron:        p.str("RECONCILE_CRON", "@every 1m"),
			GenerateCron:         p.str("GENERATE_CRON", "15 0 * * *"),
			SweepLockTTL:         p.duration("SWEEP_LOCK_TTL", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       p.integer("REDIS_DB", 0),
		},
		Notify: NotifyConfig{
			Timeout:         p.duration("NOTIFY_TIMEOUT", 10*time.Second),
			TelegramToken:   os.Getenv("TELEGRAM_TOKEN"),
			SMSGatewayURL:   os.Getenv("SMS_GATEWAY_URL"),
			SMSGatewayToken: os.Getenv("SMS_GATEWAY_TOKEN"),
			SMTPHost:        os.Getenv("SMTP_HOST"),
			SMTPPort:        p.integer("SMTP_PORT", 587),
			SMTPUsername:    os.Getenv("SMTP_USERNAME"),
			SMTPPassword:    os.Getenv("SMTP_PASSWORD"),
			SMTPFrom:        os.Getenv("SMTP_FROM"),
			KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
			KafkaTopic:      p.str("KAFKA_STATUS_TOPIC", "session-status"),
		},
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		errs = append(errs, "DB_DSN is required but not set")
	}
	if cfg.Scheduling.GenerationWindowDays < 1 {
		errs = append(errs, "GENERATION_WINDOW_DAYS must be positive")
	}
	if cfg.Scheduling.OnTimeTolerance < 0 {
		errs = append(errs, "ON_TIME_TOLERANCE must not be negative")
	}
	if cfg.Scheduling.SweepLockTTL <= 0 {
		errs = append(errs, "SWEEP_LOCK_TTL must be positive")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("TIMEZONE %q: %v", cfg.Timezone, err))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// Location часовой пояс, в котором интерпретируется время суток recurring шаблонов
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

// parser читает переменные окружения и копит ошибки разбора
type parser struct {
	errs *[]string
}

func (p parser) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (p parser) integer(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Sprintf("%s: %q is not an integer", key, v))
		return def
	}
	return i
}

func (p parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Sprintf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
