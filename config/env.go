package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// AppConfig is everything main needs to wire the service.
type AppConfig struct {
	Port              string `validate:"required,numeric"`
	MongoURI          string `validate:"required"`
	DBName            string `validate:"required"`
	MongoTransactions bool
	JWTSecret         string `validate:"required"`
	LogLevel          string `validate:"oneof=trace debug info warn warning error fatal panic"`
	CORSOrigins       []string

	Redis  RedisConfig
	Profit ProfitConfig
	SMTP   SMTPConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int `validate:"gte=0"`
}

type ProfitConfig struct {
	Timezone        string        `validate:"required"`
	Schedule        string        `validate:"required"`
	StaleAfter      time.Duration `validate:"gt=0"`
	ResetActivation bool
}

type SMTPConfig struct {
	Host       string
	Port       int `validate:"gte=0,lte=65535"`
	User       string
	Pass       string
	From       string
	AlertEmail string `validate:"omitempty,email"`
}

// AlertsEnabled reports whether failed runs should be mailed to an admin.
func (s SMTPConfig) AlertsEnabled() bool {
	return s.Host != "" && s.AlertEmail != ""
}

// Load reads .env (if present) and the environment into a validated AppConfig.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "2525"))
	if err != nil {
		return nil, fmt.Errorf("SMTP_PORT: %w", err)
	}
	staleAfter, err := time.ParseDuration(getEnv("CRON_STALE_AFTER", "2h"))
	if err != nil {
		return nil, fmt.Errorf("CRON_STALE_AFTER: %w", err)
	}

	cfg := &AppConfig{
		Port:              getEnv("PORT", "8080"),
		MongoURI:          getEnv("MONGO_URI", os.Getenv("MONGODB_URI")),
		DBName:            getEnv("DB_NAME", "herbreserve"),
		MongoTransactions: getBool("MONGO_TRANSACTIONS", false),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		CORSOrigins:       splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Profit: ProfitConfig{
			Timezone:        getEnv("PROFIT_TIMEZONE", "Asia/Kolkata"),
			Schedule:        getEnv("DAILY_PROFIT_CRON", "30 0 * * *"),
			StaleAfter:      staleAfter,
			ResetActivation: getBool("PROFIT_RESET_ACTIVATION", true),
		},
		SMTP: SMTPConfig{
			Host:       os.Getenv("SMTP_HOST"),
			Port:       smtpPort,
			User:       os.Getenv("SMTP_USER"),
			Pass:       os.Getenv("SMTP_PASS"),
			From:       os.Getenv("FROM_EMAIL"),
			AlertEmail: os.Getenv("ADMIN_ALERT_EMAIL"),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
