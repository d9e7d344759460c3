package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config представляет структуру конфигурации приложения
type Config struct {
	App struct {
		Port string
		Env  string
	}
	Database struct {
		DSN string // пусто — хранилище в памяти
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Kafka struct {
		Brokers []string
	}
	Razorpay struct {
		KeyID         string
		KeySecret     string
		WebhookSecret string
	}
	Product struct {
		Mode        string // single | multi
		Currency    string
		DefaultPlan string
	}
}

// LoadConfig загружает конфигурацию из .env файла и переменных окружения.
// Секреты шлюза обязательны: их отсутствие — фатальная ошибка запуска,
// а не ошибка обработки запроса.
func LoadConfig(path string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// .env опционален, в контейнере конфигурация приходит из окружения
		_ = godotenv.Load(path)
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_PORT", "8000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PRODUCT_MODE", "single")
	v.SetDefault("CURRENCY", "INR")
	v.SetDefault("DEFAULT_PLAN", "monthly")

	var cfg Config
	cfg.App.Port = v.GetString("APP_PORT")
	cfg.App.Env = v.GetString("APP_ENV")
	cfg.Database.DSN = v.GetString("DATABASE_DSN")
	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Razorpay.KeyID = v.GetString("RAZORPAY_API_KEY")
	cfg.Razorpay.KeySecret = v.GetString("RAZORPAY_API_SECRET")
	cfg.Razorpay.WebhookSecret = v.GetString("RAZORPAY_WEBHOOK_SECRET")
	cfg.Product.Mode = v.GetString("PRODUCT_MODE")
	cfg.Product.Currency = v.GetString("CURRENCY")
	cfg.Product.DefaultPlan = v.GetString("DEFAULT_PLAN")

	if brokers := v.GetString("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}

	if cfg.Razorpay.KeyID == "" || cfg.Razorpay.KeySecret == "" {
		return nil, errors.New("razorpay api credentials are not set")
	}
	if cfg.Razorpay.WebhookSecret == "" {
		return nil, errors.New("razorpay webhook secret is not set")
	}
	if cfg.Product.Mode != "single" && cfg.Product.Mode != "multi" {
		return nil, fmt.Errorf("invalid product mode %q", cfg.Product.Mode)
	}

	return &cfg, nil
}
