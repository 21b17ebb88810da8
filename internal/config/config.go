// Package config предоставляет структуры и функции для загрузки конфигурации
// сервиса из YAML-файла с переопределением через переменные окружения.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config общая структура для хранения настроек
type Config struct {
	Env        string     `yaml:"env" env:"ENV" env-default:"local"`
	Storage    Storage    `yaml:"storage"`
	HTTPServer HTTPServer `yaml:"http_server"`
	Redis      Redis      `yaml:"redis_connection"`
	RabbitMQ   RabbitMQ   `yaml:"rabbitmq"`
	Identity   Identity   `yaml:"identity"`
	Payment    Payment    `yaml:"payment"`
	Ledger     Ledger     `yaml:"ledger"`
	RateLimit  RateLimit  `yaml:"rate_limit"`
}

// Storage структура для настройки хранилища
type Storage struct {
	Driver           string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
	ConnectionString string `yaml:"connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath   string `yaml:"migrations_path" env-default:"./migrations"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// Redis структура для настройки подключения к redis. Пустой адрес отключает кэш.
type Redis struct {
	Address     string        `yaml:"address" env:"REDIS_ADDRESS"`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD"`
	User        string        `yaml:"user"`
	DB          int           `yaml:"db"`
	MaxRetries  int           `yaml:"max_retries" env-default:"3"`
	DialTimeout time.Duration `yaml:"dial_timeout" env-default:"5s"`
	Timeout     time.Duration `yaml:"timeout" env-default:"3s"`
	WalletTTL   time.Duration `yaml:"wallet_ttl" env-default:"1m"`
	MentorsTTL  time.Duration `yaml:"mentors_ttl" env-default:"5m"`
}

// RabbitMQ структура для асинхронной доставки платёжных событий
type RabbitMQ struct {
	URL           string        `yaml:"url" env:"RABBITMQ_URL"`
	MaxRetries    int           `yaml:"max_retries" env-default:"5"`
	RetryDelay    time.Duration `yaml:"retry_delay" env-default:"2s"`
	Queue         string        `yaml:"queue" env-default:"payment.events"`
	AsyncWebhooks bool          `yaml:"async_webhooks" env:"RABBITMQ_ASYNC_WEBHOOKS"`
	// MaxDeliveries — число попыток обработки события до dead-letter очереди.
	MaxDeliveries   int           `yaml:"max_deliveries" env-default:"5"`
	RedeliveryDelay time.Duration `yaml:"redelivery_delay" env-default:"1s"`
}

// Identity структура для проверки токенов внешнего провайдера идентификации
type Identity struct {
	JWTSecret string `yaml:"jwt_secret" env:"IDENTITY_JWT_SECRET" env-required:"true"`
}

// Payment структура для работы с платёжным провайдером
type Payment struct {
	ProviderAPIURL   string        `yaml:"provider_api_url" env-default:"https://api.stripe.com"`
	SecretKey        string        `yaml:"secret_key" env:"PAYMENT_SECRET_KEY"`
	WebhookSecret    string        `yaml:"webhook_secret" env:"PAYMENT_WEBHOOK_SECRET"`
	WebhookTolerance time.Duration `yaml:"webhook_tolerance" env-default:"5m"`
	SiteURL          string        `yaml:"site_url" env:"SITE_URL"`
	Prices           Prices        `yaml:"prices"`
	PassDurationDays int           `yaml:"pass_duration_days" env-default:"30"`
}

// Prices идентификаторы цен провайдера для каждого плана
type Prices struct {
	Pack1H       string `yaml:"pack_1h" env:"PRICE_PACK_1H"`
	Pack5H       string `yaml:"pack_5h" env:"PRICE_PACK_5H"`
	Pack10H      string `yaml:"pack_10h" env:"PRICE_PACK_10H"`
	LearningPass string `yaml:"learning_pass" env:"PRICE_LEARNING_PASS"`
}

// Ledger структура для настройки кредитного журнала
type Ledger struct {
	MaxRetries       int   `yaml:"max_retries" env-default:"5"`
	AllowTestCredit  bool  `yaml:"allow_test_credit" env:"LEDGER_ALLOW_TEST_CREDIT"`
	TestCreditAmount int64 `yaml:"test_credit_amount" env-default:"5"`
}

// RateLimit структура для ограничения частоты запросов авторизованных маршрутов
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"5"`
	Burst int     `yaml:"burst" env-default:"10"`
}

// PlanPriceIDs возвращает соответствие кода плана идентификатору цены провайдера.
// Планы без настроенной цены в карту не попадают.
func (p Payment) PlanPriceIDs() map[string]string {
	ids := make(map[string]string, 4)
	for plan, id := range map[string]string{
		"1h":   p.Prices.Pack1H,
		"5h":   p.Prices.Pack5H,
		"10h":  p.Prices.Pack10H,
		"pass": p.Prices.LearningPass,
	} {
		if id != "" {
			ids[plan] = id
		}
	}
	return ids
}

// Load читает конфиг по указанному пути.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("file: %s - does not exist", path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	if cfg.Storage.Driver != StorageDriverPostgres && cfg.Storage.Driver != StorageDriverMemory {
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if cfg.Storage.Driver == StorageDriverPostgres && cfg.Storage.ConnectionString == "" {
		return nil, fmt.Errorf("storage connection_string is required for driver %q", cfg.Storage.Driver)
	}
	return &cfg, nil
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}
