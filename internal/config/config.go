// Package config предоставляет структуры и функции для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string        `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string        `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string        `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	RabbitMQURL             string        `yaml:"rabbitmq_url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries      int           `yaml:"rabbitmq_max_retries" env-default:"5"`
	RabbitMQRetryDelay      time.Duration `yaml:"rabbitmq_retry_delay" env-default:"2s"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Lifecycle               `yaml:"lifecycle"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	RedisAddress     string        `yaml:"addressredis" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	RedisPassword    string        `yaml:"password" env:"REDIS_PASSWORD"`
	RedisUser        string        `yaml:"user"`
	RedisDB          int           `yaml:"db"`
	RedisMaxRetries  int           `yaml:"max_retries"`
	RedisDialTimeout time.Duration `yaml:"dial_timeout"`
	RedisTimeout     time.Duration `yaml:"timeoutredis"`
	CacheTTL         time.Duration `yaml:"cache_ttl" env-default:"1h"`
}

// JWTToken структура для проверки jwt-токена
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY" env-required:"true"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// Lifecycle настройки классификации статусов и автопродления
type Lifecycle struct {
	ExpiringThresholdDays int           `yaml:"expiring_threshold_days" env:"EXPIRING_THRESHOLD_DAYS" env-default:"30"`
	SweepInterval         time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL" env-default:"1h"`
	DisableSweep          bool          `yaml:"disable_sweep" env:"DISABLE_SWEEP"`
	ShutdownTimeout       time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
}

// Load читает конфиг из файла path с переопределением через переменные окружения.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("%s: sweep_interval must be positive", op)
	}
	return &cfg, nil
}

// MustLoad загружает конфиг из файла, указанного в CONFIG_PATH, и завершает процесс при ошибке
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// String печатает конфиг без секретов.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"MigrationsPath: %s\n"+
			"RabbitMQ: enabled=%t retries=%d delay=%s\n"+
			"Redis: addr=%s db=%d ttl=%s\n"+
			"HTTPServer: addr=%s timeout=%s idle=%s\n"+
			"Lifecycle: threshold=%dd interval=%s disabled=%t\n",
		c.Env,
		c.MigrationsPath,
		c.RabbitMQURL != "", c.RabbitMQMaxRetries, c.RabbitMQRetryDelay,
		c.RedisAddress, c.RedisDB, c.CacheTTL,
		c.AddressHTTP, c.TimeoutHTTP, c.IdleTimeout,
		c.ExpiringThresholdDays, c.SweepInterval, c.DisableSweep,
	)
}
