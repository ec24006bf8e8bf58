package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const (
	DriverMemory   = "memory"
	DriverLocalFS  = "localfs"
	DriverPostgres = "postgres"
)

type Config struct {
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Port     string `envconfig:"PORT" default:"8080"`

	CatalogBaseURL string        `envconfig:"CATALOG_BASE_URL" default:"https://v2.api.noroff.dev"`
	CatalogTimeout time.Duration `envconfig:"CATALOG_TIMEOUT" default:"10s"`

	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"localfs"`
	StorageDir    string `envconfig:"STORAGE_DIR" default:"data"`
	Namespace     string `envconfig:"STORAGE_NAMESPACE" default:"local"`
	DBDSN         string `envconfig:"DB_DSN"`

	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"rainydays.storage"`

	DeliveryDays  int           `envconfig:"DELIVERY_DAYS" default:"10"`
	CheckoutDelay time.Duration `envconfig:"CHECKOUT_DELAY" default:"2s"`

	AllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	SessionTTL     time.Duration `envconfig:"SESSION_TTL" default:"720h"`
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, errors.Wrap(err, "read environment")
	}
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	switch c.StorageDriver {
	case DriverMemory, DriverLocalFS, DriverPostgres:
	default:
		return nil, errors.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.DeliveryDays < 7 || c.DeliveryDays > 14 {
		return nil, errors.Errorf("DELIVERY_DAYS must be between 7 and 14, got %d", c.DeliveryDays)
	}
	if c.StorageDriver == DriverPostgres && strings.TrimSpace(c.DBDSN) == "" {
		c.DBDSN = dsnFromParts()
	}
	return &c, nil
}

func (c *Config) IsDev() bool {
	e := strings.ToLower(c.Env)
	return e == "" || e == "development" || e == "dev"
}

func dsnFromParts() string {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", getEnv("POSTGRES_USER", "postgres"))
	pass := getEnv("DB_PASSWORD", getEnv("POSTGRES_PASSWORD", "postgres"))
	name := getEnv("DB_NAME", getEnv("POSTGRES_DB", "rainydays"))
	ssl := getEnv("DB_SSLMODE", "disable")
	return "host=" + host + " user=" + user + " password=" + pass + " dbname=" + name + " port=" + port + " sslmode=" + ssl
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
