package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const Production = "production"

type ServerOptions struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"GO_APP_ENV" envDefault:"development"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	NodeID      int64  `env:"NODE_ID" envDefault:"1"`
}

type DatabaseOptions struct {
	Driver          string        `env:"DB_DRIVER" envDefault:"postgres"`
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            string        `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER" envDefault:"postgres"`
	Password        string        `env:"DB_PASSWORD"`
	Name            string        `env:"DB_NAME" envDefault:"backoffice"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"100"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	LogLevel        string        `env:"DB_LOG_LEVEL" envDefault:"warn"`
}

// DSN builds the driver specific connection string.
func (d *DatabaseOptions) DSN() string {
	if d.Driver == "mysql" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.Name)
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type RedisOptions struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     string `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

func (r *RedisOptions) Addr() string {
	return r.Host + ":" + r.Port
}

type JWTOptions struct {
	Secret      string `env:"JWT_SECRET" envDefault:"your-secret-key-change-this"`
	ExpireHours int    `env:"JWT_EXPIRE_HOURS" envDefault:"3"`
}

type MinIOOptions struct {
	ServerURL    string `env:"MINIO_SERVER_URL" envDefault:"http://localhost:9000"`
	RootUser     string `env:"MINIO_ROOT_USER" envDefault:"minioadmin"`
	RootPassword string `env:"MINIO_ROOT_PASSWORD" envDefault:"minioadmin"`
	UseSSL       bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	BucketName   string `env:"MINIO_BUCKET_NAME" envDefault:"backoffice-assets"`
	PublicURL    string `env:"MINIO_PUBLIC_URL"`
}

type SecurityOptions struct {
	EncryptRounds      int      `env:"SECURITY_ENCRYPT_ROUNDS" envDefault:"10"`
	PasswordLevel      string   `env:"SECURITY_PASSWORD_LEVEL" envDefault:"simple"`
	UnoSeeds           []string `env:"SECURITY_UNO_SEEDS" envSeparator:"," envDefault:"888"`
	DefaultPassword    string   `env:"SECURITY_DEFAULT_PASSWORD" envDefault:"Admin@123456"`
	SuperAdminUsername string   `env:"SUPER_ADMIN_USERNAME" envDefault:"admin"`
	SuperAdminEmail    string   `env:"SUPER_ADMIN_EMAIL" envDefault:"admin@backoffice.local"`
	SuperAdminPassword string   `env:"SUPER_ADMIN_PASSWORD" envDefault:"Admin@123456"`
}

type TreeOptions struct {
	MaxDepth int `env:"TREE_MAX_DEPTH" envDefault:"32"`
}

type MetricsOptions struct {
	Enabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	Path    string `env:"METRICS_PATH" envDefault:"/metrics"`
}

type RateLimitOptions struct {
	MaxRequests   int           `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"300"`
	TimeWindow    time.Duration `env:"RATE_LIMIT_TIME_WINDOW" envDefault:"1m"`
	BlockDuration time.Duration `env:"RATE_LIMIT_BLOCK_DURATION" envDefault:"5m"`
}

type Config struct {
	Server    ServerOptions
	Database  DatabaseOptions
	Redis     RedisOptions
	JWT       JWTOptions
	MinIO     MinIOOptions
	Security  SecurityOptions
	Tree      TreeOptions
	Metrics   MetricsOptions
	RateLimit RateLimitOptions
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, Production)
}

var (
	cfg  *Config
	mu   sync.Mutex
	envs = []string{".env", "../.env", "../../.env"}
)

// LoadConfig loads .env (first file found wins) and parses the environment.
func LoadConfig() (*Config, error) {
	envLoaded := false
	for _, path := range envs {
		if err := godotenv.Load(path); err == nil {
			logrus.WithField("path", path).Info("environment loaded")
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		logrus.Debug(".env file not found, using system environment variables")
	}

	c := &Config{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return c, nil
}

// GetConfig returns the process wide configuration, loading it on first use.
func GetConfig() *Config {
	mu.Lock()
	defer mu.Unlock()
	if cfg == nil {
		c, err := LoadConfig()
		if err != nil {
			panic(err)
		}
		cfg = c
	}
	return cfg
}

// SetConfig replaces the process wide configuration.
func SetConfig(c *Config) {
	mu.Lock()
	defer mu.Unlock()
	cfg = c
}
