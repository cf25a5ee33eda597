package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Rest     RestConfig     `mapstructure:"rest"`
	Database DatabaseConfig `mapstructure:"database"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Site     SiteConfig     `mapstructure:"site"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

type HTTPConfig struct {
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// BackendConfig selects the remote store: "rest", "postgres" or "mysql".
type BackendConfig struct {
	Driver string `mapstructure:"driver"`
}

type RestConfig struct {
	URL   string `mapstructure:"url"`
	Key   string `mapstructure:"key"`
	Table string `mapstructure:"table"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level"`
}

type AdminConfig struct {
	Password   string        `mapstructure:"password"`
	Secret     string        `mapstructure:"secret"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

type SiteConfig struct {
	PublicURL        string `mapstructure:"public_url"`
	ContactPhone     string `mapstructure:"contact_phone"`
	Currency         string `mapstructure:"currency"`
	PlaceholderImage string `mapstructure:"placeholder_image"`
	FeaturedCount    int    `mapstructure:"featured_count"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.timeout", "15s")

	v.SetDefault("backend.driver", "rest")
	v.SetDefault("rest.table", "properties")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.name", "catalog")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.ttl", "5m")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "property-catalog")
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("tracing.version", "dev")

	v.SetDefault("logger.level", "info")

	v.SetDefault("admin.password", "admin")
	v.SetDefault("admin.session_ttl", "12h")

	v.SetDefault("site.currency", "R$")
	v.SetDefault("site.placeholder_image", "https://picsum.photos/400/300")
	v.SetDefault("site.featured_count", 3)

	v.SetDefault("cors.allowed_origins", []string{"*"})
}

func LoadConfig() (*Config, error) {
	// a missing .env is fine, the environment may already be populated
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Backend.Driver {
	case "rest":
		if c.Rest.URL == "" {
			return errors.New("rest.url is required for the rest backend")
		}
	case "postgres":
		if c.Postgres.URL == "" {
			return errors.New("postgres.url is required for the postgres backend")
		}
	case "mysql":
	default:
		return fmt.Errorf("unknown backend driver %q", c.Backend.Driver)
	}

	if c.Admin.Secret == "" {
		return errors.New("admin.secret is required")
	}

	return nil
}

// MySQLDSN builds the go-sql-driver DSN from the database section.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name)
}

func MustLoadConfig() *Config {
	config, err := LoadConfig()
	if err != nil {
		log.Fatalf("Could not load configuration: %v", err)
	}
	return config
}
