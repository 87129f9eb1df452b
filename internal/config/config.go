package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the group order service
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// RabbitMQConfig holds RabbitMQ connection configuration
type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// AuthConfig holds token signing settings and the bootstrap admin account
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	AdminName     string        `yaml:"admin_name"`
	AdminPhone    string        `yaml:"admin_phone"`
	AdminPassword string        `yaml:"admin_password"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file, then applies overrides from a
// .env file next to the working directory and from the process environment.
func Load(filename string) (*Config, error) {
	config := defaults()

	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	if err := yaml.Unmarshal(content, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// a missing .env is normal outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return config, nil
}

func defaults() *Config {
	return &Config{
		Server:   ServerConfig{Port: 3000},
		Database: DatabaseConfig{Port: 5432},
		RabbitMQ: RabbitMQConfig{Port: 5672},
		Auth:     AuthConfig{TokenTTL: 24 * time.Hour},
		Log:      LogConfig{Level: "info"},
	}
}

// applyEnv overrides configuration values with environment variables
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strVars := map[string]*string{
		"DB_HOST":           &c.Database.Host,
		"DB_USER":           &c.Database.User,
		"DB_PASSWORD":       &c.Database.Password,
		"DB_NAME":           &c.Database.Database,
		"RABBITMQ_HOST":     &c.RabbitMQ.Host,
		"RABBITMQ_USER":     &c.RabbitMQ.User,
		"RABBITMQ_PASSWORD": &c.RabbitMQ.Password,
		"JWT_SECRET":        &c.Auth.JWTSecret,
		"ADMIN_NAME":        &c.Auth.AdminName,
		"ADMIN_PHONE":       &c.Auth.AdminPhone,
		"ADMIN_PASSWORD":    &c.Auth.AdminPassword,
		"LOG_LEVEL":         &c.Log.Level,
	}
	for name, dst := range strVars {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}

	intVars := map[string]*int{
		"DB_PORT":       &c.Database.Port,
		"RABBITMQ_PORT": &c.RabbitMQ.Port,
		"HTTP_PORT":     &c.Server.Port,
	}
	for name, dst := range intVars {
		v, ok := lookup(name)
		if !ok {
			continue
		}
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s value: %w", name, err)
		}
		*dst = port
	}

	if v, ok := lookup("JWT_TTL"); ok {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid JWT_TTL value: %w", err)
		}
		c.Auth.TokenTTL = ttl
	}

	return nil
}

// Needs names the parts of the configuration a run mode depends on
type Needs struct {
	API      bool
	Database bool
	Broker   bool
}

// Validate checks the settings the selected mode depends on
func (c *Config) Validate(needs Needs) error {
	if needs.Database {
		if c.Database.Host == "" || c.Database.Database == "" {
			return errors.New("database.host and database.database are required")
		}
		if c.Database.Port <= 0 {
			return errors.New("database.port must be positive")
		}
	}
	if needs.Broker {
		if c.RabbitMQ.Host == "" {
			return errors.New("rabbitmq.host is required")
		}
		if c.RabbitMQ.Port <= 0 {
			return errors.New("rabbitmq.port must be positive")
		}
	}
	if !needs.API {
		return nil
	}
	if c.Server.Port <= 0 {
		return errors.New("server.port must be positive")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	return nil
}

// DatabaseURL returns a PostgreSQL connection URL with escaped credentials
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     net.JoinHostPort(c.Database.Host, strconv.Itoa(c.Database.Port)),
		Path:     "/" + c.Database.Database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// RabbitMQURL returns an AMQP connection URL with escaped credentials
func (c *Config) RabbitMQURL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.RabbitMQ.User, c.RabbitMQ.Password),
		Host:   net.JoinHostPort(c.RabbitMQ.Host, strconv.Itoa(c.RabbitMQ.Port)),
		Path:   "/",
	}
	return u.String()
}
