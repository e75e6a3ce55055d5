package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/likithgowdabh/eventstack/internal/domain"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Client  ClientConfig
	Logging LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string
	Host string
	Env  string // "development" or "production"
}

// ClientConfig holds vote channel client configuration
type ClientConfig struct {
	Origin               string // page origin the channel URL is derived from
	EventID              string
	PageFile             string // YAML page description
	CurrentUser          string
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// Load loads configuration from environment variables with defaults.
// A .env file in the working directory is read first when present.
func Load() *Config {
	// Variables already set in the environment win over .env
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8888"),
			Host: getEnv("HOST", "0.0.0.0"),
			Env:  getEnv("ENV", "development"),
		},
		Client: ClientConfig{
			Origin:               getEnv("VOTE_ORIGIN", "http://localhost:8888"),
			EventID:              getEnv("VOTE_EVENT_ID", ""),
			PageFile:             getEnv("VOTE_PAGE_FILE", ""),
			CurrentUser:          getEnv("CURRENT_USER", ""),
			MaxReconnectAttempts: getEnvInt("RECONNECT_MAX_ATTEMPTS", 5),
			ReconnectDelay:       time.Duration(getEnvInt("RECONNECT_DELAY_MS", 3000)) * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// Page describes an event page: the slots it renders and who views it
type Page struct {
	URL         string          `yaml:"page_url"`
	EventID     string          `yaml:"event_id"`
	Slots       []domain.SlotID `yaml:"slots"`
	CurrentUser *domain.User    `yaml:"current_user"`
}

// LoadPage reads a page description file
func LoadPage(path string) (*Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("page file %s not found: %w", path, err)
		}
		return nil, fmt.Errorf("read page file: %w", err)
	}

	var page Page
	if err := yaml.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("parse page file %s: %w", path, err)
	}
	if page.CurrentUser != nil && page.CurrentUser.Username == "" {
		page.CurrentUser = nil
	}
	return &page, nil
}

// getEnv returns an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an environment variable as an integer or a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
