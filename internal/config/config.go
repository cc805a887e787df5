package config

import (
	"fmt"
	"log"
	"net"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/neo4j/testinstance/internal/logger"
)

const (
	DefaultHost            = "neo4j"
	DefaultHTTPPort        = 7474
	DefaultBoltPort        = 7687
	DefaultUsername        = "neo4j"
	DefaultPassword        = "neo4j"
	DefaultTestPassword    = "testing"
	DefaultConnectAttempts = 300
	DefaultConnectInterval = 500 * time.Millisecond
	DefaultRotateAttempts  = 20
	DefaultRotateInterval  = time.Second
	DefaultHTTPTimeout     = 10 * time.Second
	DefaultImage           = "neo4j:3.5-community"
)

// RetryPolicy bounds a retry loop: at most MaxAttempts tries, Interval apart.
type RetryPolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

func (p RetryPolicy) validate(name string) error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("%s attempts must be greater than 0, got %d", name, p.MaxAttempts)
	}
	if p.Interval < 0 {
		return fmt.Errorf("%s interval must not be negative, got %s", name, p.Interval)
	}
	return nil
}

// Config holds the test instance configuration
type Config struct {
	Host            string
	HTTPPort        int
	BoltPort        int
	DefaultUsername string // Credential the instance ships with
	DefaultPassword string
	Password        string // Credential the tests use once rotated
	Database        string // Empty means the server default database
	Connect         RetryPolicy
	Rotate          RetryPolicy
	HTTPTimeout     time.Duration
	UseContainer    bool   // If true, the fixture starts a throwaway container
	Image           string // Container image used when UseContainer is set
	LogLevel        string
	LogFormat       string
}

// BoltURI returns the bolt connection URI of the instance.
func (c *Config) BoltURI() string {
	return "bolt://" + net.JoinHostPort(c.Host, strconv.Itoa(c.BoltPort))
}

// HTTPAddress returns the base URL of the HTTP admin endpoint.
func (c *Config) HTTPAddress() string {
	return "http://" + net.JoinHostPort(c.Host, strconv.Itoa(c.HTTPPort))
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("configuration is required but was nil")
	}
	if c.Host == "" {
		return fmt.Errorf("Neo4j host is required but was empty")
	}
	if err := validatePort("HTTP", c.HTTPPort); err != nil {
		return err
	}
	if err := validatePort("bolt", c.BoltPort); err != nil {
		return err
	}
	if c.DefaultUsername == "" {
		return fmt.Errorf("Neo4j default username is required but was empty")
	}
	if c.DefaultPassword == "" {
		return fmt.Errorf("Neo4j default password is required but was empty")
	}
	if c.Password == "" {
		return fmt.Errorf("Neo4j test password is required but was empty")
	}
	if c.Password == c.DefaultPassword {
		return fmt.Errorf("Neo4j test password must differ from the default password")
	}
	if err := c.Connect.validate("connect"); err != nil {
		return err
	}
	if err := c.Rotate.validate("rotate"); err != nil {
		return err
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP timeout must be greater than 0, got %s", c.HTTPTimeout)
	}
	if c.UseContainer && c.Image == "" {
		return fmt.Errorf("container image is required when NEO4J_TEST_USE_CONTAINER is enabled")
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s port must be between 1 and 65535, got %d", name, port)
	}
	return nil
}

// CLIOverrides holds optional configuration values from CLI flags
type CLIOverrides struct {
	Host     string
	HTTPPort string
	BoltPort string
	Password string
	LogLevel string
}

// Default returns the configuration used when no environment variable is set.
func Default() *Config {
	return &Config{
		Host:            DefaultHost,
		HTTPPort:        DefaultHTTPPort,
		BoltPort:        DefaultBoltPort,
		DefaultUsername: DefaultUsername,
		DefaultPassword: DefaultPassword,
		Password:        DefaultTestPassword,
		Connect:         RetryPolicy{MaxAttempts: DefaultConnectAttempts, Interval: DefaultConnectInterval},
		Rotate:          RetryPolicy{MaxAttempts: DefaultRotateAttempts, Interval: DefaultRotateInterval},
		HTTPTimeout:     DefaultHTTPTimeout,
		Image:           DefaultImage,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// LoadConfig loads configuration from environment variables, applies CLI overrides, and validates.
// CLI flag values take precedence over environment variables.
func LoadConfig(cliOverrides *CLIOverrides) (*Config, error) {
	logLevel := GetEnvWithDefault("NEO4J_LOG_LEVEL", "info")
	logFormat := GetEnvWithDefault("NEO4J_LOG_FORMAT", "text")

	if !slices.Contains(logger.ValidLogLevels, logLevel) {
		fmt.Fprintf(os.Stderr, "Warning: invalid NEO4J_LOG_LEVEL '%s', using default 'info'. Valid values: %v\n", logLevel, logger.ValidLogLevels)
		logLevel = "info"
	}
	if !slices.Contains(logger.ValidLogFormats, logFormat) {
		fmt.Fprintf(os.Stderr, "Warning: invalid NEO4J_LOG_FORMAT '%s', using default 'text'. Valid values: %v\n", logFormat, logger.ValidLogFormats)
		logFormat = "text"
	}

	cfg := &Config{
		Host:            GetEnvWithDefault("NEO4J_TEST_HOST", DefaultHost),
		HTTPPort:        ParseInt(GetEnv("NEO4J_TEST_HTTP_PORT"), DefaultHTTPPort),
		BoltPort:        ParseInt(GetEnv("NEO4J_TEST_BOLT_PORT"), DefaultBoltPort),
		DefaultUsername: GetEnvWithDefault("NEO4J_TEST_DEFAULT_USERNAME", DefaultUsername),
		DefaultPassword: GetEnvWithDefault("NEO4J_TEST_DEFAULT_PASSWORD", DefaultPassword),
		Password:        GetEnvWithDefault("NEO4J_TEST_PASSWORD", DefaultTestPassword),
		Database:        GetEnv("NEO4J_TEST_DATABASE"),
		Connect: RetryPolicy{
			MaxAttempts: ParseInt(GetEnv("NEO4J_TEST_CONNECT_ATTEMPTS"), DefaultConnectAttempts),
			Interval:    ParseDuration(GetEnv("NEO4J_TEST_CONNECT_INTERVAL"), DefaultConnectInterval),
		},
		Rotate: RetryPolicy{
			MaxAttempts: ParseInt(GetEnv("NEO4J_TEST_ROTATE_ATTEMPTS"), DefaultRotateAttempts),
			Interval:    ParseDuration(GetEnv("NEO4J_TEST_ROTATE_INTERVAL"), DefaultRotateInterval),
		},
		HTTPTimeout:  ParseDuration(GetEnv("NEO4J_TEST_HTTP_TIMEOUT"), DefaultHTTPTimeout),
		UseContainer: ParseBool(GetEnv("NEO4J_TEST_USE_CONTAINER"), false),
		Image:        GetEnvWithDefault("NEO4J_TEST_IMAGE", DefaultImage),
		LogLevel:     logLevel,
		LogFormat:    logFormat,
	}

	if cliOverrides != nil {
		if cliOverrides.Host != "" {
			cfg.Host = cliOverrides.Host
		}
		if cliOverrides.HTTPPort != "" {
			cfg.HTTPPort = ParseInt(cliOverrides.HTTPPort, cfg.HTTPPort)
		}
		if cliOverrides.BoltPort != "" {
			cfg.BoltPort = ParseInt(cliOverrides.BoltPort, cfg.BoltPort)
		}
		if cliOverrides.Password != "" {
			cfg.Password = cliOverrides.Password
		}
		if cliOverrides.LogLevel != "" {
			cfg.LogLevel = cliOverrides.LogLevel
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// GetEnv returns the value of an environment variable or empty string if not set
func GetEnv(key string) string {
	return os.Getenv(key)
}

// GetEnvWithDefault returns the value of an environment variable or a default value
func GetEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ParseBool parses a string to bool using strconv.ParseBool.
// Returns the default value if the string is empty or invalid.
// Logs a warning if the value is non-empty but invalid.
func ParseBool(value string, defaultValue bool) bool {
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: Invalid boolean value %q, using default: %v", value, defaultValue)
		return defaultValue
	}
	return parsed
}

// ParseInt parses a base 10 string to int.
// Returns the default value if the string is empty or invalid.
func ParseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: Invalid integer value %q, using default: %v", value, defaultValue)
		return defaultValue
	}
	return parsed
}

// ParseDuration parses a Go duration string such as "500ms" or "2s".
// Returns the default value if the string is empty or invalid.
func ParseDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: Invalid duration value %q, using default: %v", value, defaultValue)
		return defaultValue
	}
	return parsed
}
