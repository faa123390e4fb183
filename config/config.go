package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/kosarica/allocation-service/internal/optimizer"
	"github.com/kosarica/allocation-service/internal/solver"
	"github.com/kosarica/allocation-service/internal/telemetry"
)

// EnvPrefix is the prefix of environment overrides, e.g. ALLOCATOR_SERVER_PORT.
const EnvPrefix = "ALLOCATOR"

// Config holds the application configuration
type Config struct {
	Server    ServerConfig                   `mapstructure:"server"`
	Logging   LoggingConfig                  `mapstructure:"logging"`
	Solver    solver.Config                  `mapstructure:"solver"`
	Runner    RunnerConfig                   `mapstructure:"runner"`
	Storage   StorageConfig                  `mapstructure:"storage"`
	Telemetry telemetry.Config               `mapstructure:"telemetry"`
	Scenarios ScenariosConfig                `mapstructure:"scenarios"`
	Breaker   optimizer.CircuitBreakerConfig `mapstructure:"breaker"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// InternalAPIKey may hold several comma-separated keys during rotation.
	InternalAPIKey string          `mapstructure:"internal_api_key"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig holds the service-wide request rate limit
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

// RunnerConfig controls batch scenario runs
type RunnerConfig struct {
	// Concurrency bounds how many scenarios run at once.
	Concurrency int `mapstructure:"concurrency"`
	// Formats lists the persisted result files: json, csv, xlsx.
	Formats []string `mapstructure:"formats"`
	// DefaultCapacity is used when the store input has no capacity column.
	// 0 means the total stock, i.e. unconstrained.
	DefaultCapacity int `mapstructure:"default_capacity"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type     string `mapstructure:"type"`
	BasePath string `mapstructure:"base_path"`
}

// ScenariosConfig points at the scenario catalogue
type ScenariosConfig struct {
	// File is an optional catalogue; presets are always available.
	File    string `mapstructure:"file"`
	Default string `mapstructure:"default"`
}

// ErrInvalidConfig describes a configuration value that cannot be used.
type ErrInvalidConfig struct {
	Field  string
	Reason string
}

func (e ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

var globalConfig *Config

// Load loads the configuration from file, .env, and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := loadEnvFile(); err != nil {
		// .env is optional
		log.Debug().Err(err).Msg(".env file not loaded")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Validate checks values that have no usable fallback.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return ErrInvalidConfig{Field: "server.port", Reason: "must be between 1 and 65535"}
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 {
		return ErrInvalidConfig{Field: "server.rate_limit.requests_per_second", Reason: "must be non-negative"}
	}
	if c.Runner.Concurrency < 1 {
		return ErrInvalidConfig{Field: "runner.concurrency", Reason: "must be at least 1"}
	}
	if c.Runner.DefaultCapacity < 0 {
		return ErrInvalidConfig{Field: "runner.default_capacity", Reason: "must be non-negative"}
	}
	for _, f := range c.Runner.Formats {
		switch f {
		case "json", "csv", "xlsx":
		default:
			return ErrInvalidConfig{Field: "runner.formats", Reason: fmt.Sprintf("unknown format %q", f)}
		}
	}
	switch c.Storage.Type {
	case "local", "memory":
	default:
		return ErrInvalidConfig{Field: "storage.type", Reason: fmt.Sprintf("unsupported type %q", c.Storage.Type)}
	}
	if c.Solver.MaxVariables < 0 || c.Solver.MaxNodes < 0 || c.Solver.MaxCells < 0 || c.Solver.RelativeGap < 0 {
		return ErrInvalidConfig{Field: "solver", Reason: "limits must be non-negative"}
	}
	if c.Breaker.MaxFailures < 1 {
		return ErrInvalidConfig{Field: "breaker.max_failures", Reason: "must be at least 1"}
	}
	return nil
}

// loadEnvFile loads .env file by parsing KEY=VALUE lines and setting them as environment variables
func loadEnvFile() error {
	for _, path := range []string{".", "./config"} {
		envFile := fmt.Sprintf("%s/.env", path)
		if _, err := os.Stat(envFile); err == nil {
			if err := loadDotEnvFile(envFile); err == nil {
				return nil
			}
		}
	}
	return fmt.Errorf("no .env file found")
}

// loadDotEnvFile reads a .env file and sets environment variables
func loadDotEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.Trim(strings.TrimSpace(parts[1]), "\"'")
			// Variables already set in the environment win.
			if _, exists := os.LookupEnv(key); !exists {
				os.Setenv(key, value)
			}
		}
	}
	return scanner.Err()
}

// bindEnvVars binds unprefixed environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT")
	v.BindEnv("server.host", EnvPrefix+"_SERVER_HOST", "HOST")
	v.BindEnv("server.internal_api_key", EnvPrefix+"_SERVER_INTERNAL_API_KEY", "INTERNAL_API_KEY")

	v.BindEnv("logging.level", EnvPrefix+"_LOGGING_LEVEL", "LOG_LEVEL")

	v.BindEnv("storage.base_path", EnvPrefix+"_STORAGE_BASE_PATH", "STORAGE_PATH")

	v.BindEnv("telemetry.endpoint", EnvPrefix+"_TELEMETRY_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.service_name", EnvPrefix+"_TELEMETRY_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.service_version", EnvPrefix+"_TELEMETRY_SERVICE_VERSION", "VERSION")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")
	// Exact solves may run for minutes.
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 20*time.Minute)
	v.SetDefault("server.internal_api_key", "")
	v.SetDefault("server.rate_limit.requests_per_second", 2.0)
	v.SetDefault("server.rate_limit.burst", 4)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.no_color", false)

	sd := solver.DefaultConfig()
	v.SetDefault("solver.max_variables", sd.MaxVariables)
	v.SetDefault("solver.max_cells", sd.MaxCells)
	v.SetDefault("solver.max_nodes", sd.MaxNodes)
	v.SetDefault("solver.relative_gap", sd.RelativeGap)
	v.SetDefault("solver.tolerance", sd.Tolerance)
	v.SetDefault("solver.integrality_tolerance", sd.IntegralityTolerance)

	v.SetDefault("runner.concurrency", 2)
	v.SetDefault("runner.formats", []string{"json", "csv", "xlsx"})
	v.SetDefault("runner.default_capacity", 0)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.base_path", "./data/results")

	// Telemetry is on when an OTLP endpoint is present in the environment.
	td := telemetry.GetConfigFromEnv()
	v.SetDefault("telemetry.enabled", td.Enabled)
	v.SetDefault("telemetry.endpoint", td.Endpoint)
	v.SetDefault("telemetry.service_name", td.ServiceName)
	v.SetDefault("telemetry.service_version", "")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.sample_ratio", td.SampleRatio)

	v.SetDefault("scenarios.file", "")
	v.SetDefault("scenarios.default", "hybrid")

	bd := optimizer.DefaultCircuitBreakerConfig()
	v.SetDefault("breaker.max_failures", bd.MaxFailures)
	v.SetDefault("breaker.reset_timeout", bd.ResetTimeout)
	v.SetDefault("breaker.half_open_max_calls", bd.HalfOpenMaxCalls)
}

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}
