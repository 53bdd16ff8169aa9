package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/samirrijal/canvass/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Grid      GridConfig      `mapstructure:"grid"`
	Export    ExportConfig    `mapstructure:"export"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// NATSConfig configures event publishing. An empty URL disables it.
type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// ValkeyConfig configures the geocode cache. An empty Addr disables it.
type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

// TemporalConfig configures async enumeration jobs. An empty HostPort
// disables them.
type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type GeocoderConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	BaseURL         string  `mapstructure:"base_url"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds"`
	RatePerSecond   float64 `mapstructure:"rate_per_second"`
	CacheTTLSeconds int     `mapstructure:"cache_ttl_seconds"`
	StripSuffix     string  `mapstructure:"strip_suffix"`
}

type GridConfig struct {
	DefaultStep string `mapstructure:"default_step"`
	// MaxSamples caps the lattice points one region may produce.
	MaxSamples int `mapstructure:"max_samples"`
}

type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Enabled      bool   `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: CANVASS_GEOCODER_API_KEY → geocoder.api_key
	v.SetEnvPrefix("CANVASS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 300)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "canvass")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "canvass")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("temporal.host_port", "")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "canvass-enumeration")
	v.SetDefault("geocoder.api_key", "")
	v.SetDefault("geocoder.base_url", "https://maps.googleapis.com/maps/api/geocode/json")
	v.SetDefault("geocoder.timeout_seconds", 10)
	v.SetDefault("geocoder.rate_per_second", 25)
	v.SetDefault("geocoder.cache_ttl_seconds", 7*24*3600)
	v.SetDefault("geocoder.strip_suffix", ", USA")
	v.SetDefault("grid.default_step", "medium")
	v.SetDefault("grid.max_samples", 4_000_000)
	v.SetDefault("export.dir", ".")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_endpoint", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
}

// DefaultStep parses grid.default_step.
func (c *Config) DefaultStep() (domain.StepSize, error) {
	return domain.ParseStepSize(c.Grid.DefaultStep)
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Geocoder.TimeoutSeconds <= 0 {
		errs = append(errs, "geocoder.timeout_seconds must be positive")
	}
	if c.Geocoder.RatePerSecond < 0 {
		errs = append(errs, "geocoder.rate_per_second must not be negative")
	}
	if c.Temporal.HostPort != "" && c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal.task_queue is required when temporal.host_port is set")
	}
	if _, err := c.DefaultStep(); err != nil {
		errs = append(errs, fmt.Sprintf("grid.default_step: %v", err))
	}
	if c.Grid.MaxSamples <= 0 {
		errs = append(errs, "grid.max_samples must be positive")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("logging.format must be json or text, got %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
