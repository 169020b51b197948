// Package config loads and validates recon configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/recon/internal/errors"
	"github.com/anstrom/recon/internal/logging"
)

const (
	defaultFDMargin     = 100
	defaultChunkSize    = 4000
	defaultMaxRetries   = 3
	defaultStashDelay   = 5 * time.Second
	defaultTimeout      = 5 * time.Second
	defaultTickInterval = time.Millisecond
	defaultDatabasePort = 5432
)

// Config represents the complete recon configuration.
type Config struct {
	Engine   EngineConfig   `yaml:"engine" json:"engine" mapstructure:"engine"`
	Probe    ProbeConfig    `yaml:"probe" json:"probe" mapstructure:"probe"`
	Output   OutputConfig   `yaml:"output" json:"output" mapstructure:"output"`
	Logging  logging.Config `yaml:"logging" json:"logging" mapstructure:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics" mapstructure:"metrics"`
	Database DatabaseConfig `yaml:"database" json:"database" mapstructure:"database"`
}

// EngineConfig holds scheduling-loop settings.
type EngineConfig struct {
	// Descriptors kept back from RLIMIT_NOFILE for the process itself
	FDMargin int `yaml:"fd_margin" json:"fd_margin" mapstructure:"fd_margin" validate:"gte=0"`

	// Hard cap on in-flight jobs; 0 means the descriptor limit alone decides
	MaxJobs int `yaml:"max_jobs" json:"max_jobs" mapstructure:"max_jobs" validate:"gte=0"`

	// Per-job deadline
	Timeout time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout" validate:"gt=0"`

	// Backoff applied to resource-exhausted jobs before re-admission
	StashDelay time.Duration `yaml:"stash_delay" json:"stash_delay" mapstructure:"stash_delay" validate:"gte=0"`

	// Maximum targets pulled from the feeder per round
	ChunkSize int `yaml:"chunk_size" json:"chunk_size" mapstructure:"chunk_size" validate:"gt=0"`

	// Immediate re-admissions allowed for unclassified failures
	MaxRetries int `yaml:"max_retries" json:"max_retries" mapstructure:"max_retries" validate:"gte=0"`

	// Pause between scheduling ticks
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval" mapstructure:"tick_interval" validate:"gte=0"`

	// Spawn rate limit
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit" mapstructure:"rate_limit"`
}

// RateLimitConfig holds spawn rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second" json:"requests_per_second" mapstructure:"requests_per_second" validate:"required_if=Enabled true,gte=0"`
	BurstSize         int  `yaml:"burst_size" json:"burst_size" mapstructure:"burst_size" validate:"gte=0"`
}

// ProbeConfig holds probe method settings.
type ProbeConfig struct {
	Method string `yaml:"method" json:"method" mapstructure:"method" validate:"oneof=tcp socks5 dns snmp tls"`

	// Address a SOCKS5 candidate is asked to CONNECT to
	SOCKSCanary string `yaml:"socks_canary" json:"socks_canary" mapstructure:"socks_canary" validate:"required,hostname_port"`

	// Name queried by the dns probe
	DNSQuestion string `yaml:"dns_question" json:"dns_question" mapstructure:"dns_question" validate:"required,fqdn"`

	SNMPCommunity string `yaml:"snmp_community" json:"snmp_community" mapstructure:"snmp_community" validate:"required"`

	TLSServerName string `yaml:"tls_server_name" json:"tls_server_name" mapstructure:"tls_server_name"`
}

// OutputConfig holds result sink settings.
type OutputConfig struct {
	Format   string `yaml:"format" json:"format" mapstructure:"format" validate:"oneof=text json"`
	Path     string `yaml:"path" json:"path" mapstructure:"path"`
	OpenOnly bool   `yaml:"open_only" json:"open_only" mapstructure:"open_only"`
	Summary  bool   `yaml:"summary" json:"summary" mapstructure:"summary"`
}

// MetricsConfig holds Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr" mapstructure:"listen_addr" validate:"required_if=Enabled true"`
}

// DatabaseConfig holds the optional PostgreSQL result store settings.
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Host            string        `yaml:"host" json:"host" mapstructure:"host" validate:"required_if=Enabled true"`
	Port            int           `yaml:"port" json:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	Database        string        `yaml:"database" json:"database" mapstructure:"database" validate:"required_if=Enabled true"`
	Username        string        `yaml:"username" json:"username" mapstructure:"username" validate:"required_if=Enabled true"`
	Password        string        `yaml:"password" json:"password" mapstructure:"password"`
	SSLMode         string        `yaml:"ssl_mode" json:"ssl_mode" mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-ca verify-full"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" mapstructure:"max_open_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			FDMargin:     defaultFDMargin,
			MaxJobs:      0,
			Timeout:      defaultTimeout,
			StashDelay:   defaultStashDelay,
			ChunkSize:    defaultChunkSize,
			MaxRetries:   defaultMaxRetries,
			TickInterval: defaultTickInterval,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerSecond: 1000,
				BurstSize:         1000,
			},
		},
		Probe: ProbeConfig{
			Method:        "tcp",
			SOCKSCanary:   "1.1.1.1:80",
			DNSQuestion:   "example.com.",
			SNMPCommunity: "public",
		},
		Output: OutputConfig{
			Format:  "text",
			Summary: true,
		},
		Logging: logging.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9100",
		},
		Database: DatabaseConfig{
			Enabled:         false,
			Host:            "localhost",
			Port:            defaultDatabasePort,
			SSLMode:         "disable",
			MaxOpenConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
	}
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to read config file", err)
	}

	// JSON is a subset of YAML, so one decoder serves every extension.
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration,
			fmt.Sprintf("failed to parse config %s", filepath.Base(path)), err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration. The first failing field is reported
// as a ConfigError naming its yaml path.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrs) == 0 {
		return errors.WrapConfigError(errors.CodeValidation, "invalid configuration", err)
	}

	fe := validationErrs[0]
	cfgErr := errors.ErrConfigInvalid(fieldPath(fe.Namespace()), fe.Value())
	cfgErr.Message = fmt.Sprintf("Invalid configuration value (rule %s)", fe.Tag())
	return cfgErr
}

// fieldPath turns "Config.Engine.ChunkSize" into "engine.chunksize".
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.ToLower(strings.Join(parts, "."))
}

// DSN returns the lib/pq key=value connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Database, d.Username, d.Password, d.SSLMode,
	)
}
