// Package config loads the service configuration from YAML with
// environment-variable and flag overrides layered on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	DSS          DSSConfig          `yaml:"dss"`
	USS          USSConfig          `yaml:"uss"`
	RID          RIDConfig          `yaml:"rid"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Store        StoreConfig        `yaml:"store"`
	Logging      LoggingConfig      `yaml:"logging"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	ReadTimeout  int    `yaml:"read_timeout"`
	WriteTimeout int    `yaml:"write_timeout"`
	IdleTimeout  int    `yaml:"idle_timeout"`

	// PublicURL is this service's externally reachable base URL,
	// registered with the DSS as the notification callback target.
	PublicURL string `yaml:"public_url"`
}

// DSSConfig contains DSS client settings.
type DSSConfig struct {
	BaseURL   string `yaml:"base_url"`
	AuthToken string `yaml:"auth_token"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// USSConfig contains USS client settings.
type USSConfig struct {
	AuthToken                string `yaml:"auth_token"`
	TimeoutMs                int    `yaml:"timeout_ms"`
	RecentPositionsDurationS int    `yaml:"recent_positions_duration_s"`
}

// RIDConfig selects the F3411 revision the service speaks.
type RIDConfig struct {
	Version string `yaml:"version"`
}

// SubscriptionConfig contains subscription cache settings.
type SubscriptionConfig struct {
	PaddingM      float64 `yaml:"padding_m"`
	DurationS     int     `yaml:"duration_s"`
	ExpiryMarginS int     `yaml:"expiry_margin_s"`
	AltitudeLoM   float64 `yaml:"altitude_lo_m"`
	AltitudeHiM   float64 `yaml:"altitude_hi_m"`
}

// StoreConfig contains persistence settings. Persistence is optional; with
// it disabled the flight memo and behavior live only in memory.
type StoreConfig struct {
	PersistenceEnabled bool   `yaml:"persistence_enabled"`
	DataDir            string `yaml:"data_dir"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level         string            `yaml:"level"`
	Format        string            `yaml:"format"`
	IncludeCaller bool              `yaml:"include_caller"`
	GlobalFields  map[string]string `yaml:"global_fields"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled       bool              `yaml:"enabled"`
	ServiceName   string            `yaml:"service_name"`
	Endpoint      string            `yaml:"endpoint"`
	SamplingRatio float64           `yaml:"sampling_ratio"`
	Attributes    map[string]string `yaml:"attributes"`
}

// MetricsConfig contains metrics settings.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8073",
			ReadTimeout:  5,
			WriteTimeout: 15,
			IdleTimeout:  120,
			PublicURL:    "http://localhost:8073",
		},
		DSS: DSSConfig{
			BaseURL:   "http://localhost:8082",
			TimeoutMs: 5000,
		},
		USS: USSConfig{
			TimeoutMs:                5000,
			RecentPositionsDurationS: 60,
		},
		RID: RIDConfig{
			Version: "F3411-19",
		},
		Subscription: SubscriptionConfig{
			PaddingM:      1000,
			DurationS:     30,
			ExpiryMarginS: 1,
			AltitudeLoM:   0,
			AltitudeHiM:   100000,
		},
		Store: StoreConfig{
			PersistenceEnabled: false,
			DataDir:            "./data",
		},
		Logging: LoggingConfig{
			Level:         "info",
			Format:        "json",
			IncludeCaller: true,
			GlobalFields:  map[string]string{},
		},
		Telemetry: TelemetryConfig{
			Enabled:       false,
			ServiceName:   "rid-display",
			Endpoint:      "localhost:4317",
			SamplingRatio: 0.1,
			Attributes:    map[string]string{},
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the
// defaults. A missing file is not an error; the defaults are used.
func LoadFromFile(filePath string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("file", filePath).Msg("Configuration file not found, using defaults")
			return config, nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return config, nil
}

// Load loads configuration from file, environment variables, and flags,
// in increasing priority order.
func Load(configFile, serverAddr, logLevel, dataDir string) (*Config, error) {
	var config *Config
	var err error

	if configFile != "" {
		config, err = LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		config = DefaultConfig()
	}

	applyEnvOverrides(config)

	if serverAddr != "" {
		config.Server.Addr = serverAddr
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
	if dataDir != "" {
		absDataDir, err := filepath.Abs(dataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for data directory: %w", err)
		}
		config.Store.DataDir = absDataDir
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration.
func applyEnvOverrides(config *Config) {
	if addr := os.Getenv("RID_DISPLAY_SERVER_ADDR"); addr != "" {
		config.Server.Addr = addr
	}
	if url := os.Getenv("RID_DISPLAY_PUBLIC_URL"); url != "" {
		config.Server.PublicURL = url
	}
	if url := os.Getenv("RID_DISPLAY_DSS_BASE_URL"); url != "" {
		config.DSS.BaseURL = url
	}
	if token := os.Getenv("RID_DISPLAY_DSS_AUTH_TOKEN"); token != "" {
		config.DSS.AuthToken = token
	}
	if version := os.Getenv("RID_DISPLAY_RID_VERSION"); version != "" {
		config.RID.Version = version
	}
	if dataDir := os.Getenv("RID_DISPLAY_DATA_DIR"); dataDir != "" {
		config.Store.DataDir = dataDir
	}
	if enabled := os.Getenv("RID_DISPLAY_PERSISTENCE_ENABLED"); enabled != "" {
		if val, err := strconv.ParseBool(enabled); err == nil {
			config.Store.PersistenceEnabled = val
		}
	}
	if level := os.Getenv("RID_DISPLAY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("RID_DISPLAY_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
}
