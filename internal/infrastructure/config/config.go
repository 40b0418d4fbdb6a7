package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for NetRules Core.
// All configuration is loaded from YAML and can be overridden by
// environment variables.
type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	Poll       PollConfig       `yaml:"poll"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Security   SecurityConfig   `yaml:"security"`
}

// ControllerConfig contains network-controller connection settings.
type ControllerConfig struct {
	URL       string `yaml:"url"`
	Site      string `yaml:"site"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Timeout   int    `yaml:"timeout"` // seconds
	VerifySSL bool   `yaml:"verify_ssl"`
}

// PollConfig contains adaptive polling intervals, all in seconds.
type PollConfig struct {
	BaseInterval      int `yaml:"base_interval"`
	ActiveInterval    int `yaml:"active_interval"`
	RealtimeInterval  int `yaml:"realtime_interval"`
	ActivityTimeout   int `yaml:"activity_timeout"`
	RealtimeHold      int `yaml:"realtime_hold"`
	DebounceSeconds   int `yaml:"debounce_seconds"`
	OptimisticTimeout int `yaml:"optimistic_timeout"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      APITLSConfig     `yaml:"tls"`
	CORS     APICORSConfig    `yaml:"cors"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITLSConfig contains TLS settings for the API listener.
type APITLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APICORSConfig contains CORS settings. Empty lists fall back to
// permissive development defaults.
type APICORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket push settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains poll-cycle telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains local API security settings.
type SecurityConfig struct {
	JWT   JWTConfig   `yaml:"jwt"`
	Admin AdminConfig `yaml:"admin"`
}

// JWTConfig contains token signing settings.
type JWTConfig struct {
	// Secret signs HS256 access tokens. Must be overridden in production
	// via NETRULES_JWT_SECRET.
	Secret string `yaml:"secret"`

	// AccessTokenTTL is the token lifetime in minutes.
	AccessTokenTTL int `yaml:"access_token_ttl"`
}

// AdminConfig contains the local API admin credentials.
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// Load order: defaults, then file values, then NETRULES_* environment
// variables. The merged result is validated before being returned.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Controller: ControllerConfig{
			Site:    "default",
			Timeout: 30,
		},
		Poll: PollConfig{
			BaseInterval:      300,
			ActiveInterval:    30,
			RealtimeInterval:  10,
			ActivityTimeout:   300,
			RealtimeHold:      30,
			DebounceSeconds:   10,
			OptimisticTimeout: 15,
		},
		Database: DatabaseConfig{
			Path:        "./data/netrules.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "netrules-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8480,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
			Admin: AdminConfig{
				Username: "admin",
			},
		},
	}
}

// applyEnvOverrides applies NETRULES_* environment variables.
func applyEnvOverrides(cfg *Config) {
	// Controller
	if v := os.Getenv("NETRULES_CONTROLLER_URL"); v != "" {
		cfg.Controller.URL = v
	}
	if v := os.Getenv("NETRULES_CONTROLLER_USERNAME"); v != "" {
		cfg.Controller.Username = v
	}
	if v := os.Getenv("NETRULES_CONTROLLER_PASSWORD"); v != "" {
		cfg.Controller.Password = v
	}
	if v := os.Getenv("NETRULES_CONTROLLER_SITE"); v != "" {
		cfg.Controller.Site = v
	}

	// Database
	if v := os.Getenv("NETRULES_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("NETRULES_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("NETRULES_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("NETRULES_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("NETRULES_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("NETRULES_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("NETRULES_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security (always override in production)
	if v := os.Getenv("NETRULES_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("NETRULES_ADMIN_PASSWORD"); v != "" {
		cfg.Security.Admin.Password = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Controller.URL == "" {
		errs = append(errs, "controller.url is required")
	} else if !strings.HasPrefix(c.Controller.URL, "http://") && !strings.HasPrefix(c.Controller.URL, "https://") {
		errs = append(errs, "controller.url must start with http:// or https://")
	}
	if c.Controller.Username == "" {
		errs = append(errs, "controller.username is required")
	}
	if c.Controller.Password == "" {
		errs = append(errs, "controller.password is required")
	}

	if c.Poll.BaseInterval < c.Poll.ActiveInterval {
		errs = append(errs, "poll.base_interval must be >= poll.active_interval")
	}
	if c.Poll.ActiveInterval < c.Poll.RealtimeInterval {
		errs = append(errs, "poll.active_interval must be >= poll.realtime_interval")
	}
	if c.Poll.RealtimeInterval <= 0 {
		errs = append(errs, "poll.realtime_interval must be positive")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		errs = append(errs, "api.tls.cert_file and api.tls.key_file are required when TLS is enabled")
	}

	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set NETRULES_JWT_SECRET)")
	}
	if c.Security.Admin.Password == "" {
		errs = append(errs, "security.admin.password is required (set NETRULES_ADMIN_PASSWORD)")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Seconds-to-duration accessors. YAML carries plain integers; callers
// get time.Duration.

// ControllerTimeout returns the controller HTTP timeout.
func (c *Config) ControllerTimeout() time.Duration {
	return time.Duration(c.Controller.Timeout) * time.Second
}

// PollBaseInterval returns the steady-state poll interval.
func (c *Config) PollBaseInterval() time.Duration {
	return time.Duration(c.Poll.BaseInterval) * time.Second
}

// PollActiveInterval returns the active-tier poll interval.
func (c *Config) PollActiveInterval() time.Duration {
	return time.Duration(c.Poll.ActiveInterval) * time.Second
}

// PollRealtimeInterval returns the realtime-tier poll interval.
func (c *Config) PollRealtimeInterval() time.Duration {
	return time.Duration(c.Poll.RealtimeInterval) * time.Second
}

// PollActivityTimeout returns how long activity keeps the fast tiers.
func (c *Config) PollActivityTimeout() time.Duration {
	return time.Duration(c.Poll.ActivityTimeout) * time.Second
}

// PollRealtimeHold returns how long after a change the realtime tier is
// held.
func (c *Config) PollRealtimeHold() time.Duration {
	return time.Duration(c.Poll.RealtimeHold) * time.Second
}

// PollDebounce returns the external-signal debounce window.
func (c *Config) PollDebounce() time.Duration {
	return time.Duration(c.Poll.DebounceSeconds) * time.Second
}

// PollOptimisticTimeout returns the optimistic-update confirmation
// window.
func (c *Config) PollOptimisticTimeout() time.Duration {
	return time.Duration(c.Poll.OptimisticTimeout) * time.Second
}
