package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for every environment variable override.
const EnvPrefix = "LUMENHUB_"

// Config is the root configuration for the hub.
// It is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Hub       HubConfig       `yaml:"hub"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HubConfig identifies this hub instance.
type HubConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite settings for the device directory.
// Path ":memory:" keeps the directory for the process lifetime only.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeouts, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains settings for the device channel.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	SendBuffer     int    `yaml:"send_buffer"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// DispatchConfig controls command delivery and liveness.
type DispatchConfig struct {
	// FallbackTimeoutMS bounds the single direct request to a device.
	FallbackTimeoutMS int `yaml:"fallback_timeout_ms"`

	// LiveWindowMS is how recent a heartbeat must be for a device to be
	// listed as online.
	LiveWindowMS int `yaml:"live_window_ms"`
}

// InfluxDBConfig contains InfluxDB connection settings.
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// Precedence, lowest first: built-in defaults, the YAML file, then
// LUMENHUB_* environment variables (for example LUMENHUB_API_PORT).
// The result is validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config populated with defaults. The result is valid
// and runs a standalone hub with MQTT and InfluxDB disabled.
func Default() *Config {
	return &Config{
		Hub: HubConfig{
			ID:   "hub-001",
			Name: "Lumen Hub",
		},
		Database: DatabaseConfig{
			Path:        ":memory:",
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "lumenhub-core",
			},
			QoS:         1,
			TopicPrefix: "lumenhub",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			SendBuffer:     32,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Dispatch: DispatchConfig{
			FallbackTimeoutMS: 5000,
			LiveWindowMS:      30000,
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "lumenhub",
			Bucket:        "telemetry",
			BatchSize:     500,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies LUMENHUB_SECTION_KEY overrides.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"DATABASE_PATH":  &cfg.Database.Path,
		"MQTT_HOST":      &cfg.MQTT.Broker.Host,
		"MQTT_USERNAME":  &cfg.MQTT.Auth.Username,
		"MQTT_PASSWORD":  &cfg.MQTT.Auth.Password,
		"API_HOST":       &cfg.API.Host,
		"INFLUXDB_URL":   &cfg.InfluxDB.URL,
		"INFLUXDB_TOKEN": &cfg.InfluxDB.Token,
		"LOG_LEVEL":      &cfg.Logging.Level,
	}
	for key, dst := range strs {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"API_PORT":                     &cfg.API.Port,
		"MQTT_PORT":                    &cfg.MQTT.Broker.Port,
		"DISPATCH_FALLBACK_TIMEOUT_MS": &cfg.Dispatch.FallbackTimeoutMS,
		"DISPATCH_LIVE_WINDOW_MS":      &cfg.Dispatch.LiveWindowMS,
	}
	for key, dst := range ints {
		v := os.Getenv(EnvPrefix + key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}

	bools := map[string]*bool{
		"MQTT_ENABLED":     &cfg.MQTT.Enabled,
		"INFLUXDB_ENABLED": &cfg.InfluxDB.Enabled,
	}
	for key, dst := range bools {
		v := os.Getenv(EnvPrefix + key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing %s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
	}

	return nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Hub.ID == "" {
		errs = append(errs, "hub.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.TopicPrefix == "" || strings.ContainsAny(c.MQTT.TopicPrefix, "+#") {
			errs = append(errs, "mqtt.topic_prefix must be non-empty and contain no wildcards")
		}
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if !strings.HasPrefix(c.WebSocket.Path, "/") {
		errs = append(errs, "websocket.path must start with /")
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		errs = append(errs, "websocket.max_message_size must be positive")
	}

	if c.Dispatch.FallbackTimeoutMS <= 0 {
		errs = append(errs, "dispatch.fallback_timeout_ms must be positive")
	}
	if c.Dispatch.LiveWindowMS <= 0 {
		errs = append(errs, "dispatch.live_window_ms must be positive")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// FallbackTimeout returns the direct-delivery timeout as a Duration.
func (d DispatchConfig) FallbackTimeout() time.Duration {
	return time.Duration(d.FallbackTimeoutMS) * time.Millisecond
}

// LiveWindow returns the online window as a Duration.
func (d DispatchConfig) LiveWindow() time.Duration {
	return time.Duration(d.LiveWindowMS) * time.Millisecond
}
