package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the input server.
// Values come from defaults, an optional YAML file and environment overrides.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Input     InputConfig     `yaml:"input"`
	Worker    WorkerConfig    `yaml:"worker"`
	Logging   LoggingConfig   `yaml:"logging"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Database  DatabaseConfig  `yaml:"database"`
}

// ServerConfig contains the HTTP/WebSocket listener settings.
type ServerConfig struct {
	Host     string              `yaml:"host"`
	Port     int                 `yaml:"port"`
	Timeouts ServerTimeoutConfig `yaml:"timeouts"`
}

// ServerTimeoutConfig contains HTTP timeout settings in seconds.
type ServerTimeoutConfig struct {
	ReadHeader int `yaml:"read_header"`
	Idle       int `yaml:"idle"`
}

// WebSocketConfig contains per-connection settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int64  `yaml:"max_message_size"`
	SendBuffer     int    `yaml:"send_buffer"`
	WriteTimeout   int    `yaml:"write_timeout"` // seconds
}

// InputConfig contains the gamepad source and normalization settings.
type InputConfig struct {
	// Backend selects the hardware source: "joystick" (Linux /dev/input/js*)
	// or "none" (no hardware, the server still accepts subscribers).
	Backend   string `yaml:"backend"`
	DeviceDir string `yaml:"device_dir"`

	Deadzone               float64       `yaml:"deadzone"`
	TriggerThreshold       float64       `yaml:"trigger_threshold"`
	AxisEpsilon            float64       `yaml:"axis_epsilon"`
	AxisMinInterval        time.Duration `yaml:"axis_min_interval"`
	AxisHoldRepeatInterval time.Duration `yaml:"axis_hold_repeat_interval"`

	// BroadcastCapacity is the number of messages retained for slow subscribers.
	BroadcastCapacity int `yaml:"broadcast_capacity"`
}

// WorkerConfig contains the MeCab worker bridge settings.
type WorkerConfig struct {
	Enabled bool `yaml:"enabled"`

	// Python overrides the interpreter tried first. GSM_PYTHON sets it too.
	Python string `yaml:"python"`
	Script string `yaml:"script"`

	HealthTimeout  time.Duration `yaml:"health_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// EagerStart spawns the worker during startup instead of on first request.
	EagerStart bool `yaml:"eager_start"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"` // megabytes
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // days
	Compress   bool   `yaml:"compress"`
}

// MQTTConfig contains settings for the optional event mirror.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	TopicPrefix string              `yaml:"topic_prefix"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
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

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains telemetry connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // seconds
}

// DatabaseConfig contains settings for the SQLite audit store.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"` // seconds
}

// Load builds the configuration.
//
// The loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values, when path is not empty
//  3. Environment variables (override file values)
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 55003,
			Timeouts: ServerTimeoutConfig{
				ReadHeader: 10,
				Idle:       60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 1 << 20,
			SendBuffer:     256,
			WriteTimeout:   10,
		},
		Input: InputConfig{
			Backend:                "joystick",
			DeviceDir:              "/dev/input",
			Deadzone:               0.15,
			TriggerThreshold:       0.5,
			AxisEpsilon:            0.02,
			AxisMinInterval:        time.Second / 120,
			AxisHoldRepeatInterval: time.Second / 60,
			BroadcastCapacity:      2048,
		},
		Worker: WorkerConfig{
			Enabled:        true,
			Script:         "mecab_bridge.py",
			HealthTimeout:  3 * time.Second,
			RequestTimeout: 5 * time.Second,
			EagerStart:     true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/input-server.log",
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     14,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "gsm-input-server",
			},
			TopicPrefix: "gsmoverlay/input",
			QoS:         0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "gsm",
			Bucket:        "input_server",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Database: DatabaseConfig{
			Path:        "./data/input-server.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GSM_INPUT_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("GSM_INPUT_PORT"); v != "" {
		// An unparsable port is caught by Validate as 0.
		port, _ := strconv.Atoi(v) //nolint:errcheck // validated below
		cfg.Server.Port = port
	}
	if v := os.Getenv("GSM_INPUT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Worker
	if v := os.Getenv("GSM_PYTHON"); v != "" {
		cfg.Worker.Python = v
	}
	if v := os.Getenv("GSM_MECAB_SCRIPT"); v != "" {
		cfg.Worker.Script = v
	}

	// MQTT
	if v := os.Getenv("GSM_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GSM_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GSM_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Host == "" {
		errs = append(errs, "server.host is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.WebSocket.Path == "" || !strings.HasPrefix(c.WebSocket.Path, "/") {
		errs = append(errs, "websocket.path must start with /")
	}

	switch c.Input.Backend {
	case "joystick", "none":
	default:
		errs = append(errs, fmt.Sprintf("input.backend %q must be joystick or none", c.Input.Backend))
	}
	if c.Input.Deadzone < 0 || c.Input.Deadzone >= 1 {
		errs = append(errs, "input.deadzone must be in [0, 1)")
	}
	if c.Input.TriggerThreshold <= 0 || c.Input.TriggerThreshold >= 1 {
		errs = append(errs, "input.trigger_threshold must be in (0, 1)")
	}
	if c.Input.AxisEpsilon < 0 {
		errs = append(errs, "input.axis_epsilon must not be negative")
	}
	if c.Input.AxisMinInterval <= 0 {
		errs = append(errs, "input.axis_min_interval must be positive")
	}
	if c.Input.AxisHoldRepeatInterval <= 0 {
		errs = append(errs, "input.axis_hold_repeat_interval must be positive")
	}
	if c.Input.BroadcastCapacity < 1 {
		errs = append(errs, "input.broadcast_capacity must be at least 1")
	}

	if c.Worker.Enabled {
		if c.Worker.Script == "" {
			errs = append(errs, "worker.script is required when the worker is enabled")
		}
		if c.Worker.HealthTimeout <= 0 || c.Worker.RequestTimeout <= 0 {
			errs = append(errs, "worker timeouts must be positive")
		}
	}

	if c.Logging.Output == "file" && c.Logging.File.Path == "" {
		errs = append(errs, "logging.file.path is required when logging.output is file")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the database is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetWriteTimeout returns the WebSocket write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.WebSocket.WriteTimeout) * time.Second
}

// GetIdleTimeout returns the HTTP idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Idle) * time.Second
}

// GetReadHeaderTimeout returns the HTTP read-header timeout as a Duration.
func (c *Config) GetReadHeaderTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.ReadHeader) * time.Second
}
