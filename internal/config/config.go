// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Robot    RobotConfig    `mapstructure:"robot"`
	App      AppConfig      `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host" validate:"required"`
	Port         string        `mapstructure:"port" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
	RateLimitBurst    int           `mapstructure:"rate_limit_burst"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// RobotConfig represents the robot link and controller configuration
type RobotConfig struct {
	ConnectionMode    string        `mapstructure:"connection_mode"`
	SimulateOnFailure bool          `mapstructure:"simulate_on_failure"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	CommandDelay      time.Duration `mapstructure:"command_delay"`
	ReceiveBufferSize int           `mapstructure:"receive_buffer_size"`

	Serial    SerialPortConfig    `mapstructure:"serial"`
	Bluetooth BluetoothPortConfig `mapstructure:"bluetooth"`

	MaxSpeed          int                     `mapstructure:"max_speed"`
	StopRepeats       int                     `mapstructure:"stop_repeats"`
	StopInterval      time.Duration           `mapstructure:"stop_interval"`
	DistanceFreshness time.Duration           `mapstructure:"distance_freshness"`
	Sensors           map[string]SensorConfig `mapstructure:"sensors"`
	SoundLibrary      [][]NoteConfig          `mapstructure:"sound_library"`
}

// SerialPortConfig represents serial port configuration
type SerialPortConfig struct {
	Port         string        `mapstructure:"port"`
	BaudRate     int           `mapstructure:"baud_rate"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	SettleDelay  time.Duration `mapstructure:"settle_delay"`
	PortKeywords []string      `mapstructure:"port_keywords"`
}

// BluetoothPortConfig represents Bluetooth configuration
type BluetoothPortConfig struct {
	Address             string        `mapstructure:"address"`
	NameFilters         []string      `mapstructure:"name_filters"`
	WriteCharacteristic string        `mapstructure:"write_characteristic"`
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout"`
	WriteTimeout        time.Duration `mapstructure:"write_timeout"`
}

// SensorConfig addresses an ultrasonic sensor
type SensorConfig struct {
	Port uint8 `mapstructure:"port"`
	Slot uint8 `mapstructure:"slot"`
}

// NoteConfig is one buzzer note of a sound sequence
type NoteConfig struct {
	Frequency int `mapstructure:"frequency"`
	Duration  int `mapstructure:"duration"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables.
// An empty path searches the working directory and ./configs; a missing
// file is not an error, defaults and environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// Environment variable support
	v.SetEnvPrefix("MBOT_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8085")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{"*"})
	v.SetDefault("security.rate_limit_enabled", true)
	v.SetDefault("security.rate_limit_requests", 600)
	v.SetDefault("security.rate_limit_window", "1m")
	v.SetDefault("security.rate_limit_burst", 20)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Robot link defaults
	v.SetDefault("robot.connection_mode", "auto")
	v.SetDefault("robot.simulate_on_failure", true)
	v.SetDefault("robot.read_timeout", "500ms")
	v.SetDefault("robot.poll_interval", "10ms")
	v.SetDefault("robot.command_delay", "10ms")
	v.SetDefault("robot.receive_buffer_size", 1024)

	v.SetDefault("robot.serial.port", "")
	v.SetDefault("robot.serial.baud_rate", 115200)
	v.SetDefault("robot.serial.read_timeout", "10ms")
	v.SetDefault("robot.serial.settle_delay", "2s")
	v.SetDefault("robot.serial.port_keywords", []string{"CH340", "CH341", "USB"})

	v.SetDefault("robot.bluetooth.address", "")
	v.SetDefault("robot.bluetooth.name_filters", []string{"makeblock", "mbot"})
	v.SetDefault("robot.bluetooth.write_characteristic", "")
	v.SetDefault("robot.bluetooth.connect_timeout", "15s")
	v.SetDefault("robot.bluetooth.write_timeout", "2s")

	// Robot controller defaults
	v.SetDefault("robot.max_speed", 255)
	v.SetDefault("robot.stop_repeats", 3)
	v.SetDefault("robot.stop_interval", "50ms")
	v.SetDefault("robot.distance_freshness", "200ms")
	v.SetDefault("robot.sensors.front.port", 1)
	v.SetDefault("robot.sensors.front.slot", 3)

	// App defaults
	v.SetDefault("app.name", "mbot-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	validModes := []string{"auto", "usb", "serial", "wired", "bluetooth", "ble", "wireless"}
	if !contains(validModes, strings.ToLower(config.Robot.ConnectionMode)) {
		return fmt.Errorf("robot.connection_mode must be one of: %v", validModes)
	}
	if config.Robot.Serial.BaudRate <= 0 {
		return fmt.Errorf("robot.serial.baud_rate must be positive")
	}
	if config.Robot.ReadTimeout <= 0 {
		return fmt.Errorf("robot.read_timeout must be positive")
	}
	if config.Robot.Bluetooth.ConnectTimeout <= 0 || config.Robot.Bluetooth.WriteTimeout <= 0 {
		return fmt.Errorf("robot.bluetooth timeouts must be positive")
	}
	if config.Robot.ReceiveBufferSize < 258 {
		// one maximal frame: marker, length and 255 bytes
		return fmt.Errorf("robot.receive_buffer_size must be at least 258")
	}
	if config.Robot.MaxSpeed <= 0 || config.Robot.MaxSpeed > 32767 {
		return fmt.Errorf("robot.max_speed must be within 1..32767")
	}

	validEnvs := []string{"development", "staging", "production", "test"}
	if !contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
