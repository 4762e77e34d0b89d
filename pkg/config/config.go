package config

import (
	"fmt"
	"time"
)

// Classifier backends
const (
	BackendExec   = "exec"
	BackendOpenAI = "openai"
)

// Config holds the controller configuration loaded from commandbot.yaml
// and overridden by COMMANDBOT_* environment variables.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging" json:"logging" envPrefix:"LOG_"`
	Server     ServerConfig     `yaml:"server" json:"server" envPrefix:"SERVER_"`
	ZeroMQ     ZeroMQConfig     `yaml:"zeromq" json:"zeromq" envPrefix:"ZMQ_"`
	Classifier ClassifierConfig `yaml:"classifier" json:"classifier" envPrefix:"CLASSIFIER_"`
	Motion     MotionConfig     `yaml:"motion" json:"motion" envPrefix:"MOTION_"`
	Processing ProcessingConfig `yaml:"processing" json:"processing" envPrefix:"PROCESSING_"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" json:"telemetry" envPrefix:"TELEMETRY_"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level" env:"LEVEL"`
	LogPath    string `yaml:"log_path,omitempty" json:"log_path,omitempty" env:"PATH"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days" env:"MAX_AGE_DAYS"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	HTTPPort int `yaml:"http_port" json:"http_port" env:"HTTP_PORT"`
}

// ZeroMQConfig holds socket addresses and topic names. An empty address
// disables that socket.
type ZeroMQConfig struct {
	InputAddress   string `yaml:"input_address" json:"input_address" env:"INPUT_ADDRESS"`
	InputTopic     string `yaml:"input_topic" json:"input_topic" env:"INPUT_TOPIC"`
	PublishAddress string `yaml:"publish_address" json:"publish_address" env:"PUBLISH_ADDRESS"`
	VelocityTopic  string `yaml:"velocity_topic" json:"velocity_topic" env:"VELOCITY_TOPIC"`
	CommandTopic   string `yaml:"command_topic" json:"command_topic" env:"COMMAND_TOPIC"`
	RequestAddress string `yaml:"request_address" json:"request_address" env:"REQUEST_ADDRESS"`
}

// ClassifierConfig selects and configures the text classifier
type ClassifierConfig struct {
	Backend        string `yaml:"backend" json:"backend" env:"BACKEND"`
	Command        string `yaml:"command" json:"command" env:"COMMAND"`
	Model          string `yaml:"model" json:"model" env:"MODEL"`
	BaseURL        string `yaml:"base_url" json:"base_url" env:"BASE_URL"`
	APIKey         string `yaml:"-" json:"-" env:"API_KEY"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds" env:"TIMEOUT_SECONDS"`
}

// MotionConfig holds motion-hold settings
type MotionConfig struct {
	TickIntervalMs int `yaml:"tick_interval_ms" json:"tick_interval_ms" env:"TICK_INTERVAL_MS"`
}

// ProcessingConfig holds input worker pool settings
type ProcessingConfig struct {
	Workers            int     `yaml:"workers" json:"workers" env:"WORKERS"`
	QueueSize          int     `yaml:"queue_size" json:"queue_size" env:"QUEUE_SIZE"`
	MaxInputsPerSecond float64 `yaml:"max_inputs_per_second" json:"max_inputs_per_second" env:"MAX_INPUTS_PER_SECOND"`
	Burst              int     `yaml:"burst" json:"burst" env:"BURST"`
}

// TelemetryConfig holds tracing settings. Tracing is off when the endpoint is empty.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" json:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name" json:"service_name" env:"SERVICE_NAME"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills empty fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 50
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = 14
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	if c.ZeroMQ.InputTopic == "" {
		c.ZeroMQ.InputTopic = "ollama_input"
	}
	if c.ZeroMQ.VelocityTopic == "" {
		c.ZeroMQ.VelocityTopic = "cmd_vel"
	}
	if c.ZeroMQ.CommandTopic == "" {
		c.ZeroMQ.CommandTopic = "robot_command"
	}
	if c.Classifier.Backend == "" {
		c.Classifier.Backend = BackendExec
	}
	if c.Classifier.Command == "" {
		c.Classifier.Command = "ollama"
	}
	if c.Classifier.Model == "" {
		c.Classifier.Model = "command_bot"
	}
	if c.Classifier.BaseURL == "" {
		c.Classifier.BaseURL = "http://localhost:11434/v1/"
	}
	if c.Classifier.TimeoutSeconds == 0 {
		c.Classifier.TimeoutSeconds = 30
	}
	if c.Motion.TickIntervalMs == 0 {
		c.Motion.TickIntervalMs = 100
	}
	if c.Processing.Workers == 0 {
		c.Processing.Workers = 1
	}
	if c.Processing.QueueSize == 0 {
		c.Processing.QueueSize = 16
	}
	if c.Processing.Burst == 0 {
		c.Processing.Burst = 1
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "commandbot"
	}
}

// Validate checks the configuration for values the controller cannot run with.
func (c *Config) Validate() error {
	switch c.Classifier.Backend {
	case BackendExec:
		if c.Classifier.Command == "" {
			return fmt.Errorf("missing required field in config: classifier.command")
		}
	case BackendOpenAI:
		if c.Classifier.BaseURL == "" {
			return fmt.Errorf("missing required field in config: classifier.base_url")
		}
	default:
		return fmt.Errorf("unknown classifier backend %q (want %q or %q)", c.Classifier.Backend, BackendExec, BackendOpenAI)
	}
	if c.Classifier.Model == "" {
		return fmt.Errorf("missing required field in config: classifier.model")
	}
	if c.Classifier.TimeoutSeconds < 0 {
		return fmt.Errorf("classifier.timeout_seconds must not be negative")
	}
	if c.Motion.TickIntervalMs <= 0 {
		return fmt.Errorf("motion.tick_interval_ms must be positive, got %d", c.Motion.TickIntervalMs)
	}
	if c.Processing.Workers <= 0 {
		return fmt.Errorf("processing.workers must be positive, got %d", c.Processing.Workers)
	}
	if c.Processing.QueueSize <= 0 {
		return fmt.Errorf("processing.queue_size must be positive, got %d", c.Processing.QueueSize)
	}
	if c.Processing.MaxInputsPerSecond < 0 {
		return fmt.Errorf("processing.max_inputs_per_second must not be negative")
	}
	if c.Server.HTTPPort < 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port out of range: %d", c.Server.HTTPPort)
	}
	if c.ZeroMQ.InputAddress != "" && c.ZeroMQ.InputTopic == "" {
		return fmt.Errorf("missing required field in config: zeromq.input_topic")
	}
	return nil
}

// TickInterval returns the motion republish period.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Motion.TickIntervalMs) * time.Millisecond
}

// ClassifierTimeout returns the per-call classifier timeout. Zero disables it.
func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.Classifier.TimeoutSeconds) * time.Second
}
