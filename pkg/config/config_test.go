package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testConfigContent = `
logging:
  level: "debug"
  log_path: "/tmp/commandbot-logs"

server:
  http_port: 9090

zeromq:
  input_address: "tcp://*:5560"
  input_topic: "ollama_input"
  publish_address: "tcp://*:5561"
  request_address: ""

classifier:
  backend: "exec"
  command: "ollama"
  model: "command_bot"
  timeout_seconds: 10

motion:
  tick_interval_ms: 50

processing:
  workers: 1
  queue_size: 8
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return dir
}

func TestLoadBootstrapConfig(t *testing.T) {
	dir := writeConfig(t, testConfigContent)

	cfg, err := LoadBootstrapConfig(dir)
	if err != nil {
		t.Fatalf("LoadBootstrapConfig failed: %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected logging level debug, got %s", cfg.Logging.Level)
	}
	if cfg.Server.HTTPPort != 9090 {
		t.Errorf("Expected http_port 9090, got %d", cfg.Server.HTTPPort)
	}
	if cfg.ZeroMQ.InputAddress != "tcp://*:5560" {
		t.Errorf("Expected input_address tcp://*:5560, got %s", cfg.ZeroMQ.InputAddress)
	}
	if cfg.TickInterval() != 50*time.Millisecond {
		t.Errorf("Expected tick interval 50ms, got %s", cfg.TickInterval())
	}
	if cfg.ClassifierTimeout() != 10*time.Second {
		t.Errorf("Expected classifier timeout 10s, got %s", cfg.ClassifierTimeout())
	}

	// Defaults fill what the file leaves out
	if cfg.ZeroMQ.VelocityTopic != "cmd_vel" {
		t.Errorf("Expected default velocity topic cmd_vel, got %s", cfg.ZeroMQ.VelocityTopic)
	}
	if cfg.ZeroMQ.CommandTopic != "robot_command" {
		t.Errorf("Expected default command topic robot_command, got %s", cfg.ZeroMQ.CommandTopic)
	}
	if cfg.Processing.Burst != 1 {
		t.Errorf("Expected default burst 1, got %d", cfg.Processing.Burst)
	}
}

func TestLoadBootstrapConfigMissingFile(t *testing.T) {
	_, err := LoadBootstrapConfig(t.TempDir())
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
	if !strings.Contains(err.Error(), ConfigFileName) {
		t.Errorf("Expected error to mention %s, got %v", ConfigFileName, err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	dir := writeConfig(t, testConfigContent)
	t.Setenv("COMMANDBOT_SERVER_HTTP_PORT", "7070")
	t.Setenv("COMMANDBOT_CLASSIFIER_BACKEND", "openai")
	t.Setenv("COMMANDBOT_CLASSIFIER_API_KEY", "secret")
	t.Setenv("COMMANDBOT_MOTION_TICK_INTERVAL_MS", "200")

	cfg, err := LoadBootstrapConfig(dir)
	if err != nil {
		t.Fatalf("LoadBootstrapConfig failed: %v", err)
	}

	if cfg.Server.HTTPPort != 7070 {
		t.Errorf("Expected env override http_port 7070, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Classifier.Backend != BackendOpenAI {
		t.Errorf("Expected env override backend openai, got %s", cfg.Classifier.Backend)
	}
	if cfg.Classifier.APIKey != "secret" {
		t.Errorf("Expected API key from env")
	}
	if cfg.Motion.TickIntervalMs != 200 {
		t.Errorf("Expected env override tick interval 200, got %d", cfg.Motion.TickIntervalMs)
	}
	// Untouched values survive
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected logging level debug to survive, got %s", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Classifier.Backend = "grpc" }, "unknown classifier backend"},
		{"negative tick", func(c *Config) { c.Motion.TickIntervalMs = -1 }, "tick_interval_ms"},
		{"no workers", func(c *Config) { c.Processing.Workers = -2 }, "processing.workers"},
		{"bad port", func(c *Config) { c.Server.HTTPPort = 70000 }, "http_port"},
		{"negative rate", func(c *Config) { c.Processing.MaxInputsPerSecond = -1 }, "max_inputs_per_second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("logging: [unterminated")); err == nil {
		t.Fatal("Expected YAML parse error")
	}
}
