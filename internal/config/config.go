package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete studio configuration
type Config struct {
	Audio     AudioConfig     `yaml:"audio"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Recording RecordingConfig `yaml:"recording"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AudioConfig contains audio pipeline parameters
type AudioConfig struct {
	InputSampleRate  int `yaml:"input_sample_rate"`  // Hz, oracle contract
	OutputSampleRate int `yaml:"output_sample_rate"` // Hz, oracle contract
	RelayFrameSize   int `yaml:"relay_frame_size"`   // samples per relayed frame
}

// SchedulerConfig contains playback backlog control parameters
type SchedulerConfig struct {
	ModerateDepth   float64 `yaml:"moderate_depth"`   // seconds
	AggressiveDepth float64 `yaml:"aggressive_depth"` // seconds
	ModerateRate    float64 `yaml:"moderate_rate"`
	AggressiveRate  float64 `yaml:"aggressive_rate"`
}

// OracleConfig contains speech oracle connection configuration
type OracleConfig struct {
	Endpoint          string  `yaml:"endpoint"`
	APIKey            string  `yaml:"api_key"`
	Timeout           int     `yaml:"timeout"` // seconds
	MaxRetries        int     `yaml:"max_retries"`
	MaxConcurrent     int     `yaml:"max_concurrent"`
	SystemInstruction string  `yaml:"system_instruction"`
	DetectionWindow   float64 `yaml:"detection_window"` // seconds
}

// RecordingConfig controls the session recording artifact
type RecordingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// oracleKeyEnv overrides the config file's api_key when set.
const oracleKeyEnv = "ADA_ORACLE_API_KEY"

// Load reads and parses the configuration file. A .env file in the working
// directory is loaded first so the oracle key can stay out of the config.
func Load(path string) (*Config, error) {
	godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if key := os.Getenv(oracleKeyEnv); key != "" {
		config.Oracle.APIKey = key
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler config: %w", err)
	}

	if err := c.Oracle.Validate(); err != nil {
		return fmt.Errorf("oracle config: %w", err)
	}

	if err := c.Recording.Validate(); err != nil {
		return fmt.Errorf("recording config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.InputSampleRate != 16000 {
		return fmt.Errorf("input_sample_rate must be 16000 Hz per the oracle contract, got %d", a.InputSampleRate)
	}

	if a.OutputSampleRate != 24000 {
		return fmt.Errorf("output_sample_rate must be 24000 Hz per the oracle contract, got %d", a.OutputSampleRate)
	}

	if a.RelayFrameSize < 256 || a.RelayFrameSize > 16384 {
		return fmt.Errorf("relay_frame_size must be between 256 and 16384 samples, got %d", a.RelayFrameSize)
	}

	return nil
}

// Validate validates scheduler configuration
func (s *SchedulerConfig) Validate() error {
	if s.ModerateDepth <= 0 {
		return fmt.Errorf("moderate_depth must be positive, got %f", s.ModerateDepth)
	}

	if s.AggressiveDepth <= s.ModerateDepth {
		return fmt.Errorf("aggressive_depth (%f) must be greater than moderate_depth (%f)",
			s.AggressiveDepth, s.ModerateDepth)
	}

	if s.ModerateRate < 1.0 {
		return fmt.Errorf("moderate_rate must be at least 1.0, got %f", s.ModerateRate)
	}

	if s.AggressiveRate < s.ModerateRate {
		return fmt.Errorf("aggressive_rate (%f) must be at least moderate_rate (%f)",
			s.AggressiveRate, s.ModerateRate)
	}

	return nil
}

// Validate validates oracle configuration
func (o *OracleConfig) Validate() error {
	if o.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if o.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty (set it in the config or via %s)", oracleKeyEnv)
	}

	if o.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", o.Timeout)
	}

	if o.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", o.MaxRetries)
	}

	if o.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", o.MaxConcurrent)
	}

	if o.DetectionWindow <= 0 {
		return fmt.Errorf("detection_window must be positive, got %f", o.DetectionWindow)
	}

	return nil
}

// Validate validates recording configuration
func (r *RecordingConfig) Validate() error {
	if r.Enabled && r.Path == "" {
		return fmt.Errorf("path cannot be empty when recording is enabled")
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetTimeoutDuration returns the oracle timeout as a time.Duration
func (o *OracleConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(o.Timeout) * time.Second
}

// GetDetectionWindowDuration returns the detection window as a time.Duration
func (o *OracleConfig) GetDetectionWindowDuration() time.Duration {
	return time.Duration(o.DetectionWindow * float64(time.Second))
}
