// Package config loads and validates visualix configuration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Planner PlannerConfig `mapstructure:"planner" yaml:"planner"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Jobs    JobsConfig    `mapstructure:"jobs" yaml:"jobs"`
	Cleanup CleanupConfig `mapstructure:"cleanup" yaml:"cleanup"`
	FFmpeg  FFmpegConfig  `mapstructure:"ffmpeg" yaml:"ffmpeg"`
	Events  EventsConfig  `mapstructure:"events" yaml:"events"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host         string        `mapstructure:"host" yaml:"host"`
	Port         int           `mapstructure:"port" yaml:"port"`
	CORSOrigins  []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	EnableSSE    bool          `mapstructure:"enable_sse" yaml:"enable_sse"`
}

// PlannerConfig configures the language model used to build plans.
type PlannerConfig struct {
	Backend          string        `mapstructure:"backend" yaml:"backend"` // genai, cli
	APIKey           string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model            string        `mapstructure:"model" yaml:"model"`
	BaseURL          string        `mapstructure:"base_url" yaml:"base_url"`
	CLIPath          string        `mapstructure:"cli_path" yaml:"cli_path"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Temperature      float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens        int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	DropUnknownSteps bool          `mapstructure:"drop_unknown_steps" yaml:"drop_unknown_steps"`
	RateLimit        float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per minute, 0 = unlimited
	RateBurst        int           `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// StorageConfig configures on-disk file locations and upload limits.
type StorageConfig struct {
	UploadDir      string   `mapstructure:"upload_dir" yaml:"upload_dir"`
	OutputDir      string   `mapstructure:"output_dir" yaml:"output_dir"`
	TempDir        string   `mapstructure:"temp_dir" yaml:"temp_dir"`
	MaxFileSize    int64    `mapstructure:"max_file_size" yaml:"max_file_size"`
	AllowedFormats []string `mapstructure:"allowed_formats" yaml:"allowed_formats"`
}

// JobsConfig configures job admission and persistence.
type JobsConfig struct {
	MaxConcurrent int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Store         string        `mapstructure:"store" yaml:"store"` // sqlite, json
	StorePath     string        `mapstructure:"store_path" yaml:"store_path"`
}

// CleanupConfig configures the periodic file cleanup.
type CleanupConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	MaxAge   time.Duration `mapstructure:"max_age" yaml:"max_age"`
	Patterns []string      `mapstructure:"patterns" yaml:"patterns"`
}

// FFmpegConfig configures the media toolchain.
type FFmpegConfig struct {
	FFmpegPath    string        `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path"`
	FFprobePath   string        `mapstructure:"ffprobe_path" yaml:"ffprobe_path"`
	Preset        string        `mapstructure:"preset" yaml:"preset"`
	ToolTimeout   time.Duration `mapstructure:"tool_timeout" yaml:"tool_timeout"`
	MinFreeDiskMB uint64        `mapstructure:"min_free_disk_mb" yaml:"min_free_disk_mb"`
}

// EventsConfig configures event fan-out.
type EventsConfig struct {
	BufferSize    int    `mapstructure:"buffer_size" yaml:"buffer_size"`
	NATSURL       string `mapstructure:"nats_url" yaml:"nats_url"`
	SubjectPrefix string `mapstructure:"subject_prefix" yaml:"subject_prefix"`
}

// WatchConfig configures the hot folder.
type WatchConfig struct {
	Dir    string `mapstructure:"dir" yaml:"dir"`
	Prompt string `mapstructure:"prompt" yaml:"prompt"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
