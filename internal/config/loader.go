package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultEnvPrefix is the prefix for environment overrides (VISUALIX_SERVER_PORT, ...).
const DefaultEnvPrefix = "VISUALIX"

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

// NewLoaderWithViper creates a loader using an existing viper instance so
// CLI flag bindings take effect.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: DefaultEnvPrefix,
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// ConfigFileUsed returns the path of the config file read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (VISUALIX_*, plus GEMINI_API_KEY / GEMINI_MODEL)
// 3. Project config (.visualix.yaml in current directory)
// 4. User config (~/.config/visualix/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	setDefaults(l.v)

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()
	_ = l.v.BindEnv("planner.api_key", l.envPrefix+"_PLANNER_API_KEY", "GEMINI_API_KEY")
	_ = l.v.BindEnv("planner.model", l.envPrefix+"_PLANNER_MODEL", "GEMINI_MODEL")

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".visualix")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "visualix"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Defaults returns a Config populated only from defaults.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.enable_sse", true)

	v.SetDefault("planner.backend", "genai")
	v.SetDefault("planner.model", "gemini-pro")
	v.SetDefault("planner.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("planner.cli_path", "gemini")
	v.SetDefault("planner.timeout", "60s")
	v.SetDefault("planner.temperature", 0.1)
	v.SetDefault("planner.max_tokens", 2048)
	v.SetDefault("planner.drop_unknown_steps", true)
	v.SetDefault("planner.rate_limit", 30)
	v.SetDefault("planner.rate_burst", 5)

	v.SetDefault("storage.upload_dir", "uploads")
	v.SetDefault("storage.output_dir", "outputs")
	v.SetDefault("storage.temp_dir", "temp")
	v.SetDefault("storage.max_file_size", 100*1024*1024)
	v.SetDefault("storage.allowed_formats", []string{".mp4", ".avi", ".mov", ".wmv", ".flv", ".webm"})

	v.SetDefault("jobs.max_concurrent", 5)
	v.SetDefault("jobs.timeout", "3600s")
	v.SetDefault("jobs.store", "sqlite")
	v.SetDefault("jobs.store_path", ".visualix/jobs.db")

	v.SetDefault("cleanup.enabled", true)
	v.SetDefault("cleanup.interval", "1h")
	v.SetDefault("cleanup.max_age", "24h")
	v.SetDefault("cleanup.patterns", []string{"**/*"})

	v.SetDefault("ffmpeg.ffmpeg_path", "ffmpeg")
	v.SetDefault("ffmpeg.ffprobe_path", "ffprobe")
	v.SetDefault("ffmpeg.preset", "veryfast")
	v.SetDefault("ffmpeg.tool_timeout", "30m")
	v.SetDefault("ffmpeg.min_free_disk_mb", 512)

	v.SetDefault("events.buffer_size", 100)
	v.SetDefault("events.nats_url", "")
	v.SetDefault("events.subject_prefix", "visualix")

	v.SetDefault("watch.dir", "")
	v.SetDefault("watch.prompt", "")
}
