package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateServer(&cfg.Server)
	v.validatePlanner(&cfg.Planner)
	v.validateStorage(&cfg.Storage)
	v.validateJobs(&cfg.Jobs)
	v.validateCleanup(&cfg.Cleanup)
	v.validateFFmpeg(&cfg.FFmpeg)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{Field: field, Value: value, Message: msg})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}
	switch cfg.Format {
	case "auto", "text", "json":
	default:
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		v.addError("server.port", cfg.Port, "must be between 0 and 65535")
	}
	if cfg.ReadTimeout < 0 {
		v.addError("server.read_timeout", cfg.ReadTimeout, "must not be negative")
	}
}

func (v *Validator) validatePlanner(cfg *PlannerConfig) {
	switch cfg.Backend {
	case "genai":
		if cfg.BaseURL == "" {
			v.addError("planner.base_url", cfg.BaseURL, "required for the genai backend")
		}
	case "cli":
		if cfg.CLIPath == "" {
			v.addError("planner.cli_path", cfg.CLIPath, "required for the cli backend")
		}
	default:
		v.addError("planner.backend", cfg.Backend, "must be one of: genai, cli")
	}
	if cfg.Model == "" {
		v.addError("planner.model", cfg.Model, "must not be empty")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		v.addError("planner.temperature", cfg.Temperature, "must be between 0 and 2")
	}
	if cfg.MaxTokens <= 0 {
		v.addError("planner.max_tokens", cfg.MaxTokens, "must be positive")
	}
	if cfg.Timeout <= 0 {
		v.addError("planner.timeout", cfg.Timeout, "must be positive")
	}
	if cfg.RateLimit < 0 {
		v.addError("planner.rate_limit", cfg.RateLimit, "must not be negative")
	}
	if cfg.RateLimit > 0 && cfg.RateBurst < 1 {
		v.addError("planner.rate_burst", cfg.RateBurst, "must be at least 1 when rate_limit is set")
	}
}

func (v *Validator) validateStorage(cfg *StorageConfig) {
	for field, dir := range map[string]string{
		"storage.upload_dir": cfg.UploadDir,
		"storage.output_dir": cfg.OutputDir,
		"storage.temp_dir":   cfg.TempDir,
	} {
		if !isValidPath(dir) {
			v.addError(field, dir, "invalid directory path")
		}
	}
	if cfg.MaxFileSize <= 0 {
		v.addError("storage.max_file_size", cfg.MaxFileSize, "must be positive")
	}
	if len(cfg.AllowedFormats) == 0 {
		v.addError("storage.allowed_formats", cfg.AllowedFormats, "must list at least one extension")
	}
	for _, ext := range cfg.AllowedFormats {
		if !strings.HasPrefix(ext, ".") {
			v.addError("storage.allowed_formats", ext, "extensions must start with a dot")
		}
	}
}

func (v *Validator) validateJobs(cfg *JobsConfig) {
	if cfg.MaxConcurrent < 1 {
		v.addError("jobs.max_concurrent", cfg.MaxConcurrent, "must be at least 1")
	}
	if cfg.Timeout <= 0 {
		v.addError("jobs.timeout", cfg.Timeout, "must be positive")
	}
	switch cfg.Store {
	case "sqlite", "json":
	default:
		v.addError("jobs.store", cfg.Store, "must be one of: sqlite, json")
	}
	if !isValidPath(cfg.StorePath) {
		v.addError("jobs.store_path", cfg.StorePath, "invalid file path")
	}
}

func (v *Validator) validateCleanup(cfg *CleanupConfig) {
	if !cfg.Enabled {
		return
	}
	if cfg.Interval <= 0 {
		v.addError("cleanup.interval", cfg.Interval, "must be positive")
	}
	if cfg.MaxAge <= 0 {
		v.addError("cleanup.max_age", cfg.MaxAge, "must be positive")
	}
}

func (v *Validator) validateFFmpeg(cfg *FFmpegConfig) {
	if cfg.FFmpegPath == "" {
		v.addError("ffmpeg.ffmpeg_path", cfg.FFmpegPath, "must not be empty")
	}
	if cfg.FFprobePath == "" {
		v.addError("ffmpeg.ffprobe_path", cfg.FFprobePath, "must not be empty")
	}
}

func isValidPath(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	return filepath.Clean(path) != ""
}

// ValidateConfig is a convenience wrapper around Validator.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}
