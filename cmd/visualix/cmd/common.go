package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/visualix/visualix/internal/adapters/cli"
	"github.com/visualix/visualix/internal/adapters/ffmpeg"
	"github.com/visualix/visualix/internal/adapters/genai"
	"github.com/visualix/visualix/internal/adapters/state"
	"github.com/visualix/visualix/internal/config"
	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/diagnostics"
	"github.com/visualix/visualix/internal/events"
	"github.com/visualix/visualix/internal/logging"
	"github.com/visualix/visualix/internal/metrics"
	"github.com/visualix/visualix/internal/process"
	"github.com/visualix/visualix/internal/service/jobs"
	"github.com/visualix/visualix/internal/service/planner"
	"github.com/visualix/visualix/internal/service/workflow"
	"github.com/visualix/visualix/internal/storage"
	"github.com/visualix/visualix/internal/tools"
)

// minFreeMemMB is the memory floor checked before each ffmpeg invocation.
const minFreeMemMB = 256

// loadConfig reads and validates configuration using the global viper
// instance, so flag bindings apply.
func loadConfig() (*config.Config, *config.Loader, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, loader, nil
}

func newLogger(cfg *config.Config, out io.Writer) *logging.Logger {
	if out == nil {
		out = os.Stderr
	}
	return logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: out,
	})
}

// app holds the wired components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	store    core.JobStore
	files    *storage.Manager
	prober   *ffmpeg.Prober
	registry *tools.Registry
	planner  *planner.Planner
	metrics  *metrics.Metrics
	bus      *events.EventBus
	engine   *workflow.Engine
	jobs     *jobs.Service
}

// buildApp wires the job pipeline. The planner is optional: without a
// configured backend Analyze fails with AGENT_UNAVAILABLE.
func buildApp(cfg *config.Config, logger *logging.Logger) (*app, error) {
	files, err := storage.NewManager(storage.Config{
		UploadDir:      cfg.Storage.UploadDir,
		OutputDir:      cfg.Storage.OutputDir,
		TempDir:        cfg.Storage.TempDir,
		MaxFileSize:    cfg.Storage.MaxFileSize,
		AllowedFormats: cfg.Storage.AllowedFormats,
	}, logger)
	if err != nil {
		return nil, err
	}

	store, err := state.NewJobStore(cfg.Jobs.Store, cfg.Jobs.StorePath)
	if err != nil {
		return nil, fmt.Errorf("opening job store: %w", err)
	}

	// Probing and planning share a plain runner; ffmpeg runs behind the
	// resource preflight.
	runner := process.NewExecRunner(logger)
	preflight := diagnostics.NewPreflight(files.Dirs(), cfg.FFmpeg.MinFreeDiskMB, minFreeMemMB)
	toolRunner := process.NewExecRunner(logger,
		process.WithDefaultTimeout(cfg.FFmpeg.ToolTimeout),
		process.WithPreflight(preflight.Check),
	)

	registry := tools.NewDefaultRegistry(tools.Env{
		Runner:     toolRunner,
		FFmpegPath: cfg.FFmpeg.FFmpegPath,
		OutputDir:  cfg.Storage.OutputDir,
		Preset:     cfg.FFmpeg.Preset,
		Timeout:    cfg.FFmpeg.ToolTimeout,
		Logger:     logger,
	})

	agent, err := newAgent(cfg, runner, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	pl, err := planner.New(agent, registry, planner.Options{
		Model:             cfg.Planner.Model,
		Temperature:       cfg.Planner.Temperature,
		MaxTokens:         cfg.Planner.MaxTokens,
		Timeout:           cfg.Planner.Timeout,
		DropUnknownSteps:  cfg.Planner.DropUnknownSteps,
		RequestsPerMinute: cfg.Planner.RateLimit,
		Burst:             cfg.Planner.RateBurst,
	}, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	m := metrics.New()
	bus := events.New(cfg.Events.BufferSize)
	prober := ffmpeg.NewProber(runner, cfg.FFmpeg.FFprobePath)

	engine := workflow.NewEngine(registry,
		workflow.WithEventPublisher(bus),
		workflow.WithRecorder(m),
		workflow.WithLogger(logger),
	)

	svc := jobs.New(store, pl, engine, files, jobs.Config{
		MaxConcurrent: cfg.Jobs.MaxConcurrent,
		Timeout:       cfg.Jobs.Timeout,
	},
		jobs.WithProber(prober),
		jobs.WithEventPublisher(bus),
		jobs.WithRecorder(m),
		jobs.WithLogger(logger),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		files:    files,
		prober:   prober,
		registry: registry,
		planner:  pl,
		metrics:  m,
		bus:      bus,
		engine:   engine,
		jobs:     svc,
	}, nil
}

// newAgent builds the planning backend named by the config. It returns nil
// when no backend can be configured.
func newAgent(cfg *config.Config, runner process.Runner, logger *logging.Logger) (core.Agent, error) {
	switch strings.ToLower(cfg.Planner.Backend) {
	case "", "genai":
		if strings.TrimSpace(cfg.Planner.APIKey) == "" {
			logger.Warn("no planner API key configured; planning is disabled")
			return nil, nil
		}
		client, err := genai.New(genai.Config{
			APIKey:  cfg.Planner.APIKey,
			Model:   cfg.Planner.Model,
			BaseURL: cfg.Planner.BaseURL,
			Timeout: cfg.Planner.Timeout,
		}, genai.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return client, nil
	case "cli":
		return cli.NewGeminiAdapter(cli.AgentConfig{
			Path:    cfg.Planner.CLIPath,
			Model:   cfg.Planner.Model,
			Timeout: cfg.Planner.Timeout,
		}, runner, logger), nil
	default:
		return nil, core.ErrValidation(core.CodeInvalidConfig, "unknown planner backend: "+cfg.Planner.Backend)
	}
}

// Close stops running jobs and releases the store.
func (a *app) Close(ctx context.Context) error {
	err := a.jobs.Close(ctx)
	a.bus.Close()
	if cerr := a.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// setup loads config and builds the app in one step.
func setup(logOut io.Writer) (*app, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return buildApp(cfg, newLogger(cfg, logOut))
}
