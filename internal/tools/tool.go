// Package tools implements the video operations the planner can choose
// from. Every tool renders an ffmpeg filter graph from its parameters and
// runs ffmpeg once over the input file.
package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/logging"
	"github.com/visualix/visualix/internal/process"
)

// Env is the shared execution environment bound into every tool factory.
type Env struct {
	Runner     process.Runner
	FFmpegPath string
	OutputDir  string
	Preset     string
	Timeout    time.Duration
	Logger     *logging.Logger
}

func (e Env) withDefaults() Env {
	if e.FFmpegPath == "" {
		e.FFmpegPath = "ffmpeg"
	}
	if e.OutputDir == "" {
		e.OutputDir = "outputs"
	}
	if e.Preset == "" {
		e.Preset = "veryfast"
	}
	if e.Logger == nil {
		e.Logger = logging.NewNop()
	}
	if e.Runner == nil {
		e.Runner = process.NewExecRunner(e.Logger)
	}
	return e
}

// filterBuilder renders the -vf argument for one invocation.
type filterBuilder func(name string, p core.Params) (string, error)

type spec struct {
	name        string
	category    string
	description string
	params      map[string]core.ParamSpec
	build       filterBuilder
}

// filterTool is the single implementation behind every registered tool.
type filterTool struct {
	spec
	env Env
}

func (t *filterTool) Name() string                          { return t.name }
func (t *filterTool) Category() string                      { return t.category }
func (t *filterTool) Description() string                   { return t.description }
func (t *filterTool) Parameters() map[string]core.ParamSpec { return t.params }

// Filter renders the filter graph without running anything.
func (t *filterTool) Filter(params core.Params) (string, error) {
	return t.build(t.name, params)
}

// Execute runs ffmpeg over videoPath. Invalid parameters and a missing input
// are returned as errors; an ffmpeg failure is reported through the result.
func (t *filterTool) Execute(ctx context.Context, videoPath string, params core.Params) (*core.ToolResult, error) {
	start := time.Now()

	info, err := os.Stat(videoPath)
	if err != nil {
		return nil, core.ErrStorage(fmt.Sprintf("input video not accessible: %s", videoPath)).WithCause(err)
	}
	if info.IsDir() {
		return nil, core.ErrStorage(fmt.Sprintf("input path is a directory: %s", videoPath))
	}

	filter, err := t.build(t.name, params)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(t.env.OutputDir, 0o750); err != nil {
		return nil, core.ErrStorage("creating output directory").WithCause(err)
	}
	output := OutputPath(t.env.OutputDir, videoPath, t.name)

	args := []string{
		"-hide_banner", "-nostdin", "-loglevel", "error", "-y",
		"-i", videoPath,
		"-vf", filter,
		"-c:v", "libx264", "-preset", t.env.Preset, "-pix_fmt", "yuv420p",
		"-c:a", "copy",
		output,
	}

	logger := t.env.Logger.WithTool(t.name)
	logger.Debug("running tool", "input", videoPath, "output", output, "filter", filter)

	_, runErr := t.env.Runner.Run(ctx, process.Command{
		Path:    t.env.FFmpegPath,
		Args:    args,
		Timeout: t.env.Timeout,
	})
	elapsed := time.Since(start)

	result := &core.ToolResult{
		ExecutionTime: elapsed,
		Metadata: map[string]interface{}{
			"filter":   filter,
			"category": t.category,
		},
	}
	if runErr != nil {
		result.ErrorMessage = fmt.Sprintf("%s failed: %v", t.name, runErr)
		return result, nil
	}

	out, err := os.Stat(output)
	if err != nil || out.Size() == 0 {
		result.ErrorMessage = fmt.Sprintf("%s produced no output file at %s", t.name, output)
		return result, nil
	}

	result.Success = true
	result.OutputPath = output
	result.Metadata["output_size"] = out.Size()
	return result, nil
}

// OutputPath returns "<dir>/<stem>_<tool><ext>" for input. Chained tools
// therefore accumulate suffixes and never overwrite their own input.
func OutputPath(dir, input, tool string) string {
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".mp4"
	}
	return filepath.Join(dir, stem+"_"+tool+ext)
}

// Schema helpers.

func floatParam(desc string, lo, hi, def float64) core.ParamSpec {
	return core.ParamSpec{Type: core.ParamFloat, Description: desc, Min: &lo, Max: &hi, Default: def, HasDefault: true}
}

func intParam(desc string, lo, hi float64, def int) core.ParamSpec {
	return core.ParamSpec{Type: core.ParamInt, Description: desc, Min: &lo, Max: &hi, Default: def, HasDefault: true}
}

func boolParam(desc string, def bool) core.ParamSpec {
	return core.ParamSpec{Type: core.ParamBool, Description: desc, Default: def, HasDefault: true}
}

func enumParam(desc, def string, values ...string) core.ParamSpec {
	return core.ParamSpec{Type: core.ParamString, Description: desc, Enum: values, Default: def, HasDefault: true}
}

// noDefaultInt has no schema default, so the validator expects the planner
// to supply it. Tools that can work without it check presence themselves.
func noDefaultInt(desc string, lo, hi float64) core.ParamSpec {
	spec := core.ParamSpec{Type: core.ParamInt, Description: desc, Min: &lo}
	if hi > 0 {
		spec.Max = &hi
	}
	return spec
}

func noDefaultFloat(desc string, lo, hi float64) core.ParamSpec {
	return core.ParamSpec{Type: core.ParamFloat, Description: desc, Min: &lo, Max: &hi}
}

func fmtF(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
