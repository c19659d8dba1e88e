package cli

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/logging"
	"github.com/visualix/visualix/internal/process"
)

// DefaultGeminiModel is used when neither the config nor the call names a model.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiAdapter implements core.Agent for the gemini CLI.
type GeminiAdapter struct {
	*BaseAdapter
}

// NewGeminiAdapter creates a new Gemini CLI adapter.
func NewGeminiAdapter(cfg AgentConfig, runner process.Runner, logger *logging.Logger) *GeminiAdapter {
	if cfg.Path == "" {
		cfg.Path = "gemini"
	}
	if cfg.Name == "" {
		cfg.Name = "gemini-cli"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &GeminiAdapter{BaseAdapter: NewBaseAdapter(cfg, runner, logger.With("adapter", cfg.Name))}
}

// Name returns the adapter name.
func (g *GeminiAdapter) Name() string {
	return g.config.Name
}

// Ping checks that the CLI is installed and answers --version.
func (g *GeminiAdapter) Ping(ctx context.Context) error {
	if err := g.CheckAvailability(ctx); err != nil {
		return err
	}
	_, err := g.GetVersion(ctx, "--version")
	return err
}

// Execute sends the prompt on stdin and parses the CLI's JSON envelope.
func (g *GeminiAdapter) Execute(ctx context.Context, opts core.ExecuteOptions) (*core.ExecuteResult, error) {
	model := g.model(opts)
	result, err := g.ExecuteCommand(ctx, g.buildArgs(model), g.buildStdin(opts), opts.Timeout)
	if err != nil {
		return nil, err
	}
	return g.parseOutput(result, model)
}

func (g *GeminiAdapter) model(opts core.ExecuteOptions) string {
	switch {
	case opts.Model != "":
		return opts.Model
	case g.config.Model != "":
		return g.config.Model
	default:
		return DefaultGeminiModel
	}
}

func (g *GeminiAdapter) buildArgs(model string) []string {
	return []string{"--model", model, "--output-format", "json"}
}

// buildStdin prepends the system prompt; the CLI has no separate channel for it.
func (g *GeminiAdapter) buildStdin(opts core.ExecuteOptions) string {
	if strings.TrimSpace(opts.SystemPrompt) == "" {
		return opts.Prompt
	}
	return opts.SystemPrompt + "\n\n" + opts.Prompt
}

// geminiCLIResponse is the envelope printed by --output-format json.
type geminiCLIResponse struct {
	Response string `json:"response"`
	Stats    struct {
		Models map[string]struct {
			Tokens struct {
				Prompt     int `json:"prompt"`
				Candidates int `json:"candidates"`
			} `json:"tokens"`
		} `json:"models"`
	} `json:"stats"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// geminiAPIResponse is the raw generateContent shape some CLI versions print.
type geminiAPIResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (g *GeminiAdapter) parseOutput(result *process.Result, model string) (*core.ExecuteResult, error) {
	out := &core.ExecuteResult{
		Output:   strings.TrimSpace(result.Stdout),
		Duration: result.Duration,
		Model:    model,
	}

	var envelope geminiCLIResponse
	if err := json.Unmarshal([]byte(result.Stdout), &envelope); err == nil {
		if envelope.Error != nil && envelope.Error.Message != "" {
			return nil, g.classifyError(&process.Result{Stderr: envelope.Error.Message, ExitCode: result.ExitCode})
		}
		if envelope.Response != "" {
			out.Output = envelope.Response
			for _, m := range envelope.Stats.Models {
				out.TokensIn += m.Tokens.Prompt
				out.TokensOut += m.Tokens.Candidates
			}
			g.estimateMissing(out)
			return out, nil
		}
	}

	var api geminiAPIResponse
	if err := json.Unmarshal([]byte(result.Stdout), &api); err == nil && len(api.Candidates) > 0 {
		parts := make([]string, 0, len(api.Candidates[0].Content.Parts))
		for _, p := range api.Candidates[0].Content.Parts {
			parts = append(parts, p.Text)
		}
		out.Output = strings.Join(parts, "")
		out.FinishReason = api.Candidates[0].FinishReason
		out.TokensIn = api.UsageMetadata.PromptTokenCount
		out.TokensOut = api.UsageMetadata.CandidatesTokenCount
	}

	g.estimateMissing(out)
	return out, nil
}

func (g *GeminiAdapter) estimateMissing(out *core.ExecuteResult) {
	if out.TokensOut == 0 {
		out.TokensOut = TokenEstimate(out.Output)
	}
}

var _ core.Agent = (*GeminiAdapter)(nil)
