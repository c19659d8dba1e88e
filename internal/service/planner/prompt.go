package planner

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"github.com/visualix/visualix/internal/core"
)

//go:embed prompts/*.md.tmpl
var promptsFS embed.FS

// promptRenderer renders the planner prompts from embedded templates.
type promptRenderer struct {
	templates map[string]*template.Template
}

func newPromptRenderer() (*promptRenderer, error) {
	r := &promptRenderer{templates: make(map[string]*template.Template)}

	err := fs.WalkDir(promptsFS, "prompts", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".md.tmpl") {
			return nil
		}

		content, err := promptsFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		name := strings.TrimSuffix(strings.TrimPrefix(path, "prompts/"), ".md.tmpl")
		tmpl, err := template.New(name).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return fmt.Errorf("parsing template %s: %w", name, err)
		}
		r.templates[name] = tmpl
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	return r, nil
}

func (r *promptRenderer) render(name string, data interface{}) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("template not found: %s", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}

// systemPrompt embeds the tool catalog as indented JSON.
func (r *promptRenderer) systemPrompt(tools map[string]core.ToolDescriptor) (string, error) {
	data, err := json.MarshalIndent(tools, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding tool catalog: %w", err)
	}
	return r.render("system", struct{ Tools string }{string(data)})
}

func (r *promptRenderer) analyzePrompt(prompt string, meta *core.VideoMetadata) (string, error) {
	videoContext := "No metadata provided"
	if meta != nil {
		data, err := json.Marshal(meta)
		if err != nil {
			return "", fmt.Errorf("encoding video metadata: %w", err)
		}
		videoContext = string(data)
	}
	return r.render("analyze", struct {
		Prompt       string
		VideoContext string
	}{prompt, videoContext})
}

// planSummary is the subset of a plan sent back to the model.
type planSummary struct {
	Reasoning       string        `json:"reasoning"`
	ExecutionType   string        `json:"execution_type"`
	EstimatedTime   *float64      `json:"estimated_time,omitempty"`
	ComplexityScore *int          `json:"complexity_score,omitempty"`
	ToolSequence    []stepSummary `json:"tool_sequence"`
}

type stepSummary struct {
	ToolName   string      `json:"tool_name"`
	Parameters core.Params `json:"parameters"`
	Reasoning  string      `json:"reasoning"`
}

func summarize(plan *core.WorkflowPlan, withEstimates bool) (string, error) {
	s := planSummary{
		Reasoning:     plan.Reasoning,
		ExecutionType: plan.ExecutionType,
		ToolSequence:  make([]stepSummary, len(plan.ToolSequence)),
	}
	if withEstimates {
		s.EstimatedTime = &plan.EstimatedTime
		s.ComplexityScore = &plan.ComplexityScore
	}
	for i, step := range plan.ToolSequence {
		params := step.Parameters
		if params == nil {
			params = core.Params{}
		}
		s.ToolSequence[i] = stepSummary{ToolName: step.ToolName, Parameters: params, Reasoning: step.Reasoning}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding plan: %w", err)
	}
	return string(data), nil
}

func (r *promptRenderer) refinePrompt(plan *core.WorkflowPlan, feedback string) (string, error) {
	summary, err := summarize(plan, false)
	if err != nil {
		return "", err
	}
	return r.render("refine", struct {
		Prompt   string
		Plan     string
		Feedback string
	}{plan.Prompt, summary, feedback})
}

func (r *promptRenderer) explainPrompt(plan *core.WorkflowPlan) (string, error) {
	summary, err := summarize(plan, true)
	if err != nil {
		return "", err
	}
	return r.render("explain", struct {
		Prompt string
		Plan   string
	}{plan.Prompt, summary})
}
