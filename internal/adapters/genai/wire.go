package genai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/visualix/visualix/internal/core"
)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

func buildRequest(opts core.ExecuteOptions) generateRequest {
	temp := opts.Temperature
	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: opts.Prompt}}}},
		GenerationConfig: &generationConfig{
			Temperature:     &temp,
			MaxOutputTokens: opts.MaxTokens,
		},
	}
	if strings.TrimSpace(opts.SystemPrompt) != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: opts.SystemPrompt}}}
	}
	if opts.Format == core.OutputFormatJSON {
		req.GenerationConfig.ResponseMimeType = "application/json"
	}
	return req
}

func parseResponse(data []byte) (*core.ExecuteResult, error) {
	var resp generateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, core.ErrExecution("BAD_RESPONSE", "genai: response is not JSON").WithCause(err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		e := core.ErrExecution("PROMPT_BLOCKED", "genai: prompt blocked: "+resp.PromptFeedback.BlockReason)
		e.Retryable = false
		return nil, e
	}
	if len(resp.Candidates) == 0 {
		return nil, core.ErrExecution("EMPTY_RESPONSE", "genai: response has no candidates")
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return nil, core.ErrExecution("EMPTY_RESPONSE",
			fmt.Sprintf("genai: empty candidate (finish reason %s)", cand.FinishReason))
	}

	return &core.ExecuteResult{
		Output:       sb.String(),
		TokensIn:     resp.UsageMetadata.PromptTokenCount,
		TokensOut:    resp.UsageMetadata.CandidatesTokenCount,
		Model:        resp.ModelVersion,
		FinishReason: cand.FinishReason,
	}, nil
}
