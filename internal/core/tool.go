package core

import (
	"context"
	"time"
)

// ParamType is the declared type of a tool parameter.
type ParamType string

const (
	ParamFloat  ParamType = "float"
	ParamInt    ParamType = "int"
	ParamBool   ParamType = "bool"
	ParamString ParamType = "str"
	ParamList   ParamType = "list"
)

// ParamSpec describes one tool parameter for the planner and the validator.
type ParamSpec struct {
	Type        ParamType   `json:"type"`
	Description string      `json:"description,omitempty"`
	Min         *float64    `json:"min,omitempty"`
	Max         *float64    `json:"max,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
	Default     interface{} `json:"default,omitempty"`
	HasDefault  bool        `json:"-"`
}

// Required reports whether the planner must supply the parameter.
func (p ParamSpec) Required() bool {
	return !p.HasDefault
}

// ToolDescriptor is the static description of a registered tool.
type ToolDescriptor struct {
	Name        string               `json:"name"`
	Category    string               `json:"category"`
	Description string               `json:"description"`
	Parameters  map[string]ParamSpec `json:"parameters"`
}

// ToolResult is what a tool returns after processing a video.
type ToolResult struct {
	Success       bool                   `json:"success"`
	OutputPath    string                 `json:"output_path,omitempty"`
	ExecutionTime time.Duration          `json:"execution_time"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Tool is one parameterized video operation.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]ParamSpec
	Execute(ctx context.Context, videoPath string, params Params) (*ToolResult, error)
}

// ToolFactory builds a ready-to-use tool with no further arguments.
type ToolFactory func() Tool
