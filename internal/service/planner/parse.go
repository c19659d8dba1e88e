package planner

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/visualix/visualix/internal/core"
)

// fenceOpenPattern matches the opening of a markdown code fence.
var fenceOpenPattern = regexp.MustCompile("```(?:json|JSON)?")

// requiredFields must all be present at the top level of a plan response.
var requiredFields = []string{"reasoning", "execution_type", "estimated_time", "complexity_score", "tool_sequence"}

// ExtractJSON returns the first JSON object embedded in a model response,
// with code fences, surrounding prose, line comments and trailing commas
// removed. An object inside a code fence takes precedence over one in the
// prose before it. It returns "" when no object is present.
func ExtractJSON(content string) string {
	from := 0
	if loc := fenceOpenPattern.FindStringIndex(content); loc != nil {
		if i := strings.IndexByte(content[loc[1]:], '{'); i >= 0 {
			from = loc[1] + i
		}
	}
	open := strings.IndexByte(content[from:], '{')
	if open < 0 {
		return ""
	}
	return scanObject(content[from+open:])
}

// scanObject copies the balanced object at the start of s. Outside string
// literals it drops // comments and commas that directly precede ] or }.
// An unterminated object is returned as far as it goes.
func scanObject(s string) string {
	var b strings.Builder
	depth := 0
	inString, escaped := false, false
	comma := -1 // position in b of a pending comma
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch {
		case ch == '/' && i+1 < len(s) && s[i+1] == '/':
			for i+1 < len(s) && s[i+1] != '\n' {
				i++
			}
			trimTrailingBlanks(&b)
			continue
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			b.WriteByte(ch)
			continue
		case ch == '}' || ch == ']':
			if comma >= 0 {
				out := b.String()[:comma]
				b.Reset()
				b.WriteString(out)
			}
			depth--
		case ch == '{' || ch == '[':
			depth++
		case ch == '"':
			inString = true
		}
		comma = -1
		if ch == ',' {
			comma = b.Len()
		}
		b.WriteByte(ch)
		if depth == 0 {
			return b.String()
		}
	}
	return b.String()
}

func trimTrailingBlanks(b *strings.Builder) {
	out := b.String()
	trimmed := strings.TrimRight(out, " \t")
	if len(trimmed) != len(out) {
		b.Reset()
		b.WriteString(trimmed)
	}
}

type rawStep struct {
	ToolName       *string     `json:"tool_name"`
	Parameters     core.Params `json:"parameters"`
	Reasoning      string      `json:"reasoning"`
	ExpectedOutput string      `json:"expected_output"`
}

// ParseResponse decodes a model response into a plan for prompt. Unknown
// tools are kept; apply DropUnknownSteps to remove them.
func ParseResponse(response, prompt string) (*core.WorkflowPlan, error) {
	payload := ExtractJSON(response)
	if payload == "" {
		return nil, core.ErrMalformedPlan("planner response contains no JSON object")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, core.ErrMalformedPlan("invalid JSON in planner response").WithCause(err)
	}
	for _, name := range requiredFields {
		if _, ok := fields[name]; !ok {
			return nil, core.ErrMalformedPlan("missing required field: "+name).WithDetail("field", name)
		}
	}

	plan := &core.WorkflowPlan{Prompt: prompt}

	if err := json.Unmarshal(fields["reasoning"], &plan.Reasoning); err != nil {
		return nil, fieldError("reasoning", err)
	}
	if err := json.Unmarshal(fields["execution_type"], &plan.ExecutionType); err != nil {
		return nil, fieldError("execution_type", err)
	}

	est, err := decodeNumber(fields["estimated_time"])
	if err != nil {
		return nil, fieldError("estimated_time", err)
	}
	plan.EstimatedTime = est

	score, err := decodeNumber(fields["complexity_score"])
	if err != nil {
		return nil, fieldError("complexity_score", err)
	}
	plan.ComplexityScore = int(math.Trunc(score))

	var steps []rawStep
	if err := json.Unmarshal(fields["tool_sequence"], &steps); err != nil {
		return nil, fieldError("tool_sequence", err)
	}
	plan.ToolSequence = make([]core.ToolPlan, 0, len(steps))
	for i, s := range steps {
		if s.ToolName == nil {
			return nil, core.ErrMalformedPlan(fmt.Sprintf("tool_sequence[%d] has no tool_name", i))
		}
		params := s.Parameters
		if params == nil {
			params = core.Params{}
		}
		plan.ToolSequence = append(plan.ToolSequence, core.ToolPlan{
			ToolName:       strings.TrimSpace(*s.ToolName),
			Parameters:     params,
			Reasoning:      s.Reasoning,
			ExpectedOutput: s.ExpectedOutput,
		})
	}
	return plan, nil
}

// DropUnknownSteps removes steps whose tool is not known, keeping the
// relative order of the rest. The plan is modified in place and the dropped
// names are appended to plan.DroppedSteps and returned.
func DropUnknownSteps(plan *core.WorkflowPlan, known func(string) bool) []string {
	if plan == nil {
		return nil
	}
	kept := plan.ToolSequence[:0]
	var dropped []string
	for _, step := range plan.ToolSequence {
		if known(step.ToolName) {
			kept = append(kept, step)
			continue
		}
		dropped = append(dropped, step.ToolName)
	}
	plan.ToolSequence = kept
	plan.DroppedSteps = append(plan.DroppedSteps, dropped...)
	return dropped
}

// decodeNumber accepts a JSON number or a numeric string.
func decodeNumber(raw json.RawMessage) (float64, error) {
	var n json.Number
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case json.Number:
		n = t
	case string:
		n = json.Number(strings.TrimSpace(t))
	default:
		return 0, fmt.Errorf("expected a number, got %s", string(raw))
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("expected a number, got %s", string(raw))
	}
	return f, nil
}

func fieldError(field string, err error) error {
	return core.ErrMalformedPlan("invalid value for field: "+field).WithCause(err).WithDetail("field", field)
}
