package planner

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/visualix/visualix/internal/core"
)

// Catalog is the read side of the tool registry used for planning.
type Catalog interface {
	Has(name string) bool
	Names() []string
	DescribeAll() map[string]core.ToolDescriptor
}

// implicitParam is supplied by the engine and never expected from the planner.
const implicitParam = "video_path"

// Validate screens plan against the catalog and returns advisory warnings.
// It never fails; an empty result means no issues were found.
func Validate(plan *core.WorkflowPlan, catalog Catalog) []string {
	warnings := []string{}
	if plan == nil {
		return append(warnings, "Workflow has no tools selected")
	}

	if len(plan.ToolSequence) == 0 {
		warnings = append(warnings, "Workflow has no tools selected")
	}

	names := catalog.Names()
	for _, step := range plan.ToolSequence {
		if catalog.Has(step.ToolName) {
			continue
		}
		msg := "Unknown tool: " + step.ToolName
		if suggestion := suggest(step.ToolName, names); suggestion != "" {
			msg += fmt.Sprintf(" (did you mean %s?)", suggestion)
		}
		warnings = append(warnings, msg)
	}

	if plan.ComplexityScore < 1 || plan.ComplexityScore > 5 {
		warnings = append(warnings, fmt.Sprintf("Complexity score %d is outside valid range (1-5)", plan.ComplexityScore))
	}

	if plan.EstimatedTime < 1 {
		warnings = append(warnings, fmt.Sprintf("Estimated time %s seems unrealistically low", formatSeconds(plan.EstimatedTime)))
	}

	descriptors := catalog.DescribeAll()
	for _, step := range plan.ToolSequence {
		desc, ok := descriptors[step.ToolName]
		if !ok {
			continue
		}
		params := make([]string, 0, len(desc.Parameters))
		for name := range desc.Parameters {
			params = append(params, name)
		}
		sort.Strings(params)
		for _, name := range params {
			if name == implicitParam {
				continue
			}
			spec := desc.Parameters[name]
			if !step.Parameters.Has(name) {
				if spec.Required() {
					warnings = append(warnings, fmt.Sprintf("Tool %s missing required parameter: %s", step.ToolName, name))
				}
				continue
			}
			if step.Parameters[name] == nil {
				continue
			}
			if msg := checkValue(step.ToolName, name, spec, step.Parameters); msg != "" {
				warnings = append(warnings, msg)
			}
		}
		if pair, ok := dimensionPairs[step.ToolName]; ok {
			warnings = append(warnings, checkPair(step, pair)...)
		}
	}

	return warnings
}

// dimensionPairs lists tools whose width and height are meant to be set
// together. A lone side is scaled to keep the aspect ratio.
var dimensionPairs = map[string][2]string{
	"resize_video":      {"width", "height"},
	"apply_perspective": {"output_width", "output_height"},
}

// checkValue reports a planned value that the tool would reject.
func checkValue(tool, name string, spec core.ParamSpec, params core.Params) string {
	switch spec.Type {
	case core.ParamFloat, core.ParamInt:
		f, err := params.Float(tool, name, 0)
		if err != nil {
			return fmt.Sprintf("Tool %s parameter %s is not a finite number", tool, name)
		}
		switch {
		case spec.Min != nil && spec.Max != nil && (f < *spec.Min || f > *spec.Max):
			return fmt.Sprintf("Tool %s parameter %s=%s is outside valid range (%s to %s)",
				tool, name, formatNumber(f), formatNumber(*spec.Min), formatNumber(*spec.Max))
		case spec.Min != nil && f < *spec.Min:
			return fmt.Sprintf("Tool %s parameter %s=%s is below minimum %s", tool, name, formatNumber(f), formatNumber(*spec.Min))
		case spec.Max != nil && f > *spec.Max:
			return fmt.Sprintf("Tool %s parameter %s=%s is above maximum %s", tool, name, formatNumber(f), formatNumber(*spec.Max))
		}
	case core.ParamString:
		if len(spec.Enum) == 0 {
			return ""
		}
		if _, err := params.Enum(tool, name, "", spec.Enum...); err != nil {
			return fmt.Sprintf("Tool %s parameter %s=%v is not one of: %s",
				tool, name, params[name], strings.Join(spec.Enum, ", "))
		}
	}
	return ""
}

func checkPair(step core.ToolPlan, pair [2]string) []string {
	hasFirst, hasSecond := step.Parameters.Has(pair[0]), step.Parameters.Has(pair[1])
	switch {
	case hasFirst && !hasSecond:
		return []string{fmt.Sprintf("Tool %s sets %s without %s; %s will follow the aspect ratio", step.ToolName, pair[0], pair[1], pair[1])}
	case hasSecond && !hasFirst:
		return []string{fmt.Sprintf("Tool %s sets %s without %s; %s will follow the aspect ratio", step.ToolName, pair[1], pair[0], pair[0])}
	case hasFirst && hasSecond && step.Parameters.Has("scale"):
		return []string{fmt.Sprintf("Tool %s sets scale, which overrides %s and %s", step.ToolName, pair[0], pair[1])}
	}
	return nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// suggest returns the closest registered name for an unknown tool, or "".
func suggest(name string, names []string) string {
	if name == "" {
		return ""
	}
	matches := fuzzy.Find(name, names)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}

// formatSeconds renders whole numbers with one decimal ("0.0") and keeps
// fractional values as they are ("0.5").
func formatSeconds(v float64) string {
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
