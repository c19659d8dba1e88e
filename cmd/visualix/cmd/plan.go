package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/visualix/visualix/internal/clip"
	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/tui"
)

var planCmd = &cobra.Command{
	Use:   "plan <prompt>",
	Short: "Show the tool plan for a request without running it",
	Long: `Ask the planner which tools and parameters it would use for a request.
With --video the plan takes the clip's resolution, duration and frame rate
into account.

Examples:
  visualix plan "make it look like an old film"
  visualix plan "crop to the center square" --video clip.mp4 --copy
  visualix plan "brighter" --refine "much brighter, and sharpen too"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

var (
	planVideo   string
	planRefine  string
	planCopy    bool
	planExplain bool
)

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVar(&planVideo, "video", "", "probe this video for context")
	planCmd.Flags().StringVar(&planRefine, "refine", "", "revise the plan with this feedback")
	planCmd.Flags().BoolVar(&planCopy, "copy", false, "copy the rendered plan to the clipboard")
	planCmd.Flags().BoolVar(&planExplain, "explain", true, "include a plain-language explanation")
}

type planOutput struct {
	Plan        *core.WorkflowPlan  `json:"workflow_plan"`
	Metadata    *core.VideoMetadata `json:"video_metadata,omitempty"`
	Warnings    []string            `json:"warnings"`
	Explanation string              `json:"explanation,omitempty"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(ctx) }()

	var meta *core.VideoMetadata
	if planVideo != "" {
		if meta, err = a.prober.Probe(ctx, planVideo); err != nil {
			return fmt.Errorf("probing %s: %w", planVideo, err)
		}
	}

	plan, err := a.planner.Analyze(ctx, strings.Join(args, " "), meta)
	if err != nil {
		return err
	}
	if planRefine != "" {
		if plan, err = a.planner.Refine(ctx, plan, planRefine); err != nil {
			return err
		}
	}

	res := planOutput{Plan: plan, Metadata: meta, Warnings: a.planner.Validate(plan)}
	if res.Warnings == nil {
		res.Warnings = []string{}
	}
	if planExplain {
		res.Explanation = a.planner.Explain(ctx, plan)
	}

	mode, err := detectOutput()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if mode == tui.ModeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	md := tui.PlanMarkdown(plan, res.Warnings, res.Explanation)
	rendered, err := tui.RenderMarkdown(md, terminalWidth(), useColor())
	if err != nil {
		rendered = md
	}
	fmt.Fprint(out, rendered)

	if planCopy {
		r, err := clip.New().Copy(md)
		if err != nil {
			return fmt.Errorf("copying plan: %w", err)
		}
		if r.Method == clip.MethodFile {
			fmt.Fprintln(cmd.ErrOrStderr(), tui.MutedStyle.Render("clipboard unavailable; plan written to "+r.FilePath))
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), tui.MutedStyle.Render("plan copied ("+string(r.Method)+")"))
		}
	}
	return nil
}
