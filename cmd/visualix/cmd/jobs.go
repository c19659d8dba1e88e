package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/tui"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and remove stored jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJobsList,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one job with its plan and execution",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <job-id>...",
	Short: "Delete jobs and their files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runJobsDelete,
}

var (
	jobsStatus string
	jobsLimit  int
	jobsOffset int
)

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsShowCmd, jobsDeleteCmd)

	jobsListCmd.Flags().StringVar(&jobsStatus, "status", "", "only jobs with this status")
	jobsListCmd.Flags().IntVar(&jobsLimit, "limit", 20, "maximum number of jobs")
	jobsListCmd.Flags().IntVar(&jobsOffset, "offset", 0, "skip this many jobs")
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := setup(nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(ctx) }()

	filter := core.JobFilter{Status: core.JobStatus(jobsStatus), Limit: jobsLimit, Offset: jobsOffset}
	list, total, err := a.jobs.List(ctx, filter)
	if err != nil {
		return err
	}

	mode, err := detectOutput()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if mode == tui.ModeJSON {
		return json.NewEncoder(out).Encode(map[string]interface{}{"jobs": list, "total": total})
	}

	rows := make([][]string, 0, len(list))
	for _, j := range list {
		rows = append(rows, []string{
			j.ID,
			string(j.Status),
			fmt.Sprintf("%d%%", j.Progress),
			j.OriginalFilename,
			truncate(j.Prompt, 40),
			j.CreatedAt.Local().Format(time.DateTime),
		})
	}
	fmt.Fprintln(out, tui.Table([]string{"ID", "STATUS", "PROGRESS", "FILE", "PROMPT", "CREATED"}, rows, 1))
	fmt.Fprintln(out, tui.MutedStyle.Render(fmt.Sprintf("%d of %d jobs", len(list), total)))
	return nil
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(ctx) }()

	job, err := a.jobs.Get(ctx, args[0])
	if err != nil {
		return err
	}

	mode, err := detectOutput()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if mode == tui.ModeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	}

	fmt.Fprintln(out, tui.HeaderStyle.Render("Job "+job.ID))
	fmt.Fprintf(out, "Status:   %s (%d%%)\n", tui.StatusStyle(string(job.Status)).Render(string(job.Status)), job.Progress)
	fmt.Fprintf(out, "File:     %s\n", job.OriginalFilename)
	if job.Prompt != "" {
		fmt.Fprintf(out, "Prompt:   %s\n", job.Prompt)
	}
	if job.OutputPath != "" {
		fmt.Fprintf(out, "Output:   %s\n", job.OutputPath)
	}
	if job.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", tui.ErrorTextStyle.Render(job.Error))
	}
	fmt.Fprintf(out, "Created:  %s\n", job.CreatedAt.Local().Format(time.DateTime))

	if job.Plan != nil && !job.Plan.IsEmpty() {
		md := tui.PlanMarkdown(job.Plan, job.Warnings, "")
		if rendered, err := tui.RenderMarkdown(md, terminalWidth(), useColor()); err == nil {
			md = rendered
		}
		fmt.Fprint(out, md)
	}
	if exec := job.Execution; exec != nil && len(exec.ExecutedTools) > 0 {
		rows := make([][]string, 0, len(exec.ExecutedTools))
		for i, r := range exec.ExecutedTools {
			rows = append(rows, []string{fmt.Sprint(i + 1), r.ToolName, string(r.Status), fmt.Sprintf("%.1fs", r.ExecutionTime), r.Error})
		}
		fmt.Fprintln(out, tui.Table([]string{"#", "TOOL", "RESULT", "TIME", "ERROR"}, rows, 2))
	}
	return nil
}

func runJobsDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(ctx) }()

	var failed int
	for _, id := range args {
		if err := a.jobs.Delete(ctx, id); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), tui.FailedStyle.Render("✗ ")+id+": "+err.Error())
			failed++
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.CompletedStyle.Render("✓ ")+"deleted "+id)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs not deleted", failed, len(args))
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
