package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/visualix/visualix/internal/service/jobs"
	"github.com/visualix/visualix/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run <video>",
	Short: "Plan and process one video",
	Long: `Upload a video, plan the edit described by --prompt and run it, showing
progress until the output is ready. Ctrl+C cancels after the current tool.

Examples:
  visualix run clip.mp4 --prompt "make it black and white and add a vignette"
  visualix run clip.mp4 -m "stabilize" --out stable.mp4 -o plain`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runPrompt string
	runOut    string
	runKeep   bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runPrompt, "prompt", "m", "", "what to do with the video")
	runCmd.Flags().StringVar(&runOut, "out", "", "copy the result to this path")
	runCmd.Flags().BoolVar(&runKeep, "keep", false, "keep the job and its files after copying the result")
	_ = runCmd.MarkFlagRequired("prompt")
}

func runRun(cmd *cobra.Command, args []string) error {
	mode, err := detectOutput()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Logs would tear the progress view.
	var logOut io.Writer
	if mode == tui.ModeTUI {
		logOut = io.Discard
	}
	a, err := setup(logOut)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = a.Close(closeCtx)
	}()

	in, err := os.Open(args[0])
	if err != nil {
		return err
	}
	job, err := a.jobs.Create(ctx, jobs.CreateRequest{
		Filename: filepath.Base(args[0]),
		Body:     in,
		Prompt:   runPrompt,
	})
	_ = in.Close()
	if err != nil {
		return err
	}

	eventCh := a.bus.SubscribeJob(job.ID)
	defer a.bus.Unsubscribe(eventCh)

	res, err := a.jobs.Process(ctx, job.ID, runPrompt)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, w := range res.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), tui.WarningStyle.Render("warning: ")+w)
	}

	cancelJob := func() {
		if _, err := a.jobs.Cancel(context.Background(), job.ID); err != nil {
			a.logger.Warn("cancel failed", "job_id", job.ID, "error", err)
		}
	}

	var outcome tui.Outcome
	if mode == tui.ModeTUI {
		model := tui.NewRunModel(job.ID, args[0], res.Plan.ToolNames(), eventCh, cancelJob)
		outcome, err = tui.RunProgress(ctx, model, tea.WithOutput(out))
		if err != nil {
			return err
		}
	} else {
		go func() {
			<-ctx.Done()
			cancelJob()
		}()
		outcome = tui.Follow(context.Background(), out, mode, job.ID, eventCh)
	}

	if !outcome.Finished() || outcome.Status == "unknown" {
		// Interrupted before the terminal event arrived.
		cancelJob()
		waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		final, werr := a.jobs.Wait(waitCtx, job.ID)
		if werr != nil {
			return werr
		}
		outcome = tui.Outcome{JobID: job.ID, Status: string(final.Status), OutputPath: final.OutputPath, Error: final.Error}
	}

	return finishRun(a, outcome, out)
}

func finishRun(a *app, outcome tui.Outcome, out io.Writer) error {
	switch outcome.Status {
	case "completed":
	case "cancelled":
		fmt.Fprintln(out, tui.SkippedStyle.Render("Job was cancelled"))
		return nil
	default:
		return fmt.Errorf("job %s %s: %s", outcome.JobID, outcome.Status, outcome.Error)
	}

	result := outcome.OutputPath
	if runOut != "" {
		if err := copyFile(outcome.OutputPath, runOut); err != nil {
			return fmt.Errorf("copying result: %w", err)
		}
		result = runOut
		if !runKeep {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			// The run releases the job shortly after the completion event.
			_, _ = a.jobs.Wait(ctx, outcome.JobID)
			if err := a.jobs.Delete(ctx, outcome.JobID); err != nil {
				a.logger.Warn("removing job files", "job_id", outcome.JobID, "error", err)
			}
		}
	}
	fmt.Fprintln(out, tui.CompletedStyle.Render("✓ ")+result)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
