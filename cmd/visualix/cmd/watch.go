package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/visualix/visualix/internal/events"
	"github.com/visualix/visualix/internal/tui"
	"github.com/visualix/visualix/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Process every video dropped into a folder",
	Long: `Watch a folder and submit each new video as a job. The prompt comes from
a sidecar file next to the video (clip.mp4 -> clip.prompt.txt) or, when
there is none, from --prompt. Results land in the configured output dir.

Examples:
  visualix watch ./inbox --prompt "stabilize and sharpen"`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var (
	watchPrompt   string
	watchExisting bool
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVarP(&watchPrompt, "prompt", "m", "", "prompt for videos without a sidecar")
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "also submit videos already in the folder")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(nil)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = a.Close(closeCtx)
	}()

	prompt := watchPrompt
	if prompt == "" {
		prompt = a.cfg.Watch.Prompt
	}
	w, err := watch.New(watch.Config{
		Dir:          args[0],
		Prompt:       prompt,
		ScanExisting: watchExisting,
	}, a.jobs, watch.WithLogger(a.logger), watch.WithFormatChecker(a.files))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, tui.HeaderStyle.Render("Watching "+args[0])+tui.MutedStyle.Render("  ctrl+c to stop"))

	done := a.bus.Subscribe(events.TypeJobCompleted, events.TypeJobFailed, events.TypeJobCancelled)
	defer a.bus.Unsubscribe(done)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case sub := <-w.Results():
				if sub.Err != nil {
					fmt.Fprintln(out, tui.FailedStyle.Render("✗ ")+sub.Path+": "+sub.Err.Error())
					continue
				}
				fmt.Fprintln(out, tui.RunningStyle.Render("→ ")+sub.Path+tui.MutedStyle.Render(" job "+sub.JobID))
			case ev, ok := <-done:
				if !ok {
					return nil
				}
				printFinished(out, ev)
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printFinished(out io.Writer, ev events.Event) {
	switch e := ev.(type) {
	case events.JobCompletedEvent:
		fmt.Fprintf(out, "%s%s %s\n", tui.CompletedStyle.Render("✓ "), e.OutputPath, tui.MutedStyle.Render(fmt.Sprintf("(%.1fs)", e.Duration)))
	case events.JobFailedEvent:
		fmt.Fprintln(out, tui.FailedStyle.Render("✗ ")+"job "+e.JobID()+": "+e.Error)
	case events.JobCancelledEvent:
		fmt.Fprintln(out, tui.SkippedStyle.Render("- ")+"job "+e.JobID()+" cancelled")
	}
}
