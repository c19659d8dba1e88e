package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/visualix/visualix/internal/storage"
	"github.com/visualix/visualix/internal/tui"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stale uploads, outputs and temporary files",
	Long: `Run one cleanup pass over the upload, output and temp directories,
deleting files older than the configured maximum age. Files that belong to
a job that is still processing are kept.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().Duration("max-age", 0, "override cleanup.max_age for this pass")
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := setup(nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(ctx) }()

	maxAge := a.cfg.Cleanup.MaxAge
	if v, _ := cmd.Flags().GetDuration("max-age"); v > 0 {
		maxAge = v
	}

	cleaner := storage.NewCleaner(a.files, storage.CleanupConfig{
		Interval: a.cfg.Cleanup.Interval,
		MaxAge:   maxAge,
		Patterns: a.cfg.Cleanup.Patterns,
	}, a.logger, storage.WithProtect(a.jobs.OwnsActiveFile))
	res := cleaner.RunOnce(ctx)

	mode, err := detectOutput()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if mode == tui.ModeJSON {
		return json.NewEncoder(out).Encode(res)
	}
	fmt.Fprintf(out, "%s %d files removed, %s freed\n",
		tui.CompletedStyle.Render("✓"), res.FilesDeleted, humanBytes(res.BytesFreed))
	for _, e := range res.Errors {
		fmt.Fprintln(cmd.ErrOrStderr(), tui.WarningStyle.Render("warning: ")+e)
	}
	return nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
