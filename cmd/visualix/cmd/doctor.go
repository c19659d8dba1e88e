package cmd

import (
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/visualix/visualix/internal/config"
	"github.com/visualix/visualix/internal/diagnostics"
	"github.com/visualix/visualix/internal/tui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that ffmpeg, the planner and the host are ready",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

type doctorReport struct {
	Checks []check                `json:"checks"`
	System diagnostics.SystemInfo `json:"system"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	report := doctorReport{Checks: doctorChecks(cfg)}
	dirs := []string{cfg.Storage.UploadDir, cfg.Storage.OutputDir, cfg.Storage.TempDir}
	report.System = diagnostics.NewCollector().Collect(dirs...)

	mode, err := detectOutput()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if mode == tui.ModeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	var failed int
	for _, c := range report.Checks {
		mark := tui.CompletedStyle.Render("✓")
		if !c.OK {
			mark = tui.FailedStyle.Render("✗")
			failed++
		}
		fmt.Fprintf(out, "%s %-10s %s\n", mark, c.Name, c.Detail)
	}

	s := report.System
	fmt.Fprintln(out)
	fmt.Fprintln(out, tui.HeaderStyle.Render("System"))
	fmt.Fprintf(out, "  %s/%s, %s (%d cores, %d threads)\n", s.OS, s.Arch, s.CPUModel, s.CPUCores, s.CPUThreads)
	fmt.Fprintf(out, "  memory %.0f/%.0f MB (%.0f%%), load %.2f %.2f %.2f\n",
		s.MemUsedMB, s.MemTotalMB, s.MemPercent, s.LoadAvg1, s.LoadAvg5, s.LoadAvg15)
	for _, d := range s.Disks {
		fmt.Fprintf(out, "  %s: %.1f GB free of %.1f GB\n", d.Path, d.FreeGB, d.TotalGB)
	}
	for _, g := range s.GPUs {
		fmt.Fprintf(out, "  gpu: %s %s\n", g.Vendor, g.Name)
	}

	if failed > 0 {
		return fmt.Errorf("%d checks failed", failed)
	}
	return nil
}

func doctorChecks(cfg *config.Config) []check {
	var checks []check
	for _, bin := range []struct{ name, path string }{
		{"ffmpeg", cfg.FFmpeg.FFmpegPath},
		{"ffprobe", cfg.FFmpeg.FFprobePath},
	} {
		resolved, err := exec.LookPath(bin.path)
		if err != nil {
			checks = append(checks, check{Name: bin.name, Detail: bin.path + " not found in PATH"})
			continue
		}
		checks = append(checks, check{Name: bin.name, OK: true, Detail: resolved})
	}

	switch cfg.Planner.Backend {
	case "cli":
		if resolved, err := exec.LookPath(cfg.Planner.CLIPath); err != nil {
			checks = append(checks, check{Name: "planner", Detail: cfg.Planner.CLIPath + " not found in PATH"})
		} else {
			checks = append(checks, check{Name: "planner", OK: true, Detail: "cli " + resolved})
		}
	default:
		if cfg.Planner.APIKey == "" {
			checks = append(checks, check{Name: "planner", Detail: "no API key (set GEMINI_API_KEY)"})
		} else {
			checks = append(checks, check{Name: "planner", OK: true, Detail: cfg.Planner.Model + " via " + cfg.Planner.BaseURL})
		}
	}

	dirs := []string{cfg.Storage.UploadDir, cfg.Storage.OutputDir, cfg.Storage.TempDir}
	if err := diagnostics.NewPreflight(dirs, cfg.FFmpeg.MinFreeDiskMB, minFreeMemMB).Check(); err != nil {
		checks = append(checks, check{Name: "resources", Detail: err.Error()})
	} else {
		checks = append(checks, check{Name: "resources", OK: true,
			Detail: fmt.Sprintf("at least %d MB disk and %d MB memory free", cfg.FFmpeg.MinFreeDiskMB, minFreeMemMB)})
	}
	return checks
}
