package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/visualix/visualix/internal/tui"
)

var (
	cfgFile    string
	logLevel   string
	logFormat  string
	outputMode string
	noColor    bool

	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "visualix",
	Short: "Edit videos by describing the result in plain language",
	Long: `visualix turns a natural-language request such as "make it warmer and
stabilize the shaky parts" into a plan of video tools and runs it with ffmpeg.

Use 'visualix serve' for the HTTP API, 'visualix run' to process a single
file from the terminal, or 'visualix watch' to turn a folder into a hot folder.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, tui.FailedStyle.Render("Error: ")+err.Error())
		return err
	}
	return nil
}

// SetVersion records build information.
func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./.visualix.yaml or ~/.config/visualix/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto",
		"log format (auto, text, json)")
	rootCmd.PersistentFlags().StringVarP(&outputMode, "output", "o", "",
		"output mode (tui, plain, json, quiet); detected when empty")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"disable colored output")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// detectOutput resolves the --output flag.
func detectOutput() (tui.OutputMode, error) {
	d := tui.NewDetector()
	if outputMode != "" {
		m, ok := tui.ParseOutputMode(outputMode)
		if !ok {
			return 0, fmt.Errorf("unknown output mode %q", outputMode)
		}
		d.ForceMode(m)
	}
	return d.Detect(), nil
}

func useColor() bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	m, err := detectOutput()
	return err == nil && m == tui.ModeTUI
}

// terminalWidth is the stdout width, or 100 when stdout is not a terminal.
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 100
}
