package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/visualix/visualix/internal/config"
	"github.com/visualix/visualix/internal/tui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create, show and validate configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with the default settings",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for errors",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configForce bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := ".visualix.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := config.WriteFile(path, config.Defaults()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tui.CompletedStyle.Render("✓ ")+"wrote "+path)
	fmt.Fprintln(cmd.OutOrStdout(), tui.MutedStyle.Render("Set GEMINI_API_KEY or VISUALIX_PLANNER_API_KEY to enable planning."))
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, loader, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	if used := loader.ConfigFileUsed(); used != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), tui.MutedStyle.Render("# from "+used))
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	cfg, loader, err := loadConfig()
	if err != nil {
		return err
	}
	source := loader.ConfigFileUsed()
	if source == "" {
		source = "defaults"
	}
	fmt.Fprintln(cmd.OutOrStdout(), tui.CompletedStyle.Render("✓ ")+"configuration is valid ("+source+")")
	if cfg.Planner.APIKey == "" && cfg.Planner.Backend == "genai" {
		fmt.Fprintln(cmd.OutOrStdout(), tui.WarningStyle.Render("warning: ")+"no planner API key; planning is disabled")
	}
	return nil
}
