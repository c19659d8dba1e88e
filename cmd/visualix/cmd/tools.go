package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/tools"
	"github.com/visualix/visualix/internal/tui"
)

var toolsCmd = &cobra.Command{
	Use:   "tools [name]",
	Short: "List the video tools the planner can use",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTools,
}

var toolsCategory string

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().StringVar(&toolsCategory, "category", "", "only list tools in this category")
}

func runTools(cmd *cobra.Command, args []string) error {
	registry := tools.NewDefaultRegistry(tools.Env{})
	descs := registry.DescribeAll()
	out := cmd.OutOrStdout()

	mode, err := detectOutput()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		d, ok := registry.Descriptor(args[0])
		if !ok {
			return fmt.Errorf("unknown tool %q", args[0])
		}
		if mode == tui.ModeJSON {
			return json.NewEncoder(out).Encode(d)
		}
		fmt.Fprintln(out, tui.HeaderStyle.Render(d.Name+" ("+d.Category+")"))
		fmt.Fprintln(out, d.Description)
		rows := make([][]string, 0, len(d.Parameters))
		for name, p := range d.Parameters {
			rows = append(rows, []string{name, string(p.Type), defaultText(p), p.Description})
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
		if len(rows) > 0 {
			fmt.Fprintln(out, tui.Table([]string{"PARAMETER", "TYPE", "DEFAULT", "DESCRIPTION"}, rows, -1))
		}
		return nil
	}

	names := registry.Names()
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		d := descs[name]
		if toolsCategory != "" && !strings.EqualFold(d.Category, toolsCategory) {
			continue
		}
		rows = append(rows, []string{d.Name, d.Category, d.Description})
	}

	if mode == tui.ModeJSON {
		return json.NewEncoder(out).Encode(descs)
	}
	fmt.Fprintln(out, tui.Table([]string{"TOOL", "CATEGORY", "DESCRIPTION"}, rows, -1))
	fmt.Fprintln(out, tui.MutedStyle.Render(fmt.Sprintf("%d tools", len(rows))))
	return nil
}

func defaultText(p core.ParamSpec) string {
	if !p.HasDefault {
		return "required"
	}
	return fmt.Sprint(p.Default)
}
