package main

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/artpar/limbo/bootstrap"
	"github.com/artpar/limbo/core/formatter"
	"github.com/artpar/limbo/core/plugin"
)

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "List registered connection types",
	Long: `List the connection types provided by the loaded plugins.

The value of a connection's "type" field must be one of these.

Examples:
  limbo connections
  limbo connections --generators -o json`,
	RunE: runConnections,
}

var (
	connectionsShowGenerators bool
	connectionsOutput         string
)

func init() {
	rootCmd.AddCommand(connectionsCmd)

	connectionsCmd.Flags().BoolVar(&connectionsShowGenerators, "generators", false, "list available generators instead")
	connectionsCmd.Flags().StringVarP(&connectionsOutput, "output", "o", "table", "output format (table, json, yaml)")
}

func runConnections(cmd *cobra.Command, args []string) error {
	f, err := formatter.Lookup(connectionsOutput)
	if err != nil {
		return err
	}

	app, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if connectionsShowGenerators {
		return f.FormatList(cmd.OutOrStdout(), []string{"generator", "source"}, generatorRecords(app), formatter.FormatOptions{})
	}
	return f.FormatList(cmd.OutOrStdout(), []string{"type", "plugin"}, connectionRecords(app), formatter.FormatOptions{})
}

func connectionRecords(app *bootstrap.App) []map[string]any {
	var records []map[string]any
	for _, p := range app.Plugins.Plugins() {
		cp, ok := p.(plugin.ConnectionProvider)
		if !ok {
			continue
		}
		for _, kind := range cp.Connections() {
			records = append(records, map[string]any{"type": kind.Type, "plugin": p.Name()})
		}
	}
	sortBy(records, "type")
	return records
}

func generatorRecords(app *bootstrap.App) []map[string]any {
	source := make(map[string]string)
	for _, p := range app.Plugins.Plugins() {
		if gp, ok := p.(plugin.GeneratorProvider); ok {
			for _, gen := range gp.Generators() {
				if _, seen := source[gen]; !seen {
					source[gen] = p.Name()
				}
			}
		}
	}
	for _, gen := range app.Config().Generators {
		if _, seen := source[gen]; !seen {
			source[gen] = "config"
		}
	}

	records := make([]map[string]any, 0, len(source))
	for gen, src := range source {
		records = append(records, map[string]any{"generator": gen, "source": src})
	}
	sortBy(records, "generator")
	return records
}

func sortBy(records []map[string]any, key string) {
	slices.SortFunc(records, func(a, b map[string]any) int {
		return cmp.Compare(fmt.Sprint(a[key]), fmt.Sprint(b[key]))
	})
}
