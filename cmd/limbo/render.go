package main

import (
	"github.com/spf13/cobra"

	"github.com/artpar/limbo/core/formatter"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the validated project",
	Long: `Validate the project and print it as a single document.

Typed options are re-serialised in their ${type:value} form, connection
secrets are masked, and seed file paths are printed resolved.

Examples:
  limbo render
  limbo render -o json`,
	RunE: runRender,
}

var renderOutput string

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "yaml", "output format (yaml, json)")
}

func runRender(cmd *cobra.Command, args []string) error {
	f, err := formatter.Lookup(renderOutput)
	if err != nil {
		return err
	}

	app, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	project, err := app.Validate(cmd.Context())
	if err != nil {
		return err
	}

	return f.FormatDocument(cmd.OutOrStdout(), project, formatter.FormatOptions{})
}
