package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/artpar/limbo/adapters/metrics"
	"github.com/artpar/limbo/bootstrap"
	"github.com/artpar/limbo/config"
)

var (
	// Global flags
	cfgFile     string
	projectPath string
)

// collector is shared by every command run in this process; the default
// Prometheus registry accepts each metric only once.
var collector = sync.OnceValue(metrics.New)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "limbo",
	Short: "Validate limbo projects and their connections",
	Long: `limbo reads a project of tables, seeds and sources described in YAML
and validates it against the available generators, path aliases and
connections.

Quick start:
  limbo validate               # Validate the project next to limbo.yaml
  limbo validate --watch       # Re-validate on every change
  limbo render                 # Print the normalised project
  limbo connections            # List connection types`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultFile, "config file path")
	rootCmd.PersistentFlags().StringVarP(&projectPath, "project", "p", "", "project file or directory (overrides config)")
}

// newApp loads the configuration named by the global flags and wires the
// application. Logs go to logOut.
func newApp(logOut io.Writer) (*bootstrap.App, error) {
	cfg, err := config.LoadWithFallback(cfgFile, projectPath)
	if err != nil {
		return nil, err
	}

	return bootstrap.New(cfg, bootstrap.Options{
		Version:   version,
		Metrics:   collector(),
		LogOutput: logOut,
	})
}
